package session

import "errors"

var (
	// ErrExtractionFailed is reported when the frame extractor (or the
	// probe that precedes it) fails. Nothing is written to the cache.
	ErrExtractionFailed = errors.New("thumbnail extraction failed")

	// ErrCancelled is reported to consumers of a cancelled session.
	ErrCancelled = errors.New("thumbnail generation cancelled")

	// ErrManagerClosed is returned by Start after Close.
	ErrManagerClosed = errors.New("session manager closed")
)
