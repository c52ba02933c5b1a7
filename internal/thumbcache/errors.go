package thumbcache

import "errors"

var (
	// ErrCorruptCache reports a malformed or truncated cache file. The Store
	// deletes the file before returning it.
	ErrCorruptCache = errors.New("corrupt thumbnail cache")

	// ErrCacheMiss reports that no cache file exists for a key.
	ErrCacheMiss = errors.New("thumbnail cache miss")

	// ErrSourceUnavailable reports that the source media file is missing or
	// its metadata cannot be read.
	ErrSourceUnavailable = errors.New("source media unavailable")

	// ErrQuotaWriteDenied reports a write skipped because the cache budget is
	// zero. Callers treat it as a silent no-op.
	ErrQuotaWriteDenied = errors.New("thumbnail cache disabled by quota")

	// ErrEmptyCache is returned when asked to persist zero records.
	ErrEmptyCache = errors.New("no thumbnails to write")
)
