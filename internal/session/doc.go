// Package session orchestrates thumbnail generation for one (media file,
// pixel width) pair at a time.
//
// A Manager owns a single worker queue that performs every cache read and
// write and applies extractor batches, and a separate dispatch queue that
// delivers progress and completion to consumers. A session moves through
// CheckingCache, then HitComplete or Generating, and ends Completed,
// Cancelled or Failed. Concurrent requests for the same key attach to the
// session already in flight.
package session
