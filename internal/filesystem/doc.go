/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Source media frequently lives on network shares. Stat and open calls made
while fingerprinting a source or reading a cache file can fail transiently
with ESTALE when the server side changes; those calls are retried with
exponential backoff while every other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Metrics are reported through an Observer registered with SetObserver, and
paths are labelled by volume through a VolumeResolver registered with
SetDefaultVolumeResolver. Both are optional.
*/
package filesystem
