// Package metrics provides Prometheus instrumentation for scrubthumbs.
//
// All metrics are prefixed with "scrubthumbs_" and registered with the
// default registry through promauto, so they are served by promhttp.Handler
// without further wiring.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Cache Metrics
//
// Track the on-disk thumbnail cache:
//   - CacheValidationsTotal: validity checks by result
//   - CacheReadsTotal: reads by result (hit, miss, corrupt, error)
//   - CacheWritesTotal: writes by status (success, error, denied)
//   - CacheWriteBytes: bytes persisted
//   - CacheOperationDuration: validate/read/write latency
//
// ## Session Metrics
//
//   - SessionsActive, SessionOutcomesTotal, SessionAttachTotal
//   - FramesExtractedTotal, ExtractionDuration, RotationDuration
//
// ## Quota Metrics
//
//   - QuotaSizeBytes, QuotaEntries, QuotaEvictionsTotal
//   - QuotaRefreshDuration, QuotaQueryTotal
//
// ## Filesystem Metrics
//
// Recorded through NewFilesystemObserver, which the filesystem package calls
// via its Observer interface to avoid an import cycle.
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
