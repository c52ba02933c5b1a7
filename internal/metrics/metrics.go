package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrubthumbs_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Thumbnail cache metrics
var (
	CacheValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_cache_validations_total",
			Help: "Cache validity checks by result (valid, missing, stale, invalid)",
		},
		[]string{"result"},
	)

	CacheReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_cache_reads_total",
			Help: "Cache file reads by result (hit, miss, corrupt, error)",
		},
		[]string{"result"},
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_cache_writes_total",
			Help: "Cache file writes by status (success, error, denied)",
		},
		[]string{"status"},
	)

	CacheWriteBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrubthumbs_cache_write_bytes_total",
			Help: "Total bytes written to thumbnail cache files",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_cache_operation_duration_seconds",
			Help:    "Duration of cache store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
)

// Generation session metrics
var (
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrubthumbs_sessions_active",
			Help: "Number of generation sessions that have not reached a terminal state",
		},
	)

	SessionOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_session_outcomes_total",
			Help: "Generation sessions by terminal state (hit, completed, cancelled, failed)",
		},
		[]string{"outcome"},
	)

	SessionAttachTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrubthumbs_session_attach_total",
			Help: "Requests that attached to an in-flight session instead of starting a new one",
		},
	)

	FramesExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrubthumbs_frames_extracted_total",
			Help: "Total number of frames received from the extraction service",
		},
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_extraction_duration_seconds",
			Help:    "Wall time of frame extraction runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	RotationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_rotation_duration_seconds",
			Help:    "Time spent applying orientation correction to one thumbnail",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)
)

// Quota metrics
var (
	QuotaSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrubthumbs_quota_size_bytes",
			Help: "Aggregate size of the thumbnail cache as last measured by the ledger",
		},
	)

	QuotaEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrubthumbs_quota_entries",
			Help: "Number of cache files tracked by the ledger",
		},
	)

	QuotaEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrubthumbs_quota_evictions_total",
			Help: "Total number of cache files removed by eviction",
		},
	)

	QuotaRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_quota_refresh_duration_seconds",
			Help:    "Duration of ledger reconciliation walks in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	QuotaQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_quota_queries_total",
			Help: "Ledger database queries by operation and status",
		},
		[]string{"operation", "status"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_filesystem_retry_attempts_total",
			Help: "Retries performed after stale NFS file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrubthumbs_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrubthumbs_filesystem_stale_errors_total",
			Help: "ESTALE errors observed by volume and operation",
		},
		[]string{"operation", "volume"},
	)
)
