package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, result := range []string{"valid", "missing", "stale", "invalid"} {
		CacheValidationsTotal.WithLabelValues(result)
	}
	for _, result := range []string{"hit", "miss", "corrupt", "error"} {
		CacheReadsTotal.WithLabelValues(result)
	}
	for _, status := range []string{"success", "error", "denied"} {
		CacheWritesTotal.WithLabelValues(status)
	}
	for _, op := range []string{"validate", "read", "write"} {
		CacheOperationDuration.WithLabelValues(op)
	}
	for _, outcome := range []string{"hit", "completed", "cancelled", "failed"} {
		SessionOutcomesTotal.WithLabelValues(outcome)
	}
	for _, op := range []string{"refresh", "sum", "evict"} {
		QuotaQueryTotal.WithLabelValues(op, "success")
		QuotaQueryTotal.WithLabelValues(op, "error")
	}

	volumes := []string{"media", "cache", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "read", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		FilesystemRetryAttempts.WithLabelValues("stat", vol)
		FilesystemRetrySuccess.WithLabelValues("stat", vol)
		FilesystemRetryFailures.WithLabelValues("stat", vol)
		FilesystemStaleErrors.WithLabelValues("stat", vol)
		FilesystemRetryDuration.WithLabelValues("stat", vol)
	}
}
