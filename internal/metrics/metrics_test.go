package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"CacheValidationsTotal", CacheValidationsTotal},
		{"CacheReadsTotal", CacheReadsTotal},
		{"CacheWritesTotal", CacheWritesTotal},
		{"CacheWriteBytes", CacheWriteBytes},
		{"CacheOperationDuration", CacheOperationDuration},
		{"SessionsActive", SessionsActive},
		{"SessionOutcomesTotal", SessionOutcomesTotal},
		{"QuotaSizeBytes", QuotaSizeBytes},
		{"QuotaEvictionsTotal", QuotaEvictionsTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("InitializeMetrics panicked: %v", r)
		}
	}()
	InitializeMetrics()

	if got := testutil.CollectAndCount(CacheReadsTotal); got != 4 {
		t.Errorf("CacheReadsTotal series = %d, want 4", got)
	}
	if got := testutil.CollectAndCount(SessionOutcomesTotal); got != 4 {
		t.Errorf("SessionOutcomesTotal series = %d, want 4", got)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "stat"))
	obs.ObserveOperation("media", "stat", 0.01, nil)
	obs.ObserveOperation("media", "stat", 0.01, errors.New("boom"))
	after := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "stat"))
	if after-before != 1 {
		t.Errorf("error counter delta = %v, want 1", after-before)
	}

	beforeStale := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat", "media"))
	obs.ObserveStaleError("stat", "media")
	obs.ObserveRetryAttempt("stat", "media")
	obs.ObserveRetrySuccess("stat", "media")
	obs.ObserveRetryFailure("stat", "media")
	obs.ObserveRetryDuration("stat", "media", 0.2)
	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat", "media")) - beforeStale; got != 1 {
		t.Errorf("stale counter delta = %v, want 1", got)
	}
}
