package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"scrubthumbs/internal/startup"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"activeSessions"`

	CacheEntries   int    `json:"cacheEntries"`
	CacheSizeBytes uint64 `json:"cacheSizeBytes"`
	CacheError     string `json:"cacheError,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. A failing cache
// ledger degrades the status but still answers 200: thumbnails can be
// generated without it.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:         "healthy",
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		ActiveSessions: h.sessions.Active(),
		GoVersion:      runtime.Version(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if h.stats != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		stats, err := h.stats.Stats(ctx)
		if err != nil {
			response.Status = "degraded"
			response.CacheError = err.Error()
		} else {
			response.CacheEntries = stats.Entries
			response.CacheSizeBytes = stats.SizeBytes
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
