package handlers

import (
	"context"
	"time"

	"github.com/gorilla/mux"

	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/middleware"
	"scrubthumbs/internal/quota"
	"scrubthumbs/internal/session"
)

var log = logging.Subsystem("http")

// SessionManager is the subset of *session.Manager the handlers use.
type SessionManager interface {
	Start(ctx context.Context, path string, consumer session.Consumer) (*session.Session, error)
	Get(id string) (*session.Session, bool)
	Release(id string) bool
	Active() int
}

// StatsSource reports cache usage for the health endpoint.
type StatsSource interface {
	Stats(ctx context.Context) (quota.Stats, error)
}

// Handlers serves the HTTP API.
type Handlers struct {
	sessions  SessionManager
	stats     StatsSource
	mediaDir  string
	startTime time.Time
}

// New creates the handlers. Requested paths are resolved inside mediaDir;
// an empty mediaDir accepts absolute paths anywhere. stats may be nil.
func New(sessions SessionManager, stats StatsSource, mediaDir string) *Handlers {
	return &Handlers{
		sessions:  sessions,
		stats:     stats,
		mediaDir:  mediaDir,
		startTime: time.Now(),
	}
}

// RouterConfig selects optional routes and middleware.
type RouterConfig struct {
	MetricsEnabled  bool
	LogHealthChecks bool
}

// Router builds the gorilla/mux router with logging and metrics middleware.
func (h *Handlers) Router(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogHealthChecks = cfg.LogHealthChecks
	r.Use(middleware.Logger(logCfg))
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/thumbnail", h.GetThumbnail).Methods("GET")

	return r
}
