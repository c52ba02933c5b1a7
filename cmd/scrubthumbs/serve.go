package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"scrubthumbs/internal/filesystem"
	"scrubthumbs/internal/handlers"
	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/metrics"
	"scrubthumbs/internal/startup"
)

const shutdownTimeout = 30 * time.Second

func runServe(args []string) error {
	fs, configFile := newFlagSet("serve")
	addr := fs.String("addr", "", "listen address, overrides server.addr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startTime := time.Now()
	startup.LogBanner()
	startup.ConfigureMemoryLimit()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	startup.LogConfig(cfg)

	if err := startup.PrepareCacheDir(cfg.Cache.Dir); err != nil {
		return err
	}
	if err := startup.CheckTools(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath); err != nil {
		return err
	}

	if cfg.Server.MetricsEnabled {
		metrics.InitializeMetrics()
	}
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	ctx := context.Background()
	p, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.ledger.Maintain(ctx); err != nil {
		logging.Warn("Initial cache maintenance failed: %v", err)
	}

	scheduler := cron.New()
	if _, err := p.ledger.Schedule(scheduler, cfg.Cache.MaintenanceSchedule); err != nil {
		return err
	}
	retention := cfg.Server.SessionRetention
	if _, err := scheduler.AddFunc("@every 1m", func() { p.manager.Prune(retention) }); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	h := handlers.New(p.manager, p.ledger, cfg.Server.MediaDir)
	router := h.Router(handlers.RouterConfig{
		MetricsEnabled:  cfg.Server.MetricsEnabled,
		LogHealthChecks: cfg.Server.LogHealthChecks,
	})
	startup.LogHTTPRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go handleShutdown(srv, shutdownDone)

	startup.LogServerStarted(cfg.Server.Addr, cfg.Server.MetricsEnabled, time.Since(startTime))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone

	startup.LogShutdownStep("Stopping background jobs")
	<-scheduler.Stop().Done()
	startup.LogShutdownStepComplete("Background jobs stopped")

	startup.LogShutdownStep("Cancelling running sessions")
	p.Close()
	startup.LogShutdownStepComplete("Sessions cancelled and ledger closed")

	startup.LogShutdownComplete()
	return nil
}

// handleShutdown drains the HTTP server on SIGINT or SIGTERM.
func handleShutdown(srv *http.Server, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	signal.Stop(sigChan)

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
}
