package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"scrubthumbs/internal/config"
	"scrubthumbs/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

func section(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// LogBanner prints the banner, build and system information.
func LogBanner() {
	fmt.Println(`
------------------------------------------------------------
                     _     _   _                    _
  ___  ___ _ __ _   _| |__ | |_| |__  _   _ _ __ ___ | |__  ___
 / __|/ __| '__| | | | '_ \| __| '_ \| | | | '_ ' _ \| '_ \/ __|
 \__ \ (__| |  | |_| | |_) | |_| | | | |_| | | | | | | |_) \__ \
 |___/\___|_|   \__,_|_.__/ \__|_| |_|\__,_|_| |_| |_|_.__/|___/
------------------------------------------------------------`)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))

	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

// LogConfig prints the effective configuration.
func LogConfig(cfg *config.Config) {
	section("CONFIGURATION")
	if cfg.File != "" {
		logging.Info("  Config file:         %s", cfg.File)
	} else {
		logging.Info("  Config file:         (none, defaults and %s_* environment)", config.EnvPrefix)
	}
	logging.Info("  Cache dir:           %s", cfg.Cache.Dir)
	if cfg.Cache.MaxSizeMB == 0 {
		logging.Info("  Cache budget:        0 (writes disabled)")
	} else {
		logging.Info("  Cache budget:        %d MB (evict to %.0f%%)", cfg.Cache.MaxSizeMB, cfg.Cache.LowWaterRatio*100)
	}
	logging.Info("  Ledger:              %s", cfg.Cache.LedgerPath)
	logging.Info("  Maintenance:         %s", cfg.Cache.MaintenanceSchedule)
	logging.Info("  Size mode:           %s (fixed %dpx, %.0f%%)", cfg.Thumbnails.SizeMode, cfg.Thumbnails.FixedLength, cfg.Thumbnails.RawSizePercent)
	logging.Info("  Thumbnails per file: %d (min cached %d, batch %d)", cfg.Thumbnails.Count, cfg.Thumbnails.MinPerFile, cfg.Thumbnails.BatchSize)
	logging.Info("  Media dir:           %s", cfg.Server.MediaDir)
	logging.Info("  Session retention:   %s", cfg.Server.SessionRetention)
	logging.Info("  Log level:           %s", logging.GetLevel())
}

// PrepareCacheDir creates dir if needed and checks that it is writable.
func PrepareCacheDir(dir string) error {
	section("CACHE SETUP")

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	if err := ensureDirectory(abs); err != nil {
		return fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(abs); err != nil {
		return fmt.Errorf("cache directory is not writable: %w", err)
	}
	logging.Info("  [OK] Cache directory is writable: %s", abs)
	return nil
}

// CheckTools verifies that ffmpeg and ffprobe can be executed.
func CheckTools(ffmpegPath, ffprobePath string) error {
	section("FFMPEG")
	for _, tool := range []string{ffmpegPath, ffprobePath} {
		version, err := toolVersion(tool)
		if err != nil {
			return err
		}
		logging.Info("  [OK] %s", version)
	}
	return nil
}

func toolVersion(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", tool)
	}
	logging.Debug("  %s path: %s", tool, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", tool, err)
	}
	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}

func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		// Write access was confirmed.
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes, err
}

// LogHTTPRoutes logs every registered route at debug level.
func LogHTTPRoutes(router *mux.Router) {
	section("HTTP SERVER SETUP")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Info("  Registered routes: %d", len(routes))
	for _, route := range routes {
		logging.Debug("    %-6s %s", route.Method, route.Path)
	}
}

// LogServerStarted logs successful server start.
func LogServerStarted(addr string, metricsEnabled bool, startupDuration time.Duration) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", startupDuration)
	logging.Info("  Listening on:    %s", addr)
	if metricsEnabled {
		logging.Info("  Metrics:         %s/metrics", addr)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop the server")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}
