package media

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"scrubthumbs/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library used for fast thumbnail
// rotation. Call it once at startup; without it rotation uses imaging.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so it follows the app level
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			mediaLog.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			mediaLog.Warn("[%s] %s", domain, msg)
		default:
			mediaLog.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Thumbnails are tiny; keep the operation cache small.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      16 * 1024 * 1024,
		MaxCacheSize:     50,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	mediaLog.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		mediaLog.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

var vipsAngles = map[int]vips.Angle{
	90:  vips.Angle90,
	180: vips.Angle180,
	270: vips.Angle270,
}

// rotateWithVips turns a compressed payload clockwise by a quarter-turn
// multiple and re-encodes it as JPEG.
func rotateWithVips(payload []byte, quarter, quality int) ([]byte, error) {
	angle, ok := vipsAngles[quarter]
	if !ok {
		return nil, fmt.Errorf("unsupported rotation %d", quarter)
	}

	ref, err := vips.NewImageFromBuffer(payload)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load thumbnail: %w", err)
	}
	defer ref.Close()

	if err := ref.Rotate(angle); err != nil {
		return nil, fmt.Errorf("vips rotate failed: %w", err)
	}

	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}
