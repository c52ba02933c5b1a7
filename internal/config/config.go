package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"scrubthumbs/internal/session"
)

// EnvPrefix prefixes every environment override, e.g.
// SCRUBTHUMBS_CACHE_MAX_SIZE_MB.
const EnvPrefix = "SCRUBTHUMBS"

// Config holds all application configuration
type Config struct {
	Cache      CacheConfig      `mapstructure:"cache"`
	Thumbnails ThumbnailsConfig `mapstructure:"thumbnails"`
	FFmpeg     FFmpegConfig     `mapstructure:"ffmpeg"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// File is the config file that was read, empty when running on
	// defaults and environment only.
	File string `mapstructure:"-"`
}

// CacheConfig locates the thumbnail cache and bounds its size.
type CacheConfig struct {
	Dir                 string  `mapstructure:"dir"`
	MaxSizeMB           int64   `mapstructure:"max_size_mb"` // 0 disables caching
	LowWaterRatio       float64 `mapstructure:"low_water_ratio"`
	LedgerPath          string  `mapstructure:"ledger_path"`
	MaintenanceSchedule string  `mapstructure:"maintenance_schedule"` // cron spec
}

// ThumbnailsConfig controls thumbnail sizing and sampling.
type ThumbnailsConfig struct {
	SizeMode       string  `mapstructure:"size_mode"` // "fixed" or "percent"
	FixedLength    int     `mapstructure:"fixed_length"`
	RawSizePercent float64 `mapstructure:"raw_size_percent"`
	Count          int     `mapstructure:"count"`
	MinPerFile     int     `mapstructure:"min_per_file"`
	BatchSize      int     `mapstructure:"batch_size"`
	JPEGQuality    int     `mapstructure:"jpeg_quality"`
}

// FFmpegConfig locates the external tools.
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
	Threads     int    `mapstructure:"threads"` // 0 sizes from available CPUs
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	MediaDir string `mapstructure:"media_dir"` // request paths resolve inside it
	// SessionRetention is how long finished sessions stay queryable.
	SessionRetention time.Duration `mapstructure:"session_retention"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	LogHealthChecks  bool          `mapstructure:"log_health_checks"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// setDefaults registers every key so environment overrides apply even
// without a config file.
func setDefaults(v *viper.Viper) {
	cacheDir := defaultCacheDir()

	v.SetDefault("cache.dir", cacheDir)
	v.SetDefault("cache.max_size_mb", 500)
	v.SetDefault("cache.low_water_ratio", 0.8)
	v.SetDefault("cache.ledger_path", "")
	v.SetDefault("cache.maintenance_schedule", "@every 30m")

	v.SetDefault("thumbnails.size_mode", string(session.SizeFixed))
	v.SetDefault("thumbnails.fixed_length", session.DefaultFixedLength)
	v.SetDefault("thumbnails.raw_size_percent", session.DefaultRawSizePercent)
	v.SetDefault("thumbnails.count", 100)
	v.SetDefault("thumbnails.min_per_file", session.DefaultMinPerFile)
	v.SetDefault("thumbnails.batch_size", 10)
	v.SetDefault("thumbnails.jpeg_quality", 75)

	v.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_path", "ffprobe")
	v.SetDefault("ffmpeg.threads", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.media_dir", "/media")
	v.SetDefault("server.session_retention", "10m")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.log_health_checks", false)

	v.SetDefault("logging.level", "info")
}

// defaultCacheDir returns $XDG_CACHE_HOME/scrubthumbs/thumbnails or the
// OS equivalent.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "scrubthumbs", "thumbnails")
}

// defaultConfigPath returns the directory searched for config.yaml.
func defaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "scrubthumbs")
}

// Load reads configuration from file and environment. When file is empty,
// config.yaml is searched for in the user config directory and the
// working directory; a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := defaultConfigPath(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Cache.LedgerPath == "" {
		cfg.Cache.LedgerPath = filepath.Join(filepath.Dir(filepath.Clean(cfg.Cache.Dir)), "ledger.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir must be set"))
	}
	if c.Cache.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("cache.max_size_mb must not be negative, got %d", c.Cache.MaxSizeMB))
	}
	if c.Cache.LowWaterRatio <= 0 || c.Cache.LowWaterRatio > 1 {
		errs = append(errs, fmt.Errorf("cache.low_water_ratio must be in (0, 1], got %v", c.Cache.LowWaterRatio))
	}
	if _, err := session.ParseSizeMode(c.Thumbnails.SizeMode); err != nil {
		errs = append(errs, fmt.Errorf("thumbnails.size_mode: %w", err))
	}
	if c.Thumbnails.FixedLength <= 0 {
		errs = append(errs, fmt.Errorf("thumbnails.fixed_length must be positive, got %d", c.Thumbnails.FixedLength))
	}
	if c.Thumbnails.RawSizePercent < 0 {
		errs = append(errs, fmt.Errorf("thumbnails.raw_size_percent must not be negative, got %v", c.Thumbnails.RawSizePercent))
	}
	if c.Thumbnails.Count <= 0 {
		errs = append(errs, fmt.Errorf("thumbnails.count must be positive, got %d", c.Thumbnails.Count))
	}
	if c.Thumbnails.MinPerFile <= 0 {
		errs = append(errs, fmt.Errorf("thumbnails.min_per_file must be positive, got %d", c.Thumbnails.MinPerFile))
	}
	if c.Thumbnails.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("thumbnails.batch_size must be positive, got %d", c.Thumbnails.BatchSize))
	}
	if c.Thumbnails.JPEGQuality < 1 || c.Thumbnails.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("thumbnails.jpeg_quality must be in 1..100, got %d", c.Thumbnails.JPEGQuality))
	}
	if c.Server.SessionRetention <= 0 {
		errs = append(errs, fmt.Errorf("server.session_retention must be positive, got %v", c.Server.SessionRetention))
	}
	if c.FFmpeg.Threads < 0 {
		errs = append(errs, fmt.Errorf("ffmpeg.threads must not be negative, got %d", c.FFmpeg.Threads))
	}

	return errors.Join(errs...)
}

// MaxBytes returns the cache budget in bytes.
func (c *Config) MaxBytes() uint64 {
	if c.Cache.MaxSizeMB <= 0 {
		return 0
	}
	return uint64(c.Cache.MaxSizeMB) * 1024 * 1024
}

// SessionOptions converts the thumbnail settings for the session manager.
func (c *Config) SessionOptions() session.Options {
	mode, _ := session.ParseSizeMode(c.Thumbnails.SizeMode)
	return session.Options{
		SizeMode:       mode,
		FixedLength:    c.Thumbnails.FixedLength,
		RawSizePercent: c.Thumbnails.RawSizePercent,
		MinPerFile:     c.Thumbnails.MinPerFile,
	}
}
