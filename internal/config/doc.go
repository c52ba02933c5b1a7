// Package config loads application configuration with viper.
//
// Values come, in increasing precedence, from built-in defaults, a YAML
// file (config.yaml in the user config directory or the working
// directory, or an explicit path) and SCRUBTHUMBS_* environment variables,
// where the key path is upper-cased and dots become underscores:
//
//	SCRUBTHUMBS_CACHE_MAX_SIZE_MB=0          # disable cache writes
//	SCRUBTHUMBS_THUMBNAILS_SIZE_MODE=percent
//	SCRUBTHUMBS_SERVER_ADDR=:9000
package config
