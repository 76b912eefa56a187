// Package config loads the proxy configuration from an optional file and
// RESCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RESCACHE"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the proxy configuration.
type Config struct {
	Listen    string `mapstructure:"listen"`
	CacheName string `mapstructure:"cache_name"`
	CacheRoot string `mapstructure:"cache_root"`
	UserAgent string `mapstructure:"user_agent"`

	MemoryMaxBytes int64 `mapstructure:"memory_max_bytes"`
	Coalesce       bool  `mapstructure:"coalesce"`

	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`

	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	RetryMaxAttempts  int           `mapstructure:"retry_max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxInFlight       int           `mapstructure:"max_in_flight"`

	PrefetchConcurrency int `mapstructure:"prefetch_concurrency"`

	LogLevel      string `mapstructure:"log_level"`
	LogPretty     bool   `mapstructure:"log_pretty"`
	LogFilePath   string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogCompress   bool   `mapstructure:"log_compress"`
}

// Load reads path (optional, any format viper understands) and overlays
// RESCACHE_* environment variables, e.g. RESCACHE_REDIS_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("cache_name", "proxy")
	v.SetDefault("cache_root", "")
	v.SetDefault("user_agent", "resource-cache/0.1.0")
	v.SetDefault("memory_max_bytes", 0)
	v.SetDefault("coalesce", false)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_backoff", "500ms")
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("max_in_flight", 0)
	v.SetDefault("prefetch_concurrency", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 10)
	v.SetDefault("log_compress", true)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Listen) == "":
		return fmt.Errorf("%w: listen cannot be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.CacheName) == "":
		return fmt.Errorf("%w: cache_name cannot be empty", ErrInvalidConfig)
	case strings.ContainsAny(c.CacheName, `/\`):
		return fmt.Errorf("%w: cache_name %q contains a path separator", ErrInvalidConfig, c.CacheName)
	case c.MemoryMaxBytes < 0:
		return fmt.Errorf("%w: memory_max_bytes must be >= 0", ErrInvalidConfig)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("%w: fetch_timeout must be > 0", ErrInvalidConfig)
	case c.RetryMaxAttempts < 1:
		return fmt.Errorf("%w: retry_max_attempts must be >= 1", ErrInvalidConfig)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("%w: requests_per_second must be >= 0", ErrInvalidConfig)
	case c.MaxInFlight < 0:
		return fmt.Errorf("%w: max_in_flight must be >= 0", ErrInvalidConfig)
	case c.PrefetchConcurrency < 1:
		return fmt.Errorf("%w: prefetch_concurrency must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// durationDecodeHook accepts Go duration strings ("30s") and plain seconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(time.Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return time.Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return parsed, nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return time.Duration(seconds * float64(time.Second)), nil
			}
			return nil, fmt.Errorf("can't parse duration: %s", v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case time.Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
