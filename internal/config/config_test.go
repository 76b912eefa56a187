package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.CacheName != "proxy" {
		t.Errorf("CacheName = %q, want proxy", cfg.CacheName)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.RetryMaxAttempts != 1 {
		t.Errorf("RetryMaxAttempts = %d, want 1", cfg.RetryMaxAttempts)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.Coalesce {
		t.Error("Coalesce should default to false")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, "rescache.yaml", `
listen: ":9090"
cache_name: images
memory_max_bytes: 1048576
coalesce: true
redis_addr: "localhost:6379"
fetch_timeout: 5s
retry_max_attempts: 3
retry_backoff: 2
requests_per_second: 20
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := map[string]any{
		"Listen":            ":9090",
		"CacheName":         "images",
		"MemoryMaxBytes":    int64(1048576),
		"Coalesce":          true,
		"RedisAddr":         "localhost:6379",
		"FetchTimeout":      5 * time.Second,
		"RetryMaxAttempts":  3,
		"RetryBackoff":      2 * time.Second,
		"RequestsPerSecond": float64(20),
		"LogLevel":          "debug",
	}
	got := reflect.ValueOf(*cfg)
	for field, value := range want {
		if v := got.FieldByName(field).Interface(); !reflect.DeepEqual(v, value) {
			t.Errorf("%s = %v, want %v", field, v, value)
		}
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "rescache.toml", `
cache_name = "thumbs"
fetch_timeout = "750ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheName != "thumbs" {
		t.Errorf("CacheName = %q, want thumbs", cfg.CacheName)
	}
	if cfg.FetchTimeout != 750*time.Millisecond {
		t.Errorf("FetchTimeout = %v, want 750ms", cfg.FetchTimeout)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("RESCACHE_CACHE_NAME", "from-env")
	t.Setenv("RESCACHE_REDIS_DB", "2")
	t.Setenv("RESCACHE_FETCH_TIMEOUT", "10s")

	path := writeConfig(t, "rescache.yaml", "cache_name: from-file\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheName != "from-env" {
		t.Errorf("CacheName = %q, environment should override the file", cfg.CacheName)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("RedisDB = %d, want 2", cfg.RedisDB)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.FetchTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "rescache.yaml", "fetch_timeout: soon\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail for an unparsable duration")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Listen:              ":8080",
			CacheName:           "proxy",
			FetchTimeout:        time.Second,
			RetryMaxAttempts:    1,
			PrefetchConcurrency: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "valid", mutate: func(*Config) {}, valid: true},
		{name: "empty listen", mutate: func(c *Config) { c.Listen = "" }},
		{name: "empty name", mutate: func(c *Config) { c.CacheName = " " }},
		{name: "name with separator", mutate: func(c *Config) { c.CacheName = "a/b" }},
		{name: "negative memory", mutate: func(c *Config) { c.MemoryMaxBytes = -1 }},
		{name: "zero timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }},
		{name: "zero attempts", mutate: func(c *Config) { c.RetryMaxAttempts = 0 }},
		{name: "negative rate", mutate: func(c *Config) { c.RequestsPerSecond = -1 }},
		{name: "negative in flight", mutate: func(c *Config) { c.MaxInFlight = -1 }},
		{name: "zero prefetch workers", mutate: func(c *Config) { c.PrefetchConcurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
