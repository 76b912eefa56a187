package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/resource-cache/internal/config"
	"github.com/Sternrassler/resource-cache/pkg/cache"
	"github.com/Sternrassler/resource-cache/pkg/fetch"
	"github.com/Sternrassler/resource-cache/pkg/logging"
	"github.com/Sternrassler/resource-cache/pkg/metrics"
	"github.com/Sternrassler/resource-cache/pkg/prefetch"
	"github.com/Sternrassler/resource-cache/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional)")
	prefetchPath := flag.String("prefetch", "", "file with one URL per line to warm at startup (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:      logging.LogLevel(cfg.LogLevel),
		Pretty:     cfg.LogPretty,
		Output:     os.Stderr,
		FilePath:   cfg.LogFilePath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
	})

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			// The tier fails soft and starts answering once Redis is reachable
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis not reachable")
		} else {
			logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
		}
		cancel()
	}

	c, err := cache.New(cacheConfig(cfg, redisClient, &logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache")
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *prefetchPath != "" {
		if err := warm(ctx, c, *prefetchPath, cfg.PrefetchConcurrency, &logger); err != nil {
			logger.Error().Err(err).Str("file", *prefetchPath).Msg("Prefetch failed")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(c, cfg.FetchTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", cfg.Listen).
		Str("cache", c.Name()).
		Str("user_agent", cfg.UserAgent).
		Bool("redis", redisClient != nil).
		Msg("Starting resource cache proxy")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

func cacheConfig(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) cache.Config {
	cc := cache.DefaultConfig(cfg.CacheName)
	cc.Root = cfg.CacheRoot
	cc.Memory = cache.MemoryConfig{MaxCost: cfg.MemoryMaxBytes}
	cc.Redis = redisClient
	cc.Coalesce = cfg.Coalesce
	cc.Logger = logger
	cc.Fetch = fetch.Config{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		UserAgent:  cfg.UserAgent,
		Retry: fetch.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryBackoff,
		},
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.RequestsPerSecond,
			MaxInFlight:       cfg.MaxInFlight,
		}),
	}
	return cc
}

func newMux(c *cache.Cache, timeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/fetch", fetchHandler(c, timeout))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchHandler serves /fetch?url=<resource> from the cache.
func fetchHandler(c *cache.Cache, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		target := r.URL.Query().Get("url")
		if target == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			http.Error(w, "url must be http or https", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid url: %v", err), http.StatusBadRequest)
			return
		}

		data, ok := c.Get(ctx, req)
		if !ok {
			http.Error(w, "resource unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	}
}

// warm loads every URL listed in path before the server starts.
func warm(ctx context.Context, c *cache.Cache, path string, workers int, logger *zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open prefetch list: %w", err)
	}
	defer f.Close()

	urls, err := readURLList(f)
	if err != nil {
		return err
	}

	p := prefetch.New(c, prefetch.Config{MaxConcurrency: workers, Logger: logger})
	result, err := p.Warm(ctx, urls)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		logging.Notice(logger).Strs("urls", result.Failed).Msg("Prefetch left URLs uncached")
	}
	return nil
}

// readURLList returns the non-empty lines of r that are not # comments.
func readURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prefetch list: %w", err)
	}
	return urls, nil
}
