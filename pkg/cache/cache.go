package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/resource-cache/pkg/fetch"
	"github.com/Sternrassler/resource-cache/pkg/logging"
	"github.com/Sternrassler/resource-cache/pkg/platform"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidName indicates a cache name that can't select a directory
	ErrInvalidName = errors.New("invalid cache name")
)

// Load results that are not tier names.
const (
	resultMiss      = "miss"
	resultCancelled = "cancelled"
)

const tracerName = "github.com/Sternrassler/resource-cache/pkg/cache"

// Config holds the cache configuration.
type Config struct {
	// Name selects the disk namespace <root>/resource-cache/<name>/.
	Name string

	// Root overrides the platform cache root. Ignored when FS is set.
	Root string

	// FS is the disk tier filesystem (default: the host filesystem at Root).
	// The namespace directory is created relative to its root.
	FS billy.Filesystem

	// Memory configures the in-process tier (default: unbounded).
	Memory MemoryConfig

	// Redis enables a shared persistent tier consulted after the disk tier
	// (optional).
	Redis *redis.Client

	// KeyFunc derives cache keys from requests (default: URLKey).
	KeyFunc KeyFunc

	// Coalesce collapses concurrent network misses for the same key into one
	// fetch (default: false, every miss fetches).
	Coalesce bool

	// Fetch configures the network tier. Its Logger defaults to Logger.
	Fetch fetch.Config

	// Logger receives tier diagnostics (default: disabled).
	Logger *zerolog.Logger

	// TracerProvider creates load spans (default: the global provider).
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns the default configuration for the named cache.
func DefaultConfig(name string) Config {
	return Config{
		Name:    name,
		KeyFunc: URLKey,
	}
}

// Cache resolves requests against memory, disk (and optionally Redis) before
// falling back to the network. It is safe for concurrent use.
type Cache struct {
	name     string
	keyFunc  KeyFunc
	memory   *MemoryTier
	disk     *DiskTier
	redis    *RedisTier
	fetcher  *fetch.Fetcher
	coalesce bool
	group    singleflight.Group
	tracer   trace.Tracer
	logger   zerolog.Logger

	// tiers in lookup order, fastest first
	tiers []Tier
}

// New creates a cache and its disk namespace directory. A directory that
// can't be created is logged; the disk tier then reports misses.
func New(cfg Config) (*Cache, error) {
	if err := validateName(cfg.Name); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().
			Str("component", "cache").
			Str("cache", cfg.Name).
			Logger()
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = URLKey
	}

	memory, err := NewMemoryTier(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("create memory tier: %w", err)
	}

	filesystem := cfg.FS
	if filesystem == nil {
		root := cfg.Root
		if root == "" {
			root = platform.CacheRoot()
		}
		filesystem = osfs.New(root)
	}
	disk := NewDiskTier(filesystem, platform.NamespaceDir(cfg.Name), logger)

	c := &Cache{
		name:     cfg.Name,
		keyFunc:  keyFunc,
		memory:   memory,
		disk:     disk,
		coalesce: cfg.Coalesce,
		logger:   logger,
		tiers:    []Tier{memory, disk},
	}

	if cfg.Redis != nil {
		c.redis = NewRedisTier(cfg.Redis, cfg.Name, logger)
		c.tiers = append(c.tiers, c.redis)
	}

	fetchCfg := cfg.Fetch
	if fetchCfg.Logger == nil {
		fetchCfg.Logger = cfg.Logger
	}
	c.fetcher = fetch.New(fetchCfg)

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c.tracer = tp.Tracer(tracerName)

	return c, nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// Load resolves req on a new goroutine and invokes completion exactly once
// with the bytes, or nil when no tier has them. Load never blocks and never
// invokes completion on the calling goroutine. Cancelling req's context
// cancels the load like Handle.Cancel.
func (c *Cache) Load(req *http.Request, completion func([]byte)) *Handle {
	parent := context.Background()
	if req != nil {
		parent = req.Context()
	}
	ctx, cancel := context.WithCancel(parent)
	h := newHandle(cancel)

	if completion == nil {
		completion = func([]byte) {}
	}

	go func() {
		defer close(h.done)
		defer cancel()
		c.load(ctx, h, req, completion)
	}()
	return h
}

// LoadURL is Load for a GET of rawURL. A URL that can't form a request
// completes with nil. The key comes from the parsed request, so with URLKey
// it is DeriveKey of the URL's canonical form, which can differ from rawURL
// when parsing escapes characters.
func (c *Cache) LoadURL(rawURL string, completion func([]byte)) *Handle {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", rawURL).Msg("Can't build request")
	}
	return c.Load(req, completion)
}

// Get resolves req on the calling goroutine. Tier writes have finished when
// it returns.
func (c *Cache) Get(ctx context.Context, req *http.Request) ([]byte, bool) {
	var data []byte
	c.load(ctx, nil, req, func(b []byte) { data = b })
	return data, data != nil
}

func (c *Cache) load(ctx context.Context, h *Handle, req *http.Request, completion func([]byte)) {
	var loadID string
	if h != nil {
		loadID = h.ID()
	} else {
		loadID = uuid.NewString()
	}
	stopped := func() bool {
		return (h != nil && h.Cancelled()) || ctx.Err() != nil
	}

	if req == nil || req.URL == nil {
		Loads.WithLabelValues(resultMiss).Inc()
		c.logger.Debug().Str("load_id", loadID).Msg("Load without request")
		completion(nil)
		return
	}

	key := c.keyFunc(req)
	logger := c.logger.With().
		Str("load_id", loadID).
		Str("key", key).
		Logger()

	ctx, span := c.tracer.Start(ctx, "rescache.load", trace.WithAttributes(
		attribute.String("rescache.cache", c.name),
		attribute.String("rescache.key", key),
		attribute.String("url.full", req.URL.String()),
	))
	defer span.End()

	data, source, fill := c.resolve(ctx, stopped, key, req, &logger)
	if stopped() {
		data, source, fill = nil, resultCancelled, nil
		logger.Debug().Msg("Load cancelled")
	}
	span.SetAttributes(attribute.String("rescache.tier", source))
	Loads.WithLabelValues(source).Inc()

	if len(fill) > 0 {
		completion(bytes.Clone(data))
	} else {
		completion(data)
	}

	// Delivered bytes are always stored, even if the caller cancels from
	// inside the completion. Slowest tier first so memory is written last.
	writeCtx := context.WithoutCancel(ctx)
	for i := len(fill) - 1; i >= 0; i-- {
		tier := fill[i]
		tier.Set(writeCtx, key, data)
		PromotedBytes.WithLabelValues(tier.Name()).Add(float64(len(data)))
		logger.Debug().Str("tier", tier.Name()).Int("bytes", len(data)).Msg("Tier populated")
	}
}

// resolve returns the bytes for key, the name of the tier that had them and
// the tiers that should receive them.
func (c *Cache) resolve(ctx context.Context, stopped func() bool, key string, req *http.Request, logger *zerolog.Logger) ([]byte, string, []Tier) {
	for i, tier := range c.tiers {
		if stopped() {
			return nil, resultCancelled, nil
		}

		data, ok := tier.Get(ctx, key)
		if !ok {
			TierMisses.WithLabelValues(tier.Name()).Inc()
			logger.Debug().Str("tier", tier.Name()).Msg("Tier miss")
			continue
		}

		TierHits.WithLabelValues(tier.Name()).Inc()
		logger.Debug().Str("tier", tier.Name()).Int("bytes", len(data)).Msg("Tier hit")
		return data, tier.Name(), c.tiers[:i]
	}

	if stopped() {
		return nil, resultCancelled, nil
	}

	out := c.fetch(ctx, key, req)
	if !out.OK() {
		TierMisses.WithLabelValues(TierNetwork).Inc()
		trace.SpanFromContext(ctx).SetStatus(codes.Error, out.Kind.String())
		logging.Notice(logger).
			Str("url", req.URL.String()).
			Str("outcome", out.Kind.String()).
			Int("status_code", out.StatusCode).
			Err(out.Detail).
			Msg("Resource unavailable")
		return nil, resultMiss, nil
	}

	TierHits.WithLabelValues(TierNetwork).Inc()
	logger.Debug().
		Str("tier", TierNetwork).
		Int("status_code", out.StatusCode).
		Int("bytes", len(out.Data)).
		Msg("Tier hit")
	return out.Data, TierNetwork, c.tiers
}

// fetch performs the network lookup. With coalescing, concurrent callers for
// the same key share one fetch that is not bound to any single caller's
// cancellation; each caller still stops waiting when its own ctx ends.
func (c *Cache) fetch(ctx context.Context, key string, req *http.Request) fetch.Outcome {
	if !c.coalesce {
		return c.fetcher.Fetch(ctx, req)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetcher.Fetch(context.WithoutCancel(ctx), req), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(fetch.Outcome)
		if res.Shared {
			out.Data = bytes.Clone(out.Data)
		}
		return out
	case <-ctx.Done():
		return fetch.Outcome{
			Kind:   fetch.KindTransportError,
			URL:    req.URL.String(),
			Detail: ctx.Err(),
		}
	}
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Key returns the cache key for req.
func (c *Cache) Key(req *http.Request) string { return c.keyFunc(req) }

// Memory returns the in-process tier.
func (c *Cache) Memory() *MemoryTier { return c.memory }

// Disk returns the disk tier.
func (c *Cache) Disk() *DiskTier { return c.disk }

// Redis returns the Redis tier, or nil when none is configured.
func (c *Cache) Redis() *RedisTier { return c.redis }

// Close releases the memory tier. The cache must not be used afterwards.
func (c *Cache) Close() {
	c.memory.Close()
}
