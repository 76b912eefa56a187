package prefetch

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds prefetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel loads
	MaxConcurrency int
	// Timeout per URL load
	Timeout time.Duration
	// Logger receives progress events (default: disabled)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default prefetch configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        30 * time.Second,
	}
}

// Loader resolves one request. *cache.Cache implements it.
type Loader interface {
	Get(ctx context.Context, req *http.Request) ([]byte, bool)
}

// Result holds the outcome of a warm run
type Result struct {
	// Data maps each URL that resolved to its bytes
	Data map[string][]byte
	// Failed lists URLs that resolved to nothing, sorted
	Failed []string
}

type urlResult struct {
	url  string
	data []byte
	ok   bool
}

// Prefetcher loads URLs in parallel
type Prefetcher struct {
	loader Loader
	config Config
	logger zerolog.Logger
}

// New creates a new prefetcher
func New(loader Loader, config Config) *Prefetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = config.Logger.With().Str("component", "prefetch").Logger()
	}

	return &Prefetcher{
		loader: loader,
		config: config,
		logger: logger,
	}
}

// Warm loads every URL through the loader. Duplicate URLs are loaded once.
// It returns an error only when ctx ends before every URL was processed; the
// partial result is returned alongside.
func (p *Prefetcher) Warm(ctx context.Context, urls []string) (Result, error) {
	start := time.Now()
	result := Result{Data: make(map[string][]byte)}

	unique := dedupe(urls)
	if len(unique) == 0 {
		return result, nil
	}

	p.logger.Info().
		Int("urls", len(unique)).
		Int("workers", p.config.MaxConcurrency).
		Msg("Starting prefetch")

	queue := make(chan string)
	results := make(chan urlResult)

	// Fill queue until done or cancelled
	go func() {
		defer close(queue)
		for _, u := range unique {
			select {
			case queue <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < p.config.MaxConcurrency; i++ {
		wg.Add(1)
		go p.worker(ctx, queue, results, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for r := range results {
		processed++
		if r.ok {
			result.Data[r.url] = r.data
		} else {
			result.Failed = append(result.Failed, r.url)
		}

		// Progress logging every 50 URLs
		if processed%50 == 0 {
			p.logger.Info().
				Int("processed", processed).
				Int("total", len(unique)).
				Msg("Prefetch progress")
		}
	}
	sort.Strings(result.Failed)

	if processed < len(unique) {
		p.logger.Warn().
			Int("processed", processed).
			Int("total", len(unique)).
			Msg("Prefetch interrupted - returning partial results")
		return result, fmt.Errorf("prefetch interrupted (%d/%d urls): %w", processed, len(unique), ctx.Err())
	}

	p.logger.Info().
		Int("loaded", len(result.Data)).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	return result, nil
}

// worker processes URLs from the queue
func (p *Prefetcher) worker(ctx context.Context, queue <-chan string, results chan<- urlResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for u := range queue {
		// Check context cancellation
		if ctx.Err() != nil {
			p.logger.Debug().
				Int("worker_id", workerID).
				Int("urls_processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		r := p.load(ctx, u)

		// Results are always drained by Warm
		results <- r
		processed++
	}

	if processed > 0 {
		p.logger.Debug().
			Int("worker_id", workerID).
			Int("urls_processed", processed).
			Msg("Worker completed")
	}
}

func (p *Prefetcher) load(ctx context.Context, u string) urlResult {
	loadCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(loadCtx, http.MethodGet, u, nil)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", u).Msg("Invalid prefetch URL")
		return urlResult{url: u}
	}

	data, ok := p.loader.Get(loadCtx, req)
	if !ok {
		p.logger.Debug().Str("url", u).Msg("Prefetch miss")
	}
	return urlResult{url: u, data: data, ok: ok}
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
