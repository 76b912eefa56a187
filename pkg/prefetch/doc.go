// Package prefetch warms a resource cache ahead of use.
//
// A Prefetcher pushes a list of URLs through a worker pool; every URL is
// resolved with the loader's synchronous Get, so tiers are populated when
// Warm returns.
//
// Example usage:
//
//	c, _ := cache.New(cache.DefaultConfig("images"))
//	p := prefetch.New(c, prefetch.DefaultConfig())
//	result, err := p.Warm(ctx, []string{"https://ex.test/a.png"})
//
// The prefetcher:
//   - Loads each distinct URL once
//   - Bounds parallelism with MaxConcurrency workers (default 10)
//   - Applies Timeout to each URL
//   - Returns partial results when the context ends early
package prefetch
