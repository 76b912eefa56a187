// Package cache provides a multi-tier cache for remote byte resources.
//
// A load consults the tiers in order and stops at the first hit:
//
//   - memory: in-process map (optionally bounded with ristretto)
//   - disk: one file per key under <cache root>/resource-cache/<name>/
//   - redis: optional shared store, enabled by Config.Redis
//   - network: an HTTP fetch through pkg/fetch
//
// A hit in a slower tier is copied into every faster tier. A network success
// is written to all tiers, persistent ones first and memory last. A network
// failure (transport error, status outside 200..299, empty body) completes
// with nil and populates nothing.
//
// # Basic Usage
//
//	c, err := cache.New(cache.DefaultConfig("images"))
//	if err != nil {
//		return err
//	}
//
//	c.LoadURL("https://ex.test/a.png", func(data []byte) {
//		if data == nil {
//			// absent from every tier
//			return
//		}
//		// use data
//	})
//
// The completion runs exactly once on a goroutine owned by the cache, never
// on the caller's goroutine. Load returns a Handle whose Cancel abandons the
// load; a load cancelled before its completion completes with nil. Bytes
// handed to a completion are always stored.
//
// # Keys
//
// The default key is the hex MD5 digest of the parsed request URL's
// canonical string (URLKey). Method and headers are ignored, so requests
// that differ only there share an entry. MethodURLKey and HeaderKey are stricter policies.
//
// # Concurrency
//
// Concurrent loads for the same uncached key each fetch independently unless
// Config.Coalesce is set, which shares one fetch per key through
// singleflight. Disk writes go to a temp file renamed into place, so a reader
// never sees a partial file.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - rescache_tier_hits_total{tier} - Lookups answered by a tier
//   - rescache_tier_misses_total{tier} - Lookups a tier could not answer
//   - rescache_tier_errors_total{tier,operation} - Swallowed I/O errors
//   - rescache_loads_total{result} - Completed loads by answering tier
//   - rescache_promoted_bytes_total{tier} - Bytes written into a tier
package cache
