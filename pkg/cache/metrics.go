package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier names used as metric labels and log fields.
const (
	TierMemory  = "memory"
	TierDisk    = "disk"
	TierRedis   = "redis"
	TierNetwork = "network"
)

var (
	// TierHits tracks lookups answered by a tier
	TierHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_tier_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"}, // "memory", "disk", "redis"
	)

	// TierMisses tracks lookups a tier could not answer
	TierMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_tier_misses_total",
			Help: "Total number of cache misses by tier",
		},
		[]string{"tier"},
	)

	// TierErrors tracks I/O failures that were logged and swallowed
	TierErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_tier_errors_total",
			Help: "Total number of tier I/O errors",
		},
		[]string{"tier", "operation"}, // "get", "set", "init"
	)

	// Loads tracks completed loads by result
	Loads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_loads_total",
			Help: "Total number of completed loads by result",
		},
		[]string{"result"}, // "memory", "disk", "redis", "network", "miss", "cancelled"
	)

	// PromotedBytes tracks bytes written into faster tiers after a slower hit
	PromotedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_promoted_bytes_total",
			Help: "Total number of bytes promoted into a tier",
		},
		[]string{"tier"},
	)
)
