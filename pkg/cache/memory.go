package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// MemoryConfig holds the in-process tier configuration.
type MemoryConfig struct {
	// MaxCost bounds the tier by total payload bytes. Zero (the default)
	// keeps every entry for the lifetime of the process.
	MaxCost int64

	// NumCounters is the number of frequency counters for the bounded tier
	// (default: 10 per expected entry, derived from MaxCost / 1KiB).
	NumCounters int64
}

// MemoryTier is the in-process tier. It is safe for concurrent use.
type MemoryTier struct {
	mu    sync.RWMutex
	items map[string][]byte

	// bounded is set when MaxCost > 0; items is unused in that mode.
	bounded *ristretto.Cache[string, []byte]
}

// NewMemoryTier creates the in-process tier.
func NewMemoryTier(cfg MemoryConfig) (*MemoryTier, error) {
	if cfg.MaxCost <= 0 {
		return &MemoryTier{items: make(map[string][]byte)}, nil
	}

	counters := cfg.NumCounters
	if counters <= 0 {
		counters = cfg.MaxCost / 1024 * 10
		if counters < 1000 {
			counters = 1000
		}
	}

	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create bounded memory tier: %w", err)
	}
	return &MemoryTier{bounded: rc}, nil
}

// Name implements Tier.
func (m *MemoryTier) Name() string { return TierMemory }

// Get implements Tier. The returned slice is a copy.
func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool) {
	if m.bounded != nil {
		v, ok := m.bounded.Get(key)
		if !ok {
			return nil, false
		}
		return bytes.Clone(v), true
	}

	m.mu.RLock()
	v, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Set implements Tier. The tier keeps its own copy of data.
func (m *MemoryTier) Set(_ context.Context, key string, data []byte) {
	if m.bounded != nil {
		m.bounded.Set(key, bytes.Clone(data), int64(len(data)))
		m.bounded.Wait()
		return
	}

	v := bytes.Clone(data)
	m.mu.Lock()
	m.items[key] = v
	m.mu.Unlock()
}

// Len returns the number of entries. For a bounded tier the count is
// approximate.
func (m *MemoryTier) Len() int {
	if m.bounded != nil {
		metrics := m.bounded.Metrics
		if metrics == nil {
			return 0
		}
		return int(metrics.KeysAdded() - metrics.KeysEvicted())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close releases the bounded tier's background goroutines. It is a no-op for
// the unbounded tier.
func (m *MemoryTier) Close() {
	if m.bounded != nil {
		m.bounded.Close()
	}
}
