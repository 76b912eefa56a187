package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryTier_GetSet(t *testing.T) {
	m, err := NewMemoryTier(MemoryConfig{})
	if err != nil {
		t.Fatalf("NewMemoryTier() error = %v", err)
	}
	ctx := context.Background()

	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("Get on empty tier should miss")
	}

	m.Set(ctx, "k", []byte("value"))
	got, ok := m.Get(ctx, "k")
	if !ok {
		t.Fatal("Get after Set should hit")
	}
	if string(got) != "value" {
		t.Errorf("Get() = %q, want %q", got, "value")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMemoryTier_SetIdempotent(t *testing.T) {
	m, _ := NewMemoryTier(MemoryConfig{})
	ctx := context.Background()

	m.Set(ctx, "k", []byte("same"))
	m.Set(ctx, "k", []byte("same"))

	got, _ := m.Get(ctx, "k")
	if string(got) != "same" {
		t.Errorf("Get() = %q, want %q", got, "same")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMemoryTier_CopiesBytes(t *testing.T) {
	m, _ := NewMemoryTier(MemoryConfig{})
	ctx := context.Background()

	data := []byte("original")
	m.Set(ctx, "k", data)
	data[0] = 'X'

	got, _ := m.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("stored value changed by caller write: %q", got)
	}

	got[0] = 'Y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("stored value changed by reader write: %q", again)
	}
}

func TestMemoryTier_Concurrent(t *testing.T) {
	m, _ := NewMemoryTier(MemoryConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		key := fmt.Sprintf("key-%d", i)
		want := []byte(fmt.Sprintf("value-%d", i))
		go func() {
			defer wg.Done()
			m.Set(ctx, key, want)
		}()
		go func() {
			defer wg.Done()
			if got, ok := m.Get(ctx, key); ok && !bytes.Equal(got, want) {
				t.Errorf("Get(%s) = %q, want %q", key, got, want)
			}
		}()
	}
	wg.Wait()

	if m.Len() != 100 {
		t.Errorf("Len() = %d, want 100", m.Len())
	}
}

func TestMemoryTier_Bounded(t *testing.T) {
	m, err := NewMemoryTier(MemoryConfig{MaxCost: 1 << 20})
	if err != nil {
		t.Fatalf("NewMemoryTier() error = %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("bounded"))

	got, ok := m.Get(ctx, "k")
	if !ok {
		t.Fatal("Get after Set should hit in bounded tier")
	}
	if string(got) != "bounded" {
		t.Errorf("Get() = %q, want %q", got, "bounded")
	}
}

func TestMemoryTier_Name(t *testing.T) {
	m, _ := NewMemoryTier(MemoryConfig{})
	if m.Name() != TierMemory {
		t.Errorf("Name() = %q, want %q", m.Name(), TierMemory)
	}
}
