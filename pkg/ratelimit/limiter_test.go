package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Disabled(t *testing.T) {
	if l := New(Config{}); l != nil {
		t.Errorf("New(Config{}) = %v, want nil", l)
	}
}

func TestNilLimiter_NeverBlocks(t *testing.T) {
	var l *Limiter

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire on nil limiter failed: %v", err)
	}
	release()

	if l.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", l.InFlight())
	}
}

func TestLimiter_MaxInFlight(t *testing.T) {
	l := New(Config{MaxInFlight: 2})

	var (
		current atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", p)
	}
	if l.InFlight() != 0 {
		t.Errorf("InFlight() after all releases = %d, want 0", l.InFlight())
	}
}

func TestLimiter_ReleaseIdempotent(t *testing.T) {
	l := New(Config{MaxInFlight: 1})

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
	release()

	if l.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", l.InFlight())
	}
}

func TestLimiter_ContextCancelledWaitingForSlot(t *testing.T) {
	l := New(Config{MaxInFlight: 1})

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLimiter_RatePacing(t *testing.T) {
	l := New(Config{RequestsPerSecond: 20, Burst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		release()
	}

	// First token is free, the next two wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 acquisitions took %v, expected pacing to >= 80ms", elapsed)
	}
}
