package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a Redis client for REDIS_ADDR (default
// localhost:6379) and skips the test when no server answers.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   15, // Use a separate DB for tests
	})

	// Ping to check connection
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisTier_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisTier should panic with nil redis client")
		}
	}()
	NewRedisTier(nil, "images", zerolog.Nop())
}

func TestRedisTier_Key(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	r := NewRedisTier(client, "images", zerolog.Nop())
	if got, want := r.RedisKey("abc"), "resource-cache:images:abc"; got != want {
		t.Errorf("RedisKey() = %q, want %q", got, want)
	}
	if r.Name() != TierRedis {
		t.Errorf("Name() = %q, want %q", r.Name(), TierRedis)
	}
}

func TestRedisTier_UnreachableIsMiss(t *testing.T) {
	// Nothing listens on port 1
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := NewRedisTier(client, "images", zerolog.Nop())
	ctx := context.Background()

	r.Set(ctx, "k", []byte("dropped"))
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("unreachable Redis should report a miss")
	}
}

func TestRedisTier_GetSet(t *testing.T) {
	client := setupTestRedis(t)
	r := NewRedisTier(client, "images", zerolog.Nop())
	ctx := context.Background()

	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("Get on empty tier should miss")
	}

	r.Set(ctx, "k", []byte("shared bytes"))

	got, ok := r.Get(ctx, "k")
	if !ok {
		t.Fatal("Get after Set should hit")
	}
	if string(got) != "shared bytes" {
		t.Errorf("Get() = %q, want %q", got, "shared bytes")
	}

	ttl, err := client.TTL(ctx, r.RedisKey("k")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl != -1 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}
}
