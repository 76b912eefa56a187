//go:build integration

package cache

import (
	"context"
	"net/http"
	"testing"

	"github.com/Sternrassler/resource-cache/internal/testutil"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestCache_Integration_RedisSharedAcrossInstances(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/a.png", testutil.NewOKResponse([]byte("0123456789")))

	newCache := func() *Cache {
		cfg := DefaultConfig("images")
		cfg.FS = memfs.New()
		cfg.Redis = client
		cfg.Fetch.HTTPClient = origin.Client()
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	first := newCache()
	req, _ := http.NewRequest(http.MethodGet, origin.URL()+"/a.png", nil)
	if data, ok := first.Get(context.Background(), req); !ok || string(data) != "0123456789" {
		t.Fatalf("first Get() = %q, %v", data, ok)
	}

	// A second instance with empty memory and disk finds the bytes in Redis
	second := newCache()
	data, ok := second.Get(context.Background(), req)
	if !ok || string(data) != "0123456789" {
		t.Fatalf("second Get() = %q, %v", data, ok)
	}
	if n := origin.RequestCount(); n != 1 {
		t.Errorf("origin requests = %d, want 1", n)
	}

	key := second.Key(req)
	if _, ok := second.Disk().Get(context.Background(), key); !ok {
		t.Error("Redis hit should promote into the disk tier")
	}
	if _, ok := second.Memory().Get(context.Background(), key); !ok {
		t.Error("Redis hit should promote into the memory tier")
	}
}
