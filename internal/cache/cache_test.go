package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "greeting", "hello", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := cache.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "hello" {
		t.Errorf("Expected hello, got %q", val)
	}
}

func TestRedisCache_GetMissingKey(t *testing.T) {
	cache, _ := setupTestCache(t)

	val, err := cache.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "" {
		t.Errorf("Expected empty string for missing key, got %q", val)
	}
}

func TestRedisCache_Expiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "ephemeral", "soon gone", time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	val, err := cache.Get(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "" {
		t.Errorf("Expected expired key to read as empty, got %q", val)
	}
}

func TestRedisCache_Del(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.Set(ctx, "b", "2", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := cache.Del(ctx, "a", "b"); err != nil {
		t.Fatalf("Del failed: %v", err)
	}

	for _, key := range []string{"a", "b"} {
		val, err := cache.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != "" {
			t.Errorf("Expected %s deleted, got %q", key, val)
		}
	}
}
