// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// skipIfNoRedis skips the test if Redis is not configured.
func skipIfNoRedis(t *testing.T) string {
	url := os.Getenv("AUTHX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: AUTHX_TEST_REDIS_URL not set")
	}
	return url
}

func TestRedisCache_Basic(t *testing.T) {
	url := skipIfNoRedis(t)

	cache, err := NewRedisCache(url, "authx-test:", time.Minute)
	if err != nil {
		t.Fatalf("failed to create Redis cache: %v", err)
	}
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	key := fmt.Sprintf("user:%d", time.Now().UnixNano())

	if _, err := cache.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss before Set, got %v", err)
	}
	if err := cache.Set(ctx, key, []byte("alice"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "alice" {
		t.Errorf("Get returned %q, want alice", got)
	}

	if s := cache.Stats(); s.Hits != 1 || s.Misses != 1 || s.Sets != 1 {
		t.Errorf("stats = %+v", s)
	}
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	_ = cache.Close()
	if err := cache.Ping(ctx); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Ping after Close = %v, want ErrCacheClosed", err)
	}
}

func TestRedisCache_InvalidURL(t *testing.T) {
	if _, err := NewRedisCache("not-a-url", "test:", time.Minute); err == nil {
		t.Error("expected error with invalid URL, got nil")
	}
}

func TestRedisCache_EmptyURL(t *testing.T) {
	if _, err := NewRedisCache("", "test:", time.Minute); err == nil {
		t.Error("expected error with empty URL, got nil")
	}
}
