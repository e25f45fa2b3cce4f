package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNoopURLCacheAlwaysMisses(t *testing.T) {
	var c URLCache = NoopURLCache{}
	ctx := context.Background()
	if err := c.Set(ctx, "k", "https://example.test/x", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisURLCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("CANTEEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set CANTEEN_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisURLCache(addr, os.Getenv("CANTEEN_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() {
		_ = c.Close()
	})
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "daily_reports/it_" + time.Now().Format("150405.000000") + ".xlsx"
	if err := c.Set(ctx, key, "https://example.test/signed", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || got != "https://example.test/signed" {
		t.Fatalf("unexpected get: %q ok=%v err=%v", got, ok, err)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("expected miss after delete")
	}
}
