package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestKey(t *testing.T) {
	a := Key("m", "sys", "user")
	if a != Key("m", "sys", "user") {
		t.Error("Key is not deterministic")
	}
	if a == Key("m", "sysuser", "") {
		t.Error("Key must separate its parts")
	}
	if a == Key("other", "sys", "user") {
		t.Error("Key must depend on the model")
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	_ = c.Set(ctx, "k", "v")
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}

	_ = c.Set(ctx, "k", "v2")
	_ = c.Close()
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected Close to clear entries")
	}
}

func TestRedis(t *testing.T) {
	url := os.Getenv("QA_MCP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("QA_MCP_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer c.Close()

	key := "qa-mcp:test:" + uuid.NewString()
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, key, "cached"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := c.Get(ctx, key); err != nil || !ok || v != "cached" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not-a-url", time.Minute); err == nil {
		t.Error("expected parse error")
	}
}
