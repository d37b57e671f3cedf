package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestNewStoreRequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Error("Expected error for empty addrs")
	}
}

// Runs against a live server when REDIS_ADDR is set.
func TestStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	store, err := NewStore(Config{Addrs: []string{addr}, TTL: time.Minute})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	key := "argoquery:test:" + time.Now().Format(time.RFC3339Nano)
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if err := store.Set(ctx, key, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil || len(got) != 3 || got[2] != 3 {
		t.Errorf("Unexpected value %v (%v)", got, err)
	}
}
