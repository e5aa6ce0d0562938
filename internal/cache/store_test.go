package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tbourn/telemed-orchestrator/internal/config"
)

func TestRedisStore_RoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, "test:")
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "specialties"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	stored := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Save(ctx, "specialties", Entry{Data: json.RawMessage(`[{"uuid":"a"}]`), StoredAt: stored}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("test:specialties") {
		t.Fatalf("expected prefixed key in redis")
	}

	e, ok, err := s.Load(ctx, "specialties")
	if err != nil || !ok || string(e.Data) != `[{"uuid":"a"}]` || !e.StoredAt.Equal(stored) {
		t.Fatalf("Load: ok=%v err=%v e=%+v", ok, err, e)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Load(ctx, "specialties"); ok {
		t.Fatalf("expected key to expire")
	}

	_ = s.Save(ctx, "x", Entry{Data: json.RawMessage(`[]`)}, time.Minute)
	if err := s.Delete(ctx, "x"); err != nil || mr.Exists("test:x") {
		t.Fatalf("Delete: err=%v exists=%v", err, mr.Exists("test:x"))
	}
}

func TestRedisStore_CorruptValueIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_ = mr.Set("p:bad", "{not json")
	if _, ok, err := NewRedisStore(client, "p:").Load(context.Background(), "bad"); ok || err != nil {
		t.Fatalf("expected silent miss, ok=%v err=%v", ok, err)
	}
}

func TestTTL_OverRedisStore_SharedSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "telemed:lookup:")

	var calls int32
	fetch := countingFetch(&calls, []item{{UUID: "a", Name: "Cardiologia"}})
	replicaA := NewTTL("specialties", 5*time.Minute, store, fetch)
	replicaB := NewTTL("specialties", 5*time.Minute, store, fetch)

	if _, err := replicaA.Get(context.Background(), false); err != nil {
		t.Fatalf("replica A: %v", err)
	}
	got, err := replicaB.Get(context.Background(), false)
	if err != nil || len(got) != 1 || got[0].Name != "Cardiologia" {
		t.Fatalf("replica B: got=%v err=%v", got, err)
	}
	if calls != 1 {
		t.Fatalf("replicas should share one snapshot, calls=%d", calls)
	}
}

func TestNewStore_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := NewStore(ctx, config.CacheConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", s)
	}
	_ = closeFn()

	mr := miniredis.RunT(t)
	s, closeFn, err = NewStore(ctx, config.CacheConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("expected *RedisStore, got %T", s)
	}
	_ = closeFn()

	if _, _, err := NewStore(ctx, config.CacheConfig{Backend: "redis", RedisURL: "://bad"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
