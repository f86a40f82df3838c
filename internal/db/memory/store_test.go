package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/jobrag/internal/db"
)

func TestHash_SetGetDel(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.HSet(ctx, "k", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("hset: %v", err)
	}
	if err := s.HSet(ctx, "k", map[string]string{"b": "3"}); err != nil {
		t.Fatalf("hset: %v", err)
	}

	m, err := s.HGetAll(ctx, "k")
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if m["a"] != "1" || m["b"] != "3" {
		t.Errorf("unexpected hash: %v", m)
	}

	m["a"] = "mutated"
	again, _ := s.HGetAll(ctx, "k")
	if again["a"] != "1" {
		t.Error("HGetAll must return a copy")
	}

	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	gone, _ := s.HGetAll(ctx, "k")
	if len(gone) != 0 {
		t.Errorf("expected empty hash after delete, got %v", gone)
	}
}

func TestHSet_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewStore().HSet(ctx, "k", map[string]string{"a": "1"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpHSet {
		t.Fatalf("expected db.Error for HSET, got %v", err)
	}
}

func TestKV_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Fatalf("expected v, got %q, %v", v, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after expiry, got %v", err)
	}
}

func TestIncrByAndExpireNX(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for range 3 {
		if err := s.IncrBy(ctx, "c", 5); err != nil {
			t.Fatal(err)
		}
	}
	v, err := s.Get(ctx, "c")
	if err != nil || string(v) != "15" {
		t.Fatalf("expected 15, got %q, %v", v, err)
	}

	_ = s.Expire(ctx, "c", time.Hour, true)
	_ = s.Expire(ctx, "c", 10*time.Hour, true)

	now = now.Add(2 * time.Hour)
	if ok, _ := s.Exists(ctx, "c"); ok {
		t.Error("NX expire must keep the first TTL")
	}
}

func TestScan_Glob(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.HSet(ctx, "jobrag:snapshot:job:t2", map[string]string{"x": "1"})
	_ = s.HSet(ctx, "jobrag:snapshot:job:t1", map[string]string{"x": "1"})
	_ = s.Set(ctx, "jobrag:emb:abc", []byte("v"))

	keys, err := s.Scan(ctx, "jobrag:snapshot:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "jobrag:snapshot:job:t1" {
		t.Errorf("unexpected keys: %v", keys)
	}
}
