package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := Open(context.Background(), "redis://"+s.Addr(), "proj")
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestPutAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rec := persistence.Record{Key: "resume", Owner: "user-1", Data: json.RawMessage(`{"name":"Ada"}`), UpdatedAt: at}

	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !s.Exists("folio:proj:user-1:resume") {
		t.Fatalf("expected namespaced key, have %v", s.Keys())
	}

	got, err := store.Get(ctx, "user-1", "resume")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != `{"name":"Ada"}` {
		t.Errorf("unexpected data %s", got.Data)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("expected updatedAt %v, got %v", at, got.UpdatedAt)
	}
	if got.Origin != persistence.OriginRemote {
		t.Errorf("expected origin remote, got %q", got.Origin)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "user-1", "resume")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	store, _ := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, persistence.Record{Key: "resume", Owner: "a", Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Get(ctx, "b", "resume"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected other owner to see nothing, got %v", err)
	}
}

func TestGetCorruptValue(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	if err := s.Set("folio:proj:user-1:resume", "not json"); err != nil {
		t.Fatal(err)
	}
	_, err := store.Get(context.Background(), "user-1", "resume")
	var serr *persistence.SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
}

func TestServerDown(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	s.Close()

	err := store.Put(context.Background(), persistence.Record{Key: "resume", Owner: "a", Data: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestOpenBadURL(t *testing.T) {
	if _, err := Open(context.Background(), "://nope", "proj"); err == nil {
		t.Fatal("expected parse error")
	}
}
