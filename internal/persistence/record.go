// Package persistence is the dual-tier save/load contract behind the
// autosave controller. Local writes are synchronous and decide the outcome
// of a save; remote writes are queued per key and strictly best-effort.
package persistence

import (
	"context"
	"encoding/json"
	"time"
)

// Origin records which tier last produced a record.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// MaxKeyLength bounds keys so every backend can use them in names and paths.
const MaxKeyLength = 128

// Record is one persisted document snapshot. Data holds the codec output,
// which must be JSON.
type Record struct {
	Key       string          `json:"key"`
	Owner     string          `json:"owner,omitempty"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Origin    Origin          `json:"origin"`
}

// LocalBackend is the on-device store. Implementations must make Put durable
// before returning.
type LocalBackend interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, key string) (Record, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// RemoteBackend is a network document store scoped by owner.
type RemoteBackend interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, owner, key string) (Record, error)
	Close() error
}

// Authenticator reports the subject of the current session.
type Authenticator interface {
	Subject() (string, bool)
}

// Journal keeps a revision trail of local saves.
type Journal interface {
	Record(ctx context.Context, key string, data []byte, at time.Time) error
}

// StaticOwner is an Authenticator that is always signed in as one subject.
type StaticOwner string

func (s StaticOwner) Subject() (string, bool) {
	return string(s), s != ""
}

// ValidKey reports whether key is usable by every backend.
func ValidKey(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
