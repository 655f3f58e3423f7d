// Package redisstore keeps remote records as JSON values in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

// Store implements persistence.RemoteBackend on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

var _ persistence.RemoteBackend = (*Store)(nil)

// Open connects to redisURL and namespaces keys under project.
func Open(ctx context.Context, redisURL, project string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, project), nil
}

// NewWithClient creates a store from an existing Redis client.
func NewWithClient(client *redis.Client, project string) *Store {
	return &Store{
		client: client,
		prefix: "folio:" + project + ":",
	}
}

func (s *Store) key(owner, key string) string {
	return s.prefix + owner + ":" + key
}

func (s *Store) Put(ctx context.Context, rec persistence.Record) error {
	rec.Origin = persistence.OriginRemote
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return &persistence.SerializationError{Key: rec.Key, Err: err}
	}
	if err := s.client.Set(ctx, s.key(rec.Owner, rec.Key), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("save remote record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, owner, key string) (persistence.Record, error) {
	jsonData, err := s.client.Get(ctx, s.key(owner, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return persistence.Record{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Record{}, fmt.Errorf("lookup remote record: %w", err)
	}

	var rec persistence.Record
	if err := json.Unmarshal(jsonData, &rec); err != nil {
		return persistence.Record{}, &persistence.SerializationError{Key: key, Err: err}
	}
	return rec, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
