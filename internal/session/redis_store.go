// Package session tracks whether a signed-in user is present so the
// persistence facade can decide whether remote writes are allowed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoToken means no session token has been stored.
var ErrNoToken = errors.New("no stored session")

// TokenStore persists the current session token across restarts.
type TokenStore interface {
	SaveToken(ctx context.Context, token string, expiresAt time.Time) error
	LoadToken(ctx context.Context) (string, error)
	DeleteToken(ctx context.Context) error
}

// TokenData holds the data stored for the session token
type TokenData struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore keeps one device's session token in Redis
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ TokenStore = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed session store for device
func NewRedisStore(redisURL, device string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, device), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, device string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    "session:" + device,
	}
}

// SaveToken stores the token until it expires
func (s *RedisStore) SaveToken(ctx context.Context, token string, expiresAt time.Time) error {
	jsonData, err := json.Marshal(TokenData{
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save session token: %w", ErrExpiredToken)
	}

	if err := s.client.Set(ctx, s.key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

// LoadToken returns the stored token or ErrNoToken
func (s *RedisStore) LoadToken(ctx context.Context) (string, error) {
	jsonData, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("lookup session token: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return "", fmt.Errorf("unmarshal token data: %w", err)
	}
	return data.Token, nil
}

// DeleteToken removes the stored token
func (s *RedisStore) DeleteToken(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("revoke session token: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
