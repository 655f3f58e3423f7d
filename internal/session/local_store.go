package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

// LocalStoreKey is the record key reserved for the session token.
const LocalStoreKey = "__session__"

// LocalStore keeps the session token in the local persistence tier.
type LocalStore struct {
	backend persistence.LocalBackend
}

var _ TokenStore = (*LocalStore)(nil)

func NewLocalStore(backend persistence.LocalBackend) *LocalStore {
	return &LocalStore{backend: backend}
}

func (s *LocalStore) SaveToken(ctx context.Context, token string, expiresAt time.Time) error {
	data, err := json.Marshal(TokenData{Token: token, CreatedAt: time.Now(), ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}
	return s.backend.Put(ctx, persistence.Record{
		Key:       LocalStoreKey,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
		Origin:    persistence.OriginLocal,
	})
}

func (s *LocalStore) LoadToken(ctx context.Context) (string, error) {
	rec, err := s.backend.Get(ctx, LocalStoreKey)
	if errors.Is(err, persistence.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("lookup session token: %w", err)
	}
	var data TokenData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		return "", fmt.Errorf("unmarshal token data: %w", err)
	}
	return data.Token, nil
}

func (s *LocalStore) DeleteToken(ctx context.Context) error {
	return s.backend.Delete(ctx, LocalStoreKey)
}
