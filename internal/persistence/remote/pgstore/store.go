// Package pgstore keeps remote records in a Postgres table.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

const schema = `
CREATE TABLE IF NOT EXISTS remote_documents (
	project    TEXT        NOT NULL,
	owner      TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (project, owner, key)
)`

type Store struct {
	db      *sql.DB
	project string
}

var _ persistence.RemoteBackend = (*Store)(nil)

// Open connects to databaseURL with the pgx driver and ensures the schema.
func Open(ctx context.Context, databaseURL, project string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := New(db, project)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, project string) *Store {
	return &Store{db: db, project: project}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure remote_documents: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, rec persistence.Record) error {
	if !json.Valid(rec.Data) {
		return &persistence.SerializationError{Key: rec.Key, Err: errors.New("data is not valid JSON")}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remote_documents (project, owner, key, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project, owner, key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, s.project, rec.Owner, rec.Key, string(rec.Data), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert remote document: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, owner, key string) (persistence.Record, error) {
	var (
		data      string
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data, updated_at FROM remote_documents
		WHERE project = $1 AND owner = $2 AND key = $3
	`, s.project, owner, key).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Record{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Record{}, fmt.Errorf("select remote document: %w", err)
	}
	return persistence.Record{
		Key:       key,
		Owner:     owner,
		Data:      json.RawMessage(data),
		UpdatedAt: updatedAt.UTC(),
		Origin:    persistence.OriginRemote,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
