package local

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

// MemoryStore is a LocalBackend that lives only as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]persistence.Record
}

var _ persistence.LocalBackend = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]persistence.Record)}
}

func (m *MemoryStore) Put(ctx context.Context, rec persistence.Record) error {
	if err := ctx.Err(); err != nil {
		return &persistence.LocalWriteError{Key: rec.Key, Err: err}
	}
	if !persistence.ValidKey(rec.Key) {
		return &persistence.LocalWriteError{Key: rec.Key, Err: persistence.ErrInvalidKey}
	}
	rec.Data = bytes.Clone(rec.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return persistence.Record{}, persistence.ErrNotFound
	}
	rec.Data = bytes.Clone(rec.Data)
	return rec, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
