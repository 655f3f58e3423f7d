// Package local implements the on-device tier: a directory of JSON
// envelopes written atomically, plus an in-memory variant.
package local

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

const fileSuffix = ".json"

// Options tunes a FileStore.
type Options struct {
	// MaxRecordBytes rejects envelopes larger than this. Zero means no limit.
	MaxRecordBytes int64
}

// FileStore keeps one file per key. Writes to one key are serialized;
// writes to different keys proceed independently.
type FileStore struct {
	dir  string
	opts Options

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

type envelope struct {
	Key       string             `json:"key"`
	Owner     string             `json:"owner,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Origin    persistence.Origin `json:"origin"`
	Data      json.RawMessage    `json:"data"`
}

var _ persistence.LocalBackend = (*FileStore)(nil)

var shared = struct {
	mu     sync.Mutex
	stores map[string]*FileStore
}{stores: make(map[string]*FileStore)}

// Shared returns the process-wide FileStore for dir, opening it on first use.
// opts only apply to the first call for a directory.
func Shared(dir string, opts Options) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store dir: %w", err)
	}

	shared.mu.Lock()
	defer shared.mu.Unlock()
	if s, ok := shared.stores[abs]; ok {
		return s, nil
	}
	s, err := Open(abs, opts)
	if err != nil {
		return nil, err
	}
	shared.stores[abs] = s
	return s, nil
}

// Open returns a FileStore rooted at dir, creating it if needed.
func Open(dir string, opts Options) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local store dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{
		dir:   dir,
		opts:  opts,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Put(ctx context.Context, rec persistence.Record) error {
	if err := ctx.Err(); err != nil {
		return &persistence.LocalWriteError{Key: rec.Key, Err: err}
	}
	if !persistence.ValidKey(rec.Key) {
		return &persistence.LocalWriteError{Key: rec.Key, Err: persistence.ErrInvalidKey}
	}

	payload, err := json.Marshal(envelope{
		Key:       rec.Key,
		Owner:     rec.Owner,
		UpdatedAt: rec.UpdatedAt,
		Origin:    rec.Origin,
		Data:      rec.Data,
	})
	if err != nil {
		return &persistence.SerializationError{Key: rec.Key, Err: err}
	}
	if s.opts.MaxRecordBytes > 0 && int64(len(payload)) > s.opts.MaxRecordBytes {
		return &persistence.LocalWriteError{
			Key: rec.Key,
			Err: fmt.Errorf("%w: %d bytes exceeds %d", persistence.ErrQuotaExceeded, len(payload), s.opts.MaxRecordBytes),
		}
	}

	lock := s.keyLock(rec.Key)
	lock.Lock()
	defer lock.Unlock()

	if err := writeAtomic(s.dir, s.path(rec.Key), payload); err != nil {
		return &persistence.LocalWriteError{Key: rec.Key, Err: err}
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}
	if !persistence.ValidKey(key) {
		return persistence.Record{}, persistence.ErrInvalidKey
	}

	lock := s.keyLock(key)
	lock.Lock()
	payload, err := os.ReadFile(s.path(key))
	lock.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return persistence.Record{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Record{}, fmt.Errorf("read record: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return persistence.Record{}, &persistence.SerializationError{Key: key, Err: err}
	}
	return persistence.Record{
		Key:       env.Key,
		Owner:     env.Owner,
		Data:      env.Data,
		UpdatedAt: env.UpdatedAt,
		Origin:    env.Origin,
	}, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !persistence.ValidKey(key) {
		return persistence.ErrInvalidKey
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list store dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, string(raw))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileSuffix)
}

func (s *FileStore) keyLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[key]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

// writeAtomic replaces path with data via a synced temp file and rename, so
// a crash leaves either the old or the new record, never a torn one.
func writeAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
