package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
)

const defaultRemoteTimeout = 15 * time.Second

// Options configures a Facade. Only the local backend is mandatory.
type Options[T any] struct {
	Remote        RemoteBackend
	Auth          Authenticator
	Codec         Codec[T]
	Journal       Journal
	Reporter      telemetry.Reporter
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
	Now           func() time.Time
	RemoteTimeout time.Duration
}

// Facade writes local-first and mirrors to the remote tier in the
// background. Callers cannot tell which tier served a load: loads are
// always local.
type Facade[T any] struct {
	local         LocalBackend
	remote        RemoteBackend
	auth          Authenticator
	codec         Codec[T]
	journal       Journal
	reporter      telemetry.Reporter
	metrics       *telemetry.Metrics
	logger        *slog.Logger
	now           func() time.Time
	remoteTimeout time.Duration

	mu     sync.Mutex
	lanes  map[string]*remoteLane
	closed bool
	wg     sync.WaitGroup
	pulls  singleflight.Group
}

// remoteLane serializes remote writes for one key. While a write is in
// flight, newer records overwrite the single pending slot.
type remoteLane struct {
	pending    *Record
	pendingCtx context.Context
}

// PullOutcome describes what an explicit pull did.
type PullOutcome string

const (
	PullApplied       PullOutcome = "applied"
	PullLocalNewer    PullOutcome = "local_newer"
	PullRemoteMissing PullOutcome = "remote_missing"
)

type PullResult struct {
	Outcome     PullOutcome `json:"outcome"`
	RemoteSaved time.Time   `json:"remoteSaved,omitempty"`
	LocalSaved  time.Time   `json:"localSaved,omitempty"`
}

// New returns a Facade over local. Remote may be nil for local-only mode.
func New[T any](local LocalBackend, opts Options[T]) *Facade[T] {
	f := &Facade[T]{
		local:         local,
		remote:        opts.Remote,
		auth:          opts.Auth,
		codec:         opts.Codec,
		journal:       opts.Journal,
		reporter:      opts.Reporter,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
		remoteTimeout: opts.RemoteTimeout,
		lanes:         make(map[string]*remoteLane),
	}
	if f.codec == nil {
		f.codec = JSONCodec[T]{}
	}
	if f.reporter == nil {
		f.reporter = telemetry.Nop()
	}
	if f.logger == nil {
		f.logger = telemetry.Discard()
	}
	f.logger = f.logger.With("component", "facade")
	if f.now == nil {
		f.now = time.Now
	}
	if f.remoteTimeout <= 0 {
		f.remoteTimeout = defaultRemoteTimeout
	}
	return f
}

// IsRemoteAvailable reports whether a remote backend was initialized and a
// session is currently authenticated.
func (f *Facade[T]) IsRemoteAvailable() bool {
	if f.remote == nil {
		return false
	}
	_, ok := f.subject()
	return ok
}

// Save persists doc under key. The returned time is the local save time.
// Only local failures fail the call.
func (f *Facade[T]) Save(ctx context.Context, key string, doc T) (time.Time, error) {
	if !ValidKey(key) {
		return time.Time{}, &LocalWriteError{Key: key, Err: ErrInvalidKey}
	}

	data, err := f.codec.Marshal(doc)
	if err != nil {
		return time.Time{}, &SerializationError{Key: key, Err: err}
	}

	savedAt := f.now().UTC()
	rec := Record{Key: key, Data: data, UpdatedAt: savedAt, Origin: OriginLocal}
	owner, signedIn := f.subject()
	if signedIn {
		rec.Owner = owner
	}

	if err := f.local.Put(ctx, rec); err != nil {
		return time.Time{}, localWriteError(key, err)
	}

	if f.journal != nil {
		if err := f.journal.Record(ctx, key, data, savedAt); err != nil {
			f.reporter.Report(ctx, telemetry.Event{
				Kind:     telemetry.KindLocalWrite,
				Severity: telemetry.SeverityWarning,
				Op:       "journal",
				Key:      key,
				Err:      err,
			})
		}
	}

	switch {
	case f.remote == nil:
	case !signedIn:
		telemetry.LoggerFrom(ctx, f.logger).Debug("remote write skipped, no session", "key", key)
	default:
		f.enqueueRemote(ctx, rec)
	}

	telemetry.LoggerFrom(ctx, f.logger).Debug("document saved", "key", key, "bytes", len(data))
	return savedAt, nil
}

// Load reads key from the local tier.
func (f *Facade[T]) Load(ctx context.Context, key string) (T, error) {
	var zero T
	rec, err := f.LoadRecord(ctx, key)
	if err != nil {
		return zero, err
	}
	doc, err := f.codec.Unmarshal(rec.Data)
	if err != nil {
		return zero, &SerializationError{Key: key, Err: err}
	}
	return doc, nil
}

// LoadRecord returns the raw local record for key.
func (f *Facade[T]) LoadRecord(ctx context.Context, key string) (Record, error) {
	rec, err := f.local.Get(ctx, key)
	if err != nil {
		return Record{}, fmt.Errorf("load %q: %w", key, err)
	}
	return rec, nil
}

// Saver adapts the facade to the autosave save function for one key.
func (f *Facade[T]) Saver(key string) func(context.Context, T) error {
	return func(ctx context.Context, doc T) error {
		_, err := f.Save(ctx, key, doc)
		return err
	}
}

// Pull fetches the remote record for key and applies it locally when it is
// newer than the local one. Concurrent pulls of one key share a flight.
func (f *Facade[T]) Pull(ctx context.Context, key string) (PullResult, error) {
	owner, ok := f.subject()
	if f.remote == nil || !ok {
		return PullResult{}, &RemoteUnavailableError{Op: "pull", Key: key, Err: ErrRemoteDisabled}
	}
	v, err, _ := f.pulls.Do(key, func() (any, error) {
		return f.pull(ctx, owner, key)
	})
	if err != nil {
		return PullResult{}, err
	}
	return v.(PullResult), nil
}

func (f *Facade[T]) pull(ctx context.Context, owner, key string) (PullResult, error) {
	remoteRec, err := f.remote.Get(ctx, owner, key)
	if errors.Is(err, ErrNotFound) {
		return PullResult{Outcome: PullRemoteMissing}, nil
	}
	if err != nil {
		return PullResult{}, &RemoteUnavailableError{Op: "get", Key: key, Err: err}
	}

	result := PullResult{RemoteSaved: remoteRec.UpdatedAt}
	localRec, err := f.local.Get(ctx, key)
	switch {
	case err == nil:
		result.LocalSaved = localRec.UpdatedAt
		if !remoteRec.UpdatedAt.After(localRec.UpdatedAt) {
			result.Outcome = PullLocalNewer
			return result, nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		return PullResult{}, fmt.Errorf("pull %q: read local: %w", key, err)
	}

	if _, err := f.codec.Unmarshal(remoteRec.Data); err != nil {
		return PullResult{}, &SerializationError{Key: key, Err: err}
	}
	remoteRec.Key = key
	remoteRec.Origin = OriginRemote
	if err := f.local.Put(ctx, remoteRec); err != nil {
		return PullResult{}, localWriteError(key, err)
	}
	result.Outcome = PullApplied
	f.logger.Info("pulled remote document", "key", key, "remote_saved", remoteRec.UpdatedAt)
	return result, nil
}

// Wait blocks until queued remote writes have finished.
func (f *Facade[T]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting remote writes, waits for queued ones and closes the
// remote backend.
func (f *Facade[T]) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	if err := f.Wait(ctx); err != nil {
		return err
	}
	if f.remote != nil {
		return f.remote.Close()
	}
	return nil
}

func (f *Facade[T]) subject() (string, bool) {
	if f.auth == nil {
		return "", false
	}
	return f.auth.Subject()
}

func (f *Facade[T]) enqueueRemote(ctx context.Context, rec Record) {
	// The write outlives the caller; keep its values but not its deadline.
	ctx = context.WithoutCancel(ctx)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if lane, busy := f.lanes[rec.Key]; busy {
		lane.pending = &rec
		lane.pendingCtx = ctx
		f.mu.Unlock()
		return
	}
	f.lanes[rec.Key] = &remoteLane{}
	f.wg.Add(1)
	f.mu.Unlock()

	go f.drain(ctx, rec)
}

func (f *Facade[T]) drain(ctx context.Context, rec Record) {
	defer f.wg.Done()
	for {
		f.writeRemote(ctx, rec)

		f.mu.Lock()
		lane := f.lanes[rec.Key]
		if lane.pending == nil {
			delete(f.lanes, rec.Key)
			f.mu.Unlock()
			return
		}
		rec, ctx = *lane.pending, lane.pendingCtx
		lane.pending, lane.pendingCtx = nil, nil
		f.mu.Unlock()
	}
}

func (f *Facade[T]) writeRemote(ctx context.Context, rec Record) {
	writeCtx, cancel := context.WithTimeout(ctx, f.remoteTimeout)
	defer cancel()

	if err := f.remote.Put(writeCtx, rec); err != nil {
		f.metrics.IncRemoteWrite("failed")
		f.reporter.Report(ctx, telemetry.Event{
			Kind:     telemetry.KindRemoteUnavailable,
			Severity: telemetry.SeverityWarning,
			Op:       "remote_put",
			Key:      rec.Key,
			Err:      &RemoteUnavailableError{Op: "put", Key: rec.Key, Err: err},
		})
		return
	}
	f.metrics.IncRemoteWrite("ok")
	telemetry.LoggerFrom(ctx, f.logger).Debug("remote write done", "key", rec.Key, "owner", rec.Owner)
}
