package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/autosave"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/config"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/history"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/local"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/resume"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/session"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/timing"
)

const statusInterval = 250 * time.Millisecond

// Options overrides the backends New would otherwise build from config.
type Options struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Local   persistence.LocalBackend
	Remote  persistence.RemoteBackend
	Tokens  session.TokenStore
	Clock   timing.Clock
}

// Service owns one editing session: the persistence facade, the session
// and the autosave controller for the configured document.
type Service struct {
	cfg      config.Config
	key      string
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	reporter telemetry.Reporter

	local    persistence.LocalBackend
	remote   bool
	sessions *session.Manager
	history  *history.Service
	docs     *persistence.Facade[resume.Resume]
	editor   *autosave.Controller[resume.Resume]
	status   *timing.Throttler[autosave.State]
	closers  []io.Closer
}

// DocumentStatus is the controller status as served to clients.
type DocumentStatus struct {
	State             autosave.State `json:"state"`
	IsSaving          bool           `json:"isSaving"`
	LastSaved         *time.Time     `json:"lastSaved"`
	LastError         string         `json:"lastError,omitempty"`
	LastErrorKind     string         `json:"lastErrorKind,omitempty"`
	HasUnsavedChanges bool           `json:"hasUnsavedChanges"`
	Autosave          bool           `json:"autosave"`
	RemoteAvailable   bool           `json:"remoteAvailable"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// SessionInfo describes the signed-in user.
type SessionInfo struct {
	SignedIn  bool       `json:"signedIn"`
	Subject   string     `json:"subject,omitempty"`
	Name      string     `json:"name,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// New wires the persistence stack for cfg. Remote misconfiguration is not
// an error: the service logs it once and runs local-only.
func New(ctx context.Context, cfg config.Config, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	s := &Service{
		cfg:      cfg,
		key:      cfg.DocumentKey,
		logger:   logger,
		metrics:  opts.Metrics,
		reporter: telemetry.NewLogReporter(logger, opts.Metrics),
	}
	if !persistence.ValidKey(s.key) {
		return nil, fmt.Errorf("invalid document key %q", s.key)
	}
	if s.key == session.LocalStoreKey {
		return nil, fmt.Errorf("document key %q is reserved for the session token", s.key)
	}

	s.local = opts.Local
	if s.local == nil {
		store, err := local.Shared(cfg.StoreDir(), local.Options{MaxRecordBytes: cfg.MaxRecordBytes})
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		s.local = store
	}

	if err := s.openSession(ctx, opts.Tokens); err != nil {
		s.closeAll()
		return nil, err
	}

	backend := opts.Remote
	if backend == nil {
		backend = s.openRemote(ctx)
	}
	s.remote = backend != nil

	if cfg.HistoryEnabled {
		s.history = history.New(cfg.HistoryDir(), "")
	}

	facadeOpts := persistence.Options[resume.Resume]{
		Remote:        backend,
		Auth:          s.sessions,
		Reporter:      s.reporter,
		Metrics:       s.metrics,
		Logger:        logger,
		RemoteTimeout: cfg.RemoteTimeout,
	}
	if s.history != nil {
		facadeOpts.Journal = s.history
	}
	s.docs = persistence.New[resume.Resume](s.local, facadeOpts)

	initial, err := s.docs.Load(ctx, s.key)
	switch {
	case err == nil:
	case errors.Is(err, persistence.ErrNotFound):
		initial = resume.Resume{}
	default:
		_ = s.docs.Close(ctx)
		s.closeAll()
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}

	s.status = timing.NewThrottler(opts.Clock, statusInterval, autosave.Idle, func(state autosave.State) {
		logger.Debug("autosave status", "key", s.key, "state", state.String())
	})
	s.editor = autosave.New(initial, s.docs.Saver(s.key), autosave.Options[resume.Resume]{
		Delay:        cfg.AutosaveDelay,
		Disabled:     !cfg.AutosaveOn,
		Clock:        opts.Clock,
		Key:          s.key,
		Logger:       logger,
		Reporter:     s.reporter,
		Metrics:      s.metrics,
		OnTransition: func(_, to autosave.State) { s.status.Set(to) },
	})
	return s, nil
}

func (s *Service) openSession(ctx context.Context, tokens session.TokenStore) error {
	if tokens == nil && s.cfg.RedisURL != "" {
		store, err := session.NewRedisStore(s.cfg.RedisURL, s.key)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		s.closers = append(s.closers, store)
		tokens = store
	}
	if tokens == nil {
		tokens = session.NewLocalStore(s.local)
	}
	s.sessions = session.NewManager([]byte(s.cfg.SessionSecret), tokens, nil)
	if err := s.sessions.Restore(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Service) openRemote(ctx context.Context) persistence.RemoteBackend {
	backend, err := remote.Open(ctx, s.cfg.Remote)
	if errors.Is(err, remote.ErrNotConfigured) {
		s.logger.Warn("remote persistence not configured, running local-only")
		return nil
	}
	if err != nil {
		s.reporter.Report(ctx, telemetry.Event{
			Kind:     telemetry.KindOf(err),
			Severity: telemetry.SeverityWarning,
			Op:       "init",
			Err:      err,
		})
		return nil
	}
	s.logger.Info("remote persistence enabled", "driver", string(s.cfg.Remote.Normalize().Driver))
	return backend
}

// Key is the document key this service edits.
func (s *Service) Key() string {
	return s.key
}

// Document returns the latest snapshot, saved or not.
func (s *Service) Document() resume.Resume {
	return s.editor.Document()
}

// UpdateDocument replaces the document and lets autosave pick it up.
func (s *Service) UpdateDocument(doc resume.Resume) {
	s.editor.Update(doc)
}

// PatchDocument merges a JSON patch onto the latest snapshot.
func (s *Service) PatchDocument(patch []byte) (resume.Resume, error) {
	next, err := resume.Apply(s.editor.Document(), patch)
	if err != nil {
		return resume.Resume{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Invalid document patch", map[string]string{"reason": err.Error()})
	}
	s.editor.Update(next)
	return next, nil
}

func (s *Service) SaveNow() {
	s.editor.SaveNow()
}

// Flush saves pending changes and waits for the attempt to settle.
func (s *Service) Flush(ctx context.Context) error {
	return s.editor.Flush(ctx)
}

// Wait blocks until no save attempt is running or queued.
func (s *Service) Wait(ctx context.Context) error {
	return s.editor.Wait(ctx)
}

func (s *Service) SetAutosave(enabled bool) {
	s.editor.SetEnabled(enabled)
}

func (s *Service) Status() DocumentStatus {
	st := s.editor.Status()
	doc := s.editor.Document()
	out := DocumentStatus{
		State:             st.State,
		IsSaving:          st.IsSaving,
		LastSaved:         st.LastSaved,
		HasUnsavedChanges: st.HasUnsavedChanges,
		Autosave:          st.Enabled,
		RemoteAvailable:   s.docs.IsRemoteAvailable(),
		Warnings:          doc.Problems(),
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
		out.LastErrorKind = string(telemetry.KindOf(st.LastError))
	}
	return out
}

// Pull saves local edits first, then applies the remote copy if it is
// newer. Edits made while the pull runs win: the editor keeps them and
// autosave writes them over the pulled record.
func (s *Service) Pull(ctx context.Context) (persistence.PullResult, error) {
	rev := s.editor.Revision()
	if err := s.editor.Flush(ctx); err != nil {
		return persistence.PullResult{}, err
	}
	result, err := s.docs.Pull(ctx, s.key)
	if err != nil {
		return persistence.PullResult{}, err
	}
	if result.Outcome == persistence.PullApplied {
		doc, err := s.docs.Load(ctx, s.key)
		if err != nil {
			return persistence.PullResult{}, err
		}
		if !s.editor.ResetIfUnchanged(rev, doc) {
			s.logger.Info("pulled document not applied, local edits arrived during pull", "key", s.key)
		}
	}
	return result, nil
}

// History lists saved revisions of the document, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Revision, error) {
	if s.history == nil {
		return nil, domainError(http.StatusNotFound, "HISTORY_DISABLED", "History is disabled", nil)
	}
	return s.history.Log(ctx, s.key, limit)
}

// Revision returns the document as saved in revision hash.
func (s *Service) Revision(ctx context.Context, hash string) ([]byte, error) {
	if s.history == nil {
		return nil, domainError(http.StatusNotFound, "HISTORY_DISABLED", "History is disabled", nil)
	}
	return s.history.Read(ctx, s.key, hash)
}

func (s *Service) Session() SessionInfo {
	claims, ok := s.sessions.Current()
	if !ok {
		return SessionInfo{}
	}
	info := SessionInfo{SignedIn: true, Subject: claims.Subject, Name: claims.Name}
	if claims.ExpiresAt != nil {
		at := claims.ExpiresAt.Time
		info.ExpiresAt = &at
	}
	return info
}

func (s *Service) SignIn(ctx context.Context, token string) (SessionInfo, error) {
	if _, err := s.sessions.SignIn(ctx, token); err != nil {
		return SessionInfo{}, err
	}
	return s.Session(), nil
}

func (s *Service) SignOut(ctx context.Context) error {
	return s.sessions.SignOut(ctx)
}

// Ready checks that the local store answers.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.local.Keys(ctx)
	return err
}

// RemoteConfigured reports whether a remote backend was opened at startup,
// signed in or not.
func (s *Service) RemoteConfigured() bool {
	return s.remote
}

func (s *Service) Metrics() *telemetry.Metrics {
	return s.metrics
}

// Close flushes unsaved changes, waits for queued remote writes and
// releases every backend.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.editor.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	s.editor.Close()
	s.status.Close()
	if err := s.docs.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close facade: %w", err))
	}
	s.closeAll()
	return errors.Join(errs...)
}

func (s *Service) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close backend", "err", err)
		}
	}
	s.closers = nil
}
