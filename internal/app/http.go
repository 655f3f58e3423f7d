package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/resume"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/session"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
)

const (
	maxBodyBytes   = 5 << 20
	flushTimeout   = 15 * time.Second
	defaultHistory = 20
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *slog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		logger:     service.logger.With("component", "http"),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.service.Metrics().Handler().ServeHTTP(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "document" {
		s.handleDocument(w, r, parts[2:])
		return
	}
	if len(parts) == 2 && parts[0] == "api" && parts[1] == "session" {
		s.handleSession(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"local":  map[string]any{"status": "ok"},
		"remote": map[string]any{"status": "disabled"},
	}
	if err := s.service.Ready(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["local"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if s.service.RemoteConfigured() {
		checks["remote"] = map[string]any{
			"status":   "configured",
			"signedIn": s.service.Session().SignedIn,
		}
	}
	writeJSON(w, statusCode, map[string]any{"status": status, "checks": checks})
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, parts []string) {
	svc := s.service

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{
				"key":      svc.Key(),
				"document": svc.Document(),
				"status":   svc.Status(),
			})
		case http.MethodPut:
			var doc resume.Resume
			if err := decodeBody(r, &doc); err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			svc.UpdateDocument(doc)
			writeJSON(w, http.StatusAccepted, map[string]any{"status": svc.Status()})
		case http.MethodPatch:
			patch, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable body", nil)
				return
			}
			doc, err := svc.PatchDocument(patch)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"document": doc, "status": svc.Status()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "save":
		if r.URL.Query().Get("wait") != "true" {
			svc.SaveNow()
			writeJSON(w, http.StatusAccepted, map[string]any{"status": svc.Status()})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), flushTimeout)
		defer cancel()
		svc.SaveNow()
		if err := svc.Wait(ctx); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": svc.Status()})

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "status":
		writeJSON(w, http.StatusOK, svc.Status())

	case r.Method == http.MethodPut && len(parts) == 1 && parts[0] == "autosave":
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		if body.Enabled == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "enabled is required", nil)
			return
		}
		svc.SetAutosave(*body.Enabled)
		writeJSON(w, http.StatusOK, svc.Status())

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "pull":
		result, err := svc.Pull(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result, "document": svc.Document()})

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "history":
		limit := defaultHistory
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		revisions, err := svc.History(r.Context(), limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "history":
		content, err := svc.Revision(r.Context(), parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"hash": parts[1], "document": json.RawMessage(content)})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	svc := s.service
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, svc.Session())
	case http.MethodPost:
		token := bearerToken(r)
		if token == "" {
			var body struct {
				Token string `json:"token"`
			}
			if err := decodeBody(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			token = strings.TrimSpace(body.Token)
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		info, err := svc.SignIn(r.Context(), token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		if err := svc.SignOut(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Session())
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", requestID(r.Context()),
			"path", r.URL.Path,
			"kind", string(telemetry.KindOf(err)),
			"err", err,
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

var errEmptyBody = errors.New("request body is required")

// decodeBody returns errEmptyBody when there is nothing to decode.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, session.ErrNoSecret) {
		return http.StatusServiceUnavailable, "SESSION_DISABLED", "Sign-in is not configured", nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "TIMEOUT", "Timed out", nil
	}
	if errors.Is(err, persistence.ErrRemoteDisabled) {
		return http.StatusConflict, "REMOTE_UNAVAILABLE", "Remote sync needs a configured backend and a session", nil
	}
	switch telemetry.KindOf(err) {
	case telemetry.KindRemoteUnavailable:
		return http.StatusBadGateway, "REMOTE_UNAVAILABLE", "Remote store unavailable", nil
	case telemetry.KindSerialization:
		return http.StatusUnprocessableEntity, "SERIALIZATION_ERROR", "Document could not be serialized", nil
	case telemetry.KindLocalWrite:
		if errors.Is(err, persistence.ErrQuotaExceeded) {
			return http.StatusInsufficientStorage, "QUOTA_EXCEEDED", "Local storage quota exceeded", nil
		}
		return http.StatusInternalServerError, "LOCAL_WRITE_FAILED", "Local save failed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
