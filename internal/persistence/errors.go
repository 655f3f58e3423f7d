package persistence

import (
	"errors"
	"fmt"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
)

var (
	ErrNotFound       = errors.New("persistence: not found")
	ErrInvalidKey     = errors.New("persistence: invalid key")
	ErrQuotaExceeded  = errors.New("persistence: quota exceeded")
	ErrRemoteDisabled = errors.New("persistence: remote not available")
)

// SerializationError means a document could not be converted to or from its
// persisted form. It is fatal to the attempt and not retried.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error        { return e.Err }
func (e *SerializationError) Kind() telemetry.Kind { return telemetry.KindSerialization }

// LocalWriteError means the local tier rejected a write; the save fails.
type LocalWriteError struct {
	Key string
	Err error
}

func (e *LocalWriteError) Error() string {
	return fmt.Sprintf("local write %q: %v", e.Key, e.Err)
}

func (e *LocalWriteError) Unwrap() error        { return e.Err }
func (e *LocalWriteError) Kind() telemetry.Kind { return telemetry.KindLocalWrite }

// RemoteUnavailableError is a soft failure of the remote tier.
type RemoteUnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error        { return e.Err }
func (e *RemoteUnavailableError) Kind() telemetry.Kind { return telemetry.KindRemoteUnavailable }

// ConfigurationError means the remote tier could not be initialized. The
// system keeps running local-only.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("remote configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error        { return e.Err }
func (e *ConfigurationError) Kind() telemetry.Kind { return telemetry.KindConfiguration }

func localWriteError(key string, err error) error {
	var serr *SerializationError
	if errors.As(err, &serr) {
		return err
	}
	var lerr *LocalWriteError
	if errors.As(err, &lerr) {
		return err
	}
	return &LocalWriteError{Key: key, Err: err}
}
