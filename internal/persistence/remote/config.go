// Package remote configures and opens the network tier of persistence.
package remote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

// Driver names a remote backend implementation.
type Driver string

const (
	DriverFirestore Driver = "firestore"
	DriverRedis     Driver = "redis"
	DriverMinio     Driver = "minio"
	DriverPostgres  Driver = "postgres"
)

// ErrNotConfigured means no remote credentials were provided at all.
var ErrNotConfigured = errors.New("remote persistence not configured")

// Config holds the connection options of the hosted document service.
// MeasurementID is optional analytics metadata and is never used for storage.
type Config struct {
	APIKey            string `validate:"required"`
	AuthDomain        string
	ProjectID         string `validate:"required"`
	StorageBucket     string `validate:"required_if=Driver minio"`
	MessagingSenderID string
	AppID             string
	MeasurementID     string

	Driver   Driver `validate:"oneof=firestore redis minio postgres"`
	Endpoint string `validate:"required_unless=Driver firestore"`
	Prefix   string
}

// Configured reports whether any credentials were supplied.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" || strings.TrimSpace(c.ProjectID) != ""
}

// Normalize fills defaults.
func (c Config) Normalize() Config {
	if c.Driver == "" {
		c.Driver = DriverFirestore
	}
	c.Driver = Driver(strings.ToLower(string(c.Driver)))
	c.Prefix = strings.Trim(c.Prefix, "/")
	return c
}

// Validate returns a *persistence.ConfigurationError when the config cannot
// be used. A fully empty config yields ErrNotConfigured.
func (c Config) Validate() error {
	if !c.Configured() {
		return &persistence.ConfigurationError{Err: ErrNotConfigured}
	}
	if err := validator.New().Struct(c.Normalize()); err != nil {
		return &persistence.ConfigurationError{Err: fmt.Errorf("invalid remote config: %s", describe(err))}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}
