package remote

import (
	"context"
	"fmt"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote/firestore"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote/objectstore"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote/pgstore"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote/redisstore"
)

// Open validates cfg and connects the selected driver. Every failure is a
// *persistence.ConfigurationError so callers can fall back to local-only.
func Open(ctx context.Context, cfg Config) (persistence.RemoteBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()

	backend, err := open(ctx, cfg)
	if err != nil {
		return nil, &persistence.ConfigurationError{Err: fmt.Errorf("open %s driver: %w", cfg.Driver, err)}
	}
	return backend, nil
}

func open(ctx context.Context, cfg Config) (persistence.RemoteBackend, error) {
	switch cfg.Driver {
	case DriverFirestore:
		return firestore.Open(ctx, firestore.Options{
			ProjectID: cfg.ProjectID,
			APIKey:    cfg.APIKey,
			Endpoint:  cfg.Endpoint,
		})
	case DriverRedis:
		return redisstore.Open(ctx, cfg.Endpoint, cfg.ProjectID)
	case DriverMinio:
		return objectstore.Open(ctx, objectstore.Options{
			Endpoint: cfg.Endpoint,
			Bucket:   cfg.StorageBucket,
			Project:  cfg.ProjectID,
			Prefix:   cfg.Prefix,
		})
	case DriverPostgres:
		return pgstore.Open(ctx, cfg.Endpoint, cfg.ProjectID)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
