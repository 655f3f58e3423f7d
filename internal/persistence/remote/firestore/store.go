// Package firestore stores remote records as Firestore documents under
// owners/{owner}/documents/{key}.
package firestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

type Options struct {
	ProjectID string
	APIKey    string
	// Endpoint overrides the service address. Emulators are picked up from
	// FIRESTORE_EMULATOR_HOST by the client itself.
	Endpoint string
}

type Store struct {
	client *firestore.Client
}

var _ persistence.RemoteBackend = (*Store)(nil)

type document struct {
	Key       string    `firestore:"key"`
	Owner     string    `firestore:"owner"`
	Data      string    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Open creates a Firestore client for opts.ProjectID.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	var clientOpts []option.ClientOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	client, err := firestore.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Put(ctx context.Context, rec persistence.Record) error {
	if rec.Owner == "" {
		return fmt.Errorf("firestore put %q: owner is required", rec.Key)
	}
	_, err := s.ref(rec.Owner, rec.Key).Set(ctx, document{
		Key:       rec.Key,
		Owner:     rec.Owner,
		Data:      string(rec.Data),
		UpdatedAt: rec.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("firestore put %q: %w", rec.Key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, owner, key string) (persistence.Record, error) {
	snap, err := s.ref(owner, key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return persistence.Record{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Record{}, fmt.Errorf("firestore get %q: %w", key, err)
	}
	var doc document
	if err := snap.DataTo(&doc); err != nil {
		return persistence.Record{}, &persistence.SerializationError{Key: key, Err: err}
	}
	return persistence.Record{
		Key:       doc.Key,
		Owner:     doc.Owner,
		Data:      json.RawMessage(doc.Data),
		UpdatedAt: doc.UpdatedAt,
		Origin:    persistence.OriginRemote,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ref(owner, key string) *firestore.DocumentRef {
	return s.client.Collection("owners").Doc(owner).Collection("documents").Doc(DocID(key))
}

// DocID maps a record key to a Firestore document id. Ids may not contain
// slashes, so keys are base64url encoded.
func DocID(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
