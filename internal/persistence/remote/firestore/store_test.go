package firestore

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence"
)

func TestDocID(t *testing.T) {
	id := DocID("drafts/resume")
	assert.NotContains(t, id, "/")
	assert.NotEqual(t, DocID("a"), DocID("b"))
}

func TestOpenRequiresProject(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "projectID"))
}

func TestStoreEmulator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, Options{ProjectID: "folio-test"})
	require.NoError(t, err)
	defer store.Close()

	owner := "owner-" + time.Now().Format("150405.000000")
	_, err = store.Get(ctx, owner, "resume")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Put(ctx, persistence.Record{
		Key: "resume", Owner: owner, Data: json.RawMessage(`{"name":"Ada"}`), UpdatedAt: at,
	}))

	got, err := store.Get(ctx, owner, "resume")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada"}`, string(got.Data))
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.Equal(t, persistence.OriginRemote, got.Origin)
}
