package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"FOLIO_DATA_DIR", "FOLIO_AUTOSAVE_DELAY_MS", "FOLIO_AUTOSAVE_ENABLED", "FIREBASE_API_KEY", "FIREBASE_PROJECT_ID"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()

	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "resume", cfg.DocumentKey)
	assert.Equal(t, time.Second, cfg.AutosaveDelay)
	assert.True(t, cfg.AutosaveOn)
	assert.True(t, cfg.HistoryEnabled)
	assert.Equal(t, filepath.Join("data", "store"), cfg.StoreDir())
	assert.False(t, cfg.Remote.Configured())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_DATA_DIR", "/tmp/folio")
	t.Setenv("FOLIO_AUTOSAVE_DELAY_MS", "250")
	t.Setenv("FOLIO_AUTOSAVE_ENABLED", "false")
	t.Setenv("FOLIO_MAX_RECORD_BYTES", "1024")
	t.Setenv("FIREBASE_API_KEY", "key")
	t.Setenv("FIREBASE_PROJECT_ID", "proj")
	t.Setenv("FOLIO_REMOTE_DRIVER", "redis")

	cfg := FromEnv()
	assert.Equal(t, 250*time.Millisecond, cfg.AutosaveDelay)
	assert.False(t, cfg.AutosaveOn)
	assert.Equal(t, int64(1024), cfg.MaxRecordBytes)
	assert.Equal(t, "/tmp/folio/history", cfg.HistoryDir())
	assert.Equal(t, remote.DriverRedis, cfg.Remote.Driver)
	assert.True(t, cfg.Remote.Configured())
}

func TestFromEnvBadNumbersFallBack(t *testing.T) {
	t.Setenv("FOLIO_AUTOSAVE_DELAY_MS", "soon")
	t.Setenv("FOLIO_HISTORY_ENABLED", "perhaps")

	cfg := FromEnv()
	assert.Equal(t, time.Second, cfg.AutosaveDelay)
	assert.True(t, cfg.HistoryEnabled)
}

func TestDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FOLIO_DOCUMENT_KEY=cv\n"), 0o644))
	t.Setenv("FOLIO_DOCUMENT_KEY", "")
	require.NoError(t, os.Unsetenv("FOLIO_DOCUMENT_KEY"))

	require.NoError(t, godotenv.Load(path))
	assert.Equal(t, "cv", FromEnv().DocumentKey)
}
