package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/remote"
)

type Config struct {
	Addr           string
	DataDir        string
	DocumentKey    string
	AutosaveDelay  time.Duration
	AutosaveOn     bool
	MaxRecordBytes int64
	HistoryEnabled bool
	RemoteTimeout  time.Duration
	LogLevel       string
	LogFormat      string
	CORSOrigin     string
	// Session
	SessionSecret string
	SessionTTL    time.Duration
	// Redis - optional session token store, local store used if empty
	RedisURL string
	// Remote persistence, local-only when APIKey and ProjectID are both empty
	Remote remote.Config
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment without touching .env.
func FromEnv() Config {
	dataDir := getenv("FOLIO_DATA_DIR", "./data")
	return Config{
		Addr:           getenv("API_ADDR", ":8787"),
		DataDir:        dataDir,
		DocumentKey:    getenv("FOLIO_DOCUMENT_KEY", "resume"),
		AutosaveDelay:  time.Duration(getenvInt("FOLIO_AUTOSAVE_DELAY_MS", 1000)) * time.Millisecond,
		AutosaveOn:     getenvBool("FOLIO_AUTOSAVE_ENABLED", true),
		MaxRecordBytes: int64(getenvInt("FOLIO_MAX_RECORD_BYTES", 5*1024*1024)),
		HistoryEnabled: getenvBool("FOLIO_HISTORY_ENABLED", true),
		RemoteTimeout:  time.Duration(getenvInt("FOLIO_REMOTE_TIMEOUT_MS", 15000)) * time.Millisecond,
		LogLevel:       getenv("FOLIO_LOG_LEVEL", "info"),
		LogFormat:      getenv("FOLIO_LOG_FORMAT", "json"),
		CORSOrigin:     getenv("FOLIO_CORS_ORIGIN", "*"),
		SessionSecret:  getenv("FOLIO_SESSION_SECRET", ""),
		SessionTTL:     time.Duration(getenvInt("FOLIO_SESSION_TTL_SECONDS", 2592000)) * time.Second,
		RedisURL:       getenv("REDIS_URL", ""),
		Remote: remote.Config{
			APIKey:            getenv("FIREBASE_API_KEY", ""),
			AuthDomain:        getenv("FIREBASE_AUTH_DOMAIN", ""),
			ProjectID:         getenv("FIREBASE_PROJECT_ID", ""),
			StorageBucket:     getenv("FIREBASE_STORAGE_BUCKET", ""),
			MessagingSenderID: getenv("FIREBASE_MESSAGING_SENDER_ID", ""),
			AppID:             getenv("FIREBASE_APP_ID", ""),
			MeasurementID:     getenv("FIREBASE_MEASUREMENT_ID", ""),
			Driver:            remote.Driver(getenv("FOLIO_REMOTE_DRIVER", "")),
			Endpoint:          getenv("FOLIO_REMOTE_ENDPOINT", ""),
			Prefix:            getenv("FOLIO_REMOTE_PREFIX", ""),
		},
	}
}

// StoreDir is where local records live.
func (c Config) StoreDir() string {
	return filepath.Join(c.DataDir, "store")
}

// HistoryDir is the git repository of saved revisions.
func (c Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "history")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
