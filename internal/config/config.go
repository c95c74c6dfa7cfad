package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "TokenLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLedgerDir       = "./data"
	defaultRedisPrefix     = "tokenledger:"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultRemoteTimeout   = 15 * time.Second
	defaultSyncInterval    = 5 * time.Minute
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	StorageBackend string
	LedgerDir      string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string

	// EncryptionKey decrypts wallet key material. Raw bytes from
	// ENCRYPTION_KEY, or decoded from ENCRYPTION_KEY_HEX.
	EncryptionKey []byte

	RemoteBackendURL      string
	RemoteAPIToken        string
	RemoteTimeout         time.Duration
	RemoteRetryMax        int
	RemoteRetryBaseDelay  time.Duration
	SyncInterval          time.Duration
	ShutdownPeriod        time.Duration
	IdempotencyTTL        time.Duration
	RevealMaxPerMin       int
	SeedCatalog           bool
	RequireIdempotencyKey bool
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:               getEnv("APP_NAME", defaultAppName),
		AppEnv:                getEnv("APP_ENV", defaultAppEnv),
		Port:                  getEnv("PORT", defaultPort),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
		LedgerDir:             getEnv("LEDGER_DIR", defaultLedgerDir),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		RedisKeyPrefix:        getEnv("REDIS_KEY_PREFIX", defaultRedisPrefix),
		RemoteBackendURL:      strings.TrimRight(os.Getenv("REMOTE_BACKEND_URL"), "/"),
		RemoteAPIToken:        os.Getenv("REMOTE_API_TOKEN"),
		RemoteTimeout:         envOrDefaultDuration("REMOTE_TIMEOUT", defaultRemoteTimeout),
		RemoteRetryMax:        envOrDefaultInt("REMOTE_RETRY_MAX", 3),
		RemoteRetryBaseDelay:  envOrDefaultDuration("REMOTE_RETRY_BASE_DELAY", time.Second),
		SyncInterval:          envOrDefaultDuration("SYNC_INTERVAL", defaultSyncInterval),
		ShutdownPeriod:        defaultShutdownDelay,
		IdempotencyTTL:        defaultIdempotencyTTL,
		RevealMaxPerMin:       envOrDefaultInt("REVEAL_MAX_PER_MIN", 5),
		SeedCatalog:           envOrDefaultBool("SEED_CATALOG", true),
		RequireIdempotencyKey: envOrDefaultBool("REQUIRE_IDEMPOTENCY_KEY", false),
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if v := os.Getenv("ENCRYPTION_KEY_HEX"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ENCRYPTION_KEY_HEX: %w", err)
		}
		cfg.EncryptionKey = key
	} else if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.EncryptionKey = []byte(v)
	}
	if n := len(cfg.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return Config{}, fmt.Errorf("encryption key must be 16, 24 or 32 bytes, got %d", n)
	}

	switch {
	case cfg.SyncInterval <= 0:
		return Config{}, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	case cfg.RemoteTimeout <= 0:
		return Config{}, fmt.Errorf("REMOTE_TIMEOUT must be positive, got %s", cfg.RemoteTimeout)
	case cfg.RemoteRetryMax < 0:
		return Config{}, fmt.Errorf("REMOTE_RETRY_MAX must not be negative, got %d", cfg.RemoteRetryMax)
	case cfg.RemoteRetryBaseDelay < 0:
		return Config{}, fmt.Errorf("REMOTE_RETRY_BASE_DELAY must not be negative, got %s", cfg.RemoteRetryBaseDelay)
	}

	switch cfg.StorageBackend {
	case BackendFile:
		if cfg.LedgerDir == "" {
			return Config{}, fmt.Errorf("LEDGER_DIR must be set for the file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}
