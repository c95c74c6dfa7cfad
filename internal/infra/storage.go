package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/tokenledger/internal/config"
	"github.com/congo-pay/tokenledger/internal/storage"
)

// Storage bundles the durable store selected by configuration with the
// connections it was built on. DB and Cache are nil when unused.
type Storage struct {
	Store storage.Store
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// OpenStorage connects the backend named by cfg.StorageBackend. Redis is also
// connected for other backends when REDIS_URL is set, so the idempotency cache
// and rate limiter can use it; a failure there is logged and tolerated.
func OpenStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Storage, error) {
	s := &Storage{}

	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		switch {
		case err == nil:
			s.Cache = cache
		case cfg.StorageBackend == config.BackendRedis:
			return nil, err
		default:
			logger.Warn("redis unavailable, continuing without response cache", slog.Any("error", err))
		}
	}

	switch cfg.StorageBackend {
	case config.BackendFile:
		fileStore, err := storage.NewFileStore(cfg.LedgerDir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Store = fileStore
	case config.BackendMemory:
		s.Store = storage.NewMemory()
	case config.BackendRedis:
		s.Store = storage.NewRedisStore(s.Cache, cfg.RedisKeyPrefix)
	case config.BackendPostgres:
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = db
		s.Store = storage.NewPostgresStore(db)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	return s, nil
}

// Close releases any open connections.
func (s *Storage) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Cache != nil {
		s.Cache.Close()
	}
}
