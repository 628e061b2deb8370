package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"salereport/backend/internal/cache"
	"salereport/backend/internal/config"
	"salereport/backend/internal/service"
	"salereport/backend/internal/store"
	"salereport/backend/internal/store/memory"
	mongostore "salereport/backend/internal/store/mongo"
	pgstore "salereport/backend/internal/store/postgres"
)

// Backends holds the durable store and cache chosen from configuration.
type Backends struct {
	Repo      store.Repository
	Cache     cache.Store
	RepoKind  string
	CacheKind string

	closers []func() error
}

// Open picks postgres, then mongo, then a seeded in-memory store, and redis
// when REDIS_ADDR is set. Any configured backend that cannot be reached is fatal.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backends, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backends{}

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		b.Repo, b.RepoKind = pg, "postgres"
		b.closers = append(b.closers, pg.Close)
	case cfg.MongoURI != "":
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo unavailable and MONGO_URI is set: %w", err)
		}
		b.Repo, b.RepoKind = mg, "mongo"
		b.closers = append(b.closers, mg.Close)
	default:
		b.Repo, b.RepoKind = memory.NewSeeded(), "memory"
	}
	logger.Info("repository selected", zap.String("kind", b.RepoKind))

	if cfg.RedisAddr == "" {
		b.Cache, b.CacheKind = cache.NewMemoryStore(), "memory"
	} else {
		redisCache := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			_ = redisCache.Close()
			closeErr := b.Close()
			return nil, errors.Join(fmt.Errorf("%w: redis unavailable and REDIS_ADDR is set: %w", store.ErrUnavailable, err), closeErr)
		}
		b.Cache, b.CacheKind = redisCache, "redis"
		b.closers = append(b.closers, redisCache.Close)
	}
	logger.Info("cache selected", zap.String("kind", b.CacheKind))

	return b, nil
}

// Service builds the application service over the opened backends.
func (b *Backends) Service(cfg config.Config, logger *zap.Logger) *service.Service {
	return service.New(b.Repo, b.Cache, cfg.Shops(), logger)
}

func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
