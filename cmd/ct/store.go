package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/config"
	"github.com/and161185/civictrack/internal/crypto/clientcrypto"
	"github.com/and161185/civictrack/internal/kvstore"
	"github.com/and161185/civictrack/internal/kvstore/filestore"
	"github.com/and161185/civictrack/internal/kvstore/postgres"
	"github.com/and161185/civictrack/internal/kvstore/redisstore"
	"github.com/and161185/civictrack/internal/kvstore/sealed"
	"github.com/and161185/civictrack/internal/migrate"
)

// openStore builds the configured session store. Persistent backends are
// sealed with the device key unless sealing is disabled.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (kvstore.Store, func(), error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filestore.DefaultDir()
	}

	var (
		st      kvstore.Store
		closeFn = func() {}
	)
	switch cfg.Store {
	case config.StoreMemory:
		return kvstore.NewMemory(), closeFn, nil
	case config.StoreFile:
		st = filestore.New(dir)
	case config.StoreRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		st = redisstore.New(rc, cfg.RedisPrefix)
		closeFn = func() { _ = rc.Close() }
	case config.StorePostgres:
		if _, err := migrate.EnsureSchema(ctx, cfg.DatabaseURL, log); err != nil {
			return nil, nil, err
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect store db: %w", err)
		}
		st = postgres.NewStore(db, cfg.Namespace)
		closeFn = db.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	if !cfg.Seal {
		log.Debug("session store", zap.String("backend", cfg.Store), zap.Bool("sealed", false))
		return st, closeFn, nil
	}
	key, err := clientcrypto.LoadOrCreateKey(dir, cfg.Passphrase)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("store key: %w", err)
	}
	sst, err := sealed.New(st, key)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	log.Debug("session store", zap.String("backend", cfg.Store), zap.Bool("sealed", true))
	return sst, closeFn, nil
}
