package app

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/cache"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
}

// Close releases the Redis client and the database pool.
func (a *AppContext) Close() error {
	var errs []error
	if a.RedisCache != nil {
		errs = append(errs, a.RedisCache.Client.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
