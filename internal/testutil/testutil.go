// Package testutil wires in-memory infrastructure for package tests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/cache"
	"github.com/simplesconnect/simples-connect/internal/config"
	"github.com/simplesconnect/simples-connect/internal/db"
	"github.com/simplesconnect/simples-connect/internal/logger"
)

// OpenDB spins up an isolated in-memory SQLite DB with the full schema, opened
// with the same gorm settings as production.
//
// A single connection keeps concurrent test goroutines from tripping over
// SQLite's table locks; the store still arbitrates uniqueness.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	database, err := db.Open(sqlite.Open(dsn), gormlogger.Discard)
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// Redis starts a miniredis and returns a cache bound to it.
func Redis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { rc.Client.Close() })
	return rc, mr
}

// AppContext wires a fresh DB, miniredis and a discarding logger.
func AppContext(t *testing.T) *app.AppContext {
	t.Helper()
	appCtx, _ := AppContextWithRedis(t)
	return appCtx
}

// AppContextWithRedis is AppContext that also hands back the miniredis
// so tests can inspect or tamper with keys.
func AppContextWithRedis(t *testing.T) (*app.AppContext, *miniredis.Miniredis) {
	t.Helper()

	rc, mr := Redis(t)
	return app.New(OpenDB(t), rc, Logger()), mr
}

// Logger returns a debug-level logger that discards its output, so debug
// call sites still run in tests.
func Logger() *slog.Logger {
	return logger.New(io.Discard, logger.Config{Level: "debug", Format: logger.FormatText})
}

// Users inserts n profiles and returns their ids in ascending order.
func Users(t *testing.T, database *gorm.DB, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := db.Profile{
			ID:          uuid.NewString(),
			DisplayName: fmt.Sprintf("user%d", i),
			Photos:      []string{fmt.Sprintf("https://cdn.test/u%d.jpg", i)},
		}
		require.NoError(t, database.Create(&p).Error)
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}
