package main

import (
	"context"
	"fmt"
	"os"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/cache"
	"github.com/simplesconnect/simples-connect/internal/config"
	"github.com/simplesconnect/simples-connect/internal/db"
	"github.com/simplesconnect/simples-connect/internal/logger"
	"github.com/simplesconnect/simples-connect/internal/seed"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Redis is optional here; events are simply not published without it.
	var rc *cache.RedisCache
	if c := cache.NewRedisCache(cfg); c.Ping(ctx) == nil {
		rc = c
	} else {
		log.Warn("redis unavailable, seeding without events")
	}

	appCtx := app.New(database, rc, log)
	defer appCtx.Close()

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminRoles)
	rep, err := seed.Run(ctx, appCtx, jwt, 3)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	for userID, token := range rep.Tokens {
		fmt.Printf("%s\t%s\n", userID, token)
	}
}
