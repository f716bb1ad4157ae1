package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/cache"
	"github.com/simplesconnect/simples-connect/internal/config"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/handler"
	"github.com/simplesconnect/simples-connect/internal/logger"
	"github.com/simplesconnect/simples-connect/internal/middleware"
	"github.com/simplesconnect/simples-connect/internal/seed"
	"github.com/simplesconnect/simples-connect/internal/server"
	"github.com/simplesconnect/simples-connect/internal/service/conversation"
	"github.com/simplesconnect/simples-connect/internal/service/explore"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	flush, err := svcErr.InitReporting(cfg.Sentry.DSN, cfg.App.ENV)
	if err != nil {
		log.Warn("sentry disabled", "err", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	appCtx := app.New(database, redisCache, log)
	defer func() {
		if err := appCtx.Close(); err != nil {
			log.Warn("close failed", "err", err)
		}
	}()

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminRoles)

	if cfg.App.ENV == "development" {
		rep, err := seed.Run(ctx, appCtx, jwt, 3)
		if err != nil {
			log.Error("failed to seed", "err", err)
		} else {
			for userID, token := range rep.Tokens {
				log.Info("dev token", "user", userID, "token", token)
			}
		}
	}

	limiter := middleware.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiter.Stop()

	grpcServer, healthServer := server.NewGRPCServer(server.GRPCOptions{
		Logger:  log,
		Authn:   jwt,
		Limiter: limiter,
		LimitedMethods: map[string]bool{
			server.FullMethod(explore.ServiceName, "RecordInteraction"): true,
			server.FullMethod(conversation.ServiceName, "SendMessage"):  true,
		},
	},
		explore.NewRegistrar(appCtx),
		matching.NewRegistrar(appCtx),
		conversation.NewRegistrar(appCtx),
	)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	httpServer := server.NewHTTPServer(cfg, log, handler.New(appCtx, jwt, limiter))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		return server.ServeGRPC(gctx, cfg, grpcServer)
	})
	g.Go(func() error {
		log.Info("starting HTTP server", "addr", httpServer.Addr)
		return server.ServeHTTP(gctx, httpServer, cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "err", err)
		return
	}
	log.Info("server stopped")
}
