package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/simplesconnect/simples-connect/internal/config"
	"github.com/simplesconnect/simples-connect/internal/middleware"
)

// RouteRegistrar mounts routes on the HTTP engine.
type RouteRegistrar interface {
	Register(r gin.IRouter)
}

// NewHTTPServer builds the gin engine (recovery, Sentry, request logging) and
// wraps it in an http.Server bound to the configured address.
func NewHTTPServer(cfg *config.Config, log *slog.Logger, routes ...RouteRegistrar) *http.Server {
	if cfg.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	engine.Use(middleware.RequestLogger(log))

	for _, r := range routes {
		r.Register(engine)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ServeHTTP runs srv until ctx is done, then shuts it down within timeout.
func ServeHTTP(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
