package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/simplesconnect/simples-connect/internal/config"
	"github.com/simplesconnect/simples-connect/internal/middleware"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// GRPCOptions carries the cross-cutting pieces every RPC goes through.
type GRPCOptions struct {
	Logger  *slog.Logger
	Authn   middleware.Authenticator
	Limiter *middleware.LimiterStore
	// LimitedMethods are the full method names subject to rate limiting.
	LimitedMethods map[string]bool
}

// publicMethods skip bearer authentication.
var publicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/List":  true,
}

// NewGRPCServer builds a gRPC server with logging, auth and rate limiting
// interceptors, registers all provided services plus health and reflection.
func NewGRPCServer(opts GRPCOptions, registrars ...Registrar) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.LoggingUnaryInterceptor(opts.Logger),
		middleware.AuthUnaryInterceptor(opts.Authn, publicMethods),
	}
	if opts.Limiter != nil {
		interceptors = append(interceptors, middleware.RateLimitUnaryInterceptor(opts.Limiter, opts.LimitedMethods))
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer, healthServer
}

// ServeGRPC listens on the configured address and serves until ctx is done,
// then stops gracefully.
func ServeGRPC(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, grpcServer)
}

// Serve runs grpcServer on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, grpcServer *grpc.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- grpcServer.Serve(lis) }()

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
