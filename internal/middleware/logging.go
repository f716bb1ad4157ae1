package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simplesconnect/simples-connect/internal/logger"
)

const (
	headerRequestID      = "X-Request-ID"
	metadataKeyRequestID = "x-request-id"
)

// RequestLogger returns a Gin middleware that:
//  1. Reads the request ID from X-Request-ID or generates one.
//  2. Puts a child logger carrying request metadata into the request context.
//  3. Logs the completed request with status, latency and user.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := base.With(
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), child))

		c.Next()

		attrs := []any{
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id := GetUserID(c); id != "" {
			attrs = append(attrs, "user_id", id)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "err", c.Errors.String())
		}
		child.Info("request completed", attrs...)
	}
}

// LoggingUnaryInterceptor is the gRPC counterpart of RequestLogger.
func LoggingUnaryInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		child := base.With("request_id", requestIDFromMD(ctx), "grpc_method", info.FullMethod)
		resp, err := handler(logger.WithContext(ctx, child), req)

		attrs := []any{
			"grpc_code", status.Code(err).String(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		child.Info("unary call completed", attrs...)
		return resp, err
	}
}

func requestIDFromMD(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(metadataKeyRequestID); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return uuid.New().String()
}
