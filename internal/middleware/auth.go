package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/response"
)

const (
	identityKey   = "identity"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Authenticator resolves bearer tokens into identities.
type Authenticator interface {
	Authenticate(token string) (auth.Identity, error)
	IsAdmin(id auth.Identity) bool
}

// RequireAuth returns a Gin middleware that validates the bearer token and
// stores the caller's identity on both the gin and the request context.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization format")
			return
		}

		id, err := a.Authenticate(strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.IsAdmin(GetIdentity(c)) {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}
		c.Next()
	}
}

// GetIdentity extracts the caller's identity from Gin context.
func GetIdentity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		return v.(auth.Identity)
	}
	return auth.Identity{}
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return GetIdentity(c).UserID
}

// AuthUnaryInterceptor enforces bearer authentication on every method except
// the public ones (health checks, reflection).
func AuthUnaryInterceptor(a Authenticator, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if public[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
		}
		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Errorf(codes.Unauthenticated, "missing authorization header")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer"))
		if token == "" {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token")
		}

		id, err := a.Authenticate(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid or expired token")
		}
		return handler(auth.WithIdentity(ctx, id), req)
	}
}
