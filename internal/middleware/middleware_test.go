package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT() *auth.JWTManager {
	return auth.NewJWTManager("secret", time.Minute, []string{"admin"})
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	j := newJWT()
	userID := uuid.NewString()
	token, _, err := j.GenerateToken(userID, "a@test.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", RequireAuth(j), func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		assert.True(t, ok)
		c.String(http.StatusOK, GetUserID(c)+"|"+id.UserID)
	})

	w := serve(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID+"|"+userID, w.Body.String())

	w = serve(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = serve(r, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AuthHeaderKey, "Basic abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	j := newJWT()
	r := gin.New()
	r.GET("/", RequireAuth(j), RequireAdmin(j), func(c *gin.Context) { c.Status(http.StatusOK) })

	user, _, err := j.GenerateToken(uuid.NewString(), "admin@simples.app")
	require.NoError(t, err)
	admin, _, err := j.GenerateToken(uuid.NewString(), "ops@test.com", "admin")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, serve(r, user).Code)
	assert.Equal(t, http.StatusOK, serve(r, admin).Code)
}

func TestRateLimit(t *testing.T) {
	store := NewLimiterStore(1, 2, time.Minute)
	t.Cleanup(store.Stop)

	j := newJWT()
	r := gin.New()
	r.GET("/", RequireAuth(j), RateLimit(store), func(c *gin.Context) { c.Status(http.StatusOK) })

	alice, _, _ := j.GenerateToken(uuid.NewString(), "")
	bob, _, _ := j.GenerateToken(uuid.NewString(), "")

	assert.Equal(t, http.StatusOK, serve(r, alice).Code)
	assert.Equal(t, http.StatusOK, serve(r, alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, alice).Code)

	// buckets are per user
	assert.Equal(t, http.StatusOK, serve(r, bob).Code)
}

func TestLimiterStore_EvictIdle(t *testing.T) {
	store := NewLimiterStore(60, 1, time.Hour)
	t.Cleanup(store.Stop)

	assert.True(t, store.Allow("k"))
	assert.False(t, store.Allow("k"))

	store.evictIdle(time.Now().Add(time.Second))
	assert.True(t, store.Allow("k"), "evicted key starts with a fresh bucket")

	store.Stop()
	store.Stop()
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(discardLogger()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, "")
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(headerRequestID))
}

func TestAuthUnaryInterceptor(t *testing.T) {
	j := newJWT()
	userID := uuid.NewString()
	token, _, err := j.GenerateToken(userID, "")
	require.NoError(t, err)

	icpt := AuthUnaryInterceptor(j, map[string]bool{"/grpc.health.v1.Health/Check": true})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		id, _ := auth.FromContext(ctx)
		return id.UserID, nil
	}
	info := func(m string) *grpc.UnaryServerInfo { return &grpc.UnaryServerInfo{FullMethod: m} }

	// public method needs no token
	_, err = icpt(context.Background(), nil, info("/grpc.health.v1.Health/Check"), handler)
	assert.NoError(t, err)

	_, err = icpt(context.Background(), nil, info("/svc/M"), handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))
	_, err = icpt(bad, nil, info("/svc/M"), handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ok := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	got, err := icpt(ok, nil, info("/svc/M"), handler)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	store := NewLimiterStore(1, 1, time.Minute)
	t.Cleanup(store.Stop)

	icpt := RateLimitUnaryInterceptor(store, map[string]bool{"/svc/Limited": true})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "u1"})

	_, err := icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Limited"}, handler)
	require.NoError(t, err)
	_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Limited"}, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// other methods are not limited
	_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Free"}, handler)
	assert.NoError(t, err)
}

func discardLogger() *slog.Logger {
	return testutil.Logger()
}
