package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager verifies the identity provider's access tokens (HS256 with the
// project JWT secret) and can mint tokens of the same shape for seeding and tests.
type JWTManager struct {
	secretKey  []byte
	duration   time.Duration
	adminRoles []string
}

// AppMetadata mirrors the provider's server-controlled metadata block.
type AppMetadata struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Claims is the access token payload. Subject carries the user id.
type Claims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"` // database role, "authenticated" for end users
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

// HasRole reports whether role was granted through app metadata.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// NewJWTManager returns a configured JWTManager. adminRoles lists the roles
// that grant admin capabilities.
func NewJWTManager(secretKey string, duration time.Duration, adminRoles []string) *JWTManager {
	if duration <= 0 {
		duration = time.Hour
	}
	return &JWTManager{
		secretKey:  []byte(secretKey),
		duration:   duration,
		adminRoles: adminRoles,
	}
}

// GenerateToken issues a signed token for userID carrying the given app roles.
func (m *JWTManager) GenerateToken(userID, email string, roles ...string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)

	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		AppMetadata: AppMetadata{
			Roles: roles,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// only HMAC tokens are accepted; anything else is a downgrade attempt
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate verifies the token and resolves the caller's identity.
func (m *JWTManager) Authenticate(tokenString string) (Identity, error) {
	claims, err := m.VerifyToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	roles := append([]string(nil), claims.AppMetadata.Roles...)
	if claims.AppMetadata.Role != "" && !slices.Contains(roles, claims.AppMetadata.Role) {
		roles = append(roles, claims.AppMetadata.Role)
	}

	return Identity{
		UserID: id.String(),
		Email:  claims.Email,
		Roles:  roles,
	}, nil
}

// IsAdmin reports whether the identity holds one of the configured admin roles.
func (m *JWTManager) IsAdmin(id Identity) bool {
	for _, r := range m.adminRoles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity attaches the caller's identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
