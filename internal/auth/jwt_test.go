package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndAuthenticate(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, []string{"admin"})
	userID := uuid.NewString()

	token, exp, err := m.GenerateToken(userID, "a@test.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	id, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "a@test.com", id.Email)
	assert.False(t, m.IsAdmin(id))
}

func TestAdminRoleFromClaims(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, []string{"admin", "moderator"})

	token, _, err := m.GenerateToken(uuid.NewString(), "ops@test.com", "moderator")
	require.NoError(t, err)

	id, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin(id))
}

func TestSingleRoleClaimIsHonoured(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, []string{"admin"})
	claims := &Claims{
		AppMetadata: AppMetadata{Role: "admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin(id))
}

func TestVerifyToken_Rejects(t *testing.T) {
	m := NewJWTManager("secret", time.Minute, nil)
	other := NewJWTManager("other-secret", time.Minute, nil)
	expired := NewJWTManager("secret", time.Minute, nil)
	expired.duration = -time.Minute

	wrongKey, _, err := other.GenerateToken(uuid.NewString(), "")
	require.NoError(t, err)
	old, _, err := expired.GenerateToken(uuid.NewString(), "")
	require.NoError(t, err)
	notUUID, _, err := m.GenerateToken("user-1", "")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":   "abc.def.ghi",
		"wrong key": wrongKey,
		"expired":   old,
		"bad sub":   notUUID,
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Authenticate(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
