package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/repository"
	"github.com/simplesconnect/simples-connect/internal/service/admin"
	"github.com/simplesconnect/simples-connect/internal/service/conversation"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
	"github.com/simplesconnect/simples-connect/internal/testutil"
)

func TestStats(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.AppContext(t)
	u := testutil.Users(t, appCtx.DB, 3)

	interactions := repository.NewInteractionRepository(appCtx.DB)
	for _, in := range [][3]string{
		{u[0], u[1], db.KindLike},
		{u[1], u[0], db.KindLike},
		{u[0], u[2], db.KindLike},
		{u[2], u[0], db.KindPass},
	} {
		_, err := interactions.Upsert(ctx, in[0], in[1], in[2])
		require.NoError(t, err)
	}
	res, err := matching.NewMatchingService(appCtx).TryFormMatch(ctx, u[1], u[0])
	require.NoError(t, err)
	_, err = conversation.NewConversationService(appCtx).SendMessage(ctx, res.Match.ID, u[0], "hi", "")
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager("secret", time.Minute, []string{"admin"})
	svc := admin.NewAdminService(appCtx, jwtManager)

	st, err := svc.Stats(ctx, auth.Identity{UserID: u[0], Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.Equal(t, admin.Stats{
		Profiles:      3,
		Interactions:  4,
		Likes:         3,
		Passes:        1,
		ActiveMatches: 1,
		Messages:      1,
	}, *st)
}

// An e-mail that looks like an admin's grants nothing; only the role does.
func TestStats_RequiresAdminRole(t *testing.T) {
	appCtx := testutil.AppContext(t)
	svc := admin.NewAdminService(appCtx, auth.NewJWTManager("secret", time.Minute, []string{"admin"}))

	_, err := svc.Stats(context.Background(), auth.Identity{UserID: "u1", Email: "admin@simples.app"})
	assert.ErrorIs(t, err, svcErr.ErrForbidden)
}
