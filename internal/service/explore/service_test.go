package explore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/repository"
	"github.com/simplesconnect/simples-connect/internal/service/explore"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
	"github.com/simplesconnect/simples-connect/internal/testutil"
)

//
// Test helpers
//

type fixture struct {
	svc    *explore.Service
	appCtx *app.AppContext
	mr     *miniredis.Miniredis
	users  []string
}

// setupService spins up an in-memory SQLite DB and a miniredis, seeds
// three users and wires everything into an Explore service.
//
// Each test gets its own isolated DB + Redis.
func setupService(t *testing.T) fixture {
	t.Helper()

	appCtx, mr := testutil.AppContextWithRedis(t)

	return fixture{
		svc:    explore.NewExploreService(appCtx, matching.NewMatchingService(appCtx)),
		appCtx: appCtx,
		mr:     mr,
		users:  testutil.Users(t, appCtx.DB, 3),
	}
}

// seedMinimal inserts a small deterministic dataset:
//   - user1 → user2 = like
//   - user3 → user1 = like (hidden from user1, who passed user3)
//   - user1 → user3 = pass
func seedMinimal(t *testing.T, f fixture) {
	t.Helper()
	repo := repository.NewInteractionRepository(f.appCtx.DB)
	ctx := context.Background()
	u := f.users

	for _, in := range []struct{ actor, target, kind string }{
		{u[0], u[1], db.KindLike},
		{u[2], u[0], db.KindLike},
		{u[0], u[2], db.KindPass},
	} {
		_, err := repo.Upsert(ctx, in.actor, in.target, in.kind)
		require.NoError(t, err)
	}
}

//
// Tests
//

// A like back from user2 closes the loop and forms a match.
func TestRecordInteraction_MutualLikeFormsMatch(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedMinimal(t, f)
	u := f.users

	res, err := f.svc.RecordInteraction(ctx, u[1], u[0], db.KindLike)
	require.NoError(t, err)

	assert.Equal(t, explore.MatchFormed, res.MatchCheck)
	require.NotNil(t, res.Match)
	assert.True(t, res.Match.HasUser(u[0]))
	assert.True(t, res.Match.HasUser(u[1]))
	assert.Equal(t, db.KindLike, res.Interaction.Kind)
}

func TestRecordInteraction_OneWayLike(t *testing.T) {
	f := setupService(t)
	u := f.users

	res, err := f.svc.RecordInteraction(context.Background(), u[0], u[1], db.KindLike)
	require.NoError(t, err)
	assert.Equal(t, explore.MatchNotFormed, res.MatchCheck)
	assert.Nil(t, res.Match)
}

// Passing never consults the match engine.
func TestRecordInteraction_PassSkipsMatchCheck(t *testing.T) {
	f := setupService(t)
	seedMinimal(t, f)
	u := f.users

	res, err := f.svc.RecordInteraction(context.Background(), u[1], u[0], db.KindPass)
	require.NoError(t, err)
	assert.Equal(t, explore.MatchSkipped, res.MatchCheck)

	var n int64
	require.NoError(t, f.appCtx.DB.Model(&db.Match{}).Count(&n).Error)
	assert.Zero(t, n)
}

// Re-swiping overwrites the intent and keeps the row id.
func TestRecordInteraction_ReswipeOverwrites(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	u := f.users

	first, err := f.svc.RecordInteraction(ctx, u[0], u[1], db.KindPass)
	require.NoError(t, err)
	second, err := f.svc.RecordInteraction(ctx, u[0], u[1], db.KindLike)
	require.NoError(t, err)

	assert.Equal(t, first.Interaction.ID, second.Interaction.ID)
	assert.Equal(t, db.KindLike, second.Interaction.Kind)
}

func TestRecordInteraction_Validation(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	u := f.users

	cases := map[string][3]string{
		"self":       {u[0], u[0], db.KindLike},
		"bad kind":   {u[0], u[1], "superlike"},
		"bad target": {u[0], "42", db.KindLike},
		"bad actor":  {"", u[1], db.KindLike},
		"empty kind": {u[0], u[1], ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RecordInteraction(ctx, c[0], c[1], c[2])
			assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
		})
	}
}

// A failing match check still records the like and reports "failed".
func TestRecordInteraction_MatchFailureIsPartialSuccess(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedMinimal(t, f)
	u := f.users

	require.NoError(t, f.appCtx.DB.Migrator().DropTable(&db.Match{}))

	res, err := f.svc.RecordInteraction(ctx, u[1], u[0], db.KindLike)
	require.NoError(t, err)
	assert.Equal(t, explore.MatchFailed, res.MatchCheck)
	assert.Nil(t, res.Match)

	liked, err := repository.NewInteractionRepository(f.appCtx.DB).HasLiked(ctx, u[1], u[0])
	require.NoError(t, err)
	assert.True(t, liked)
}

// Only user2 shows up for user1: user3 was passed.
func TestListLikedYou(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedMinimal(t, f)
	u := f.users

	_, err := f.svc.RecordInteraction(ctx, u[1], u[0], db.KindLike)
	require.NoError(t, err)

	page, err := f.svc.ListLikedYou(ctx, u[0], nil)
	require.NoError(t, err)
	require.Len(t, page.Likers, 1)
	assert.Equal(t, u[1], page.Likers[0].ActorID)
	assert.Equal(t, u[1], page.Likers[0].Profile.ID)
	assert.NotEmpty(t, page.Likers[0].Profile.DisplayName)
	assert.Nil(t, page.NextPaginationToken)
}

// Mutual likes are not "new".
func TestListNewLikedYou(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedMinimal(t, f)
	u := f.users

	page, err := f.svc.ListNewLikedYou(ctx, u[1], nil)
	require.NoError(t, err)
	require.Len(t, page.Likers, 1)
	assert.Equal(t, u[0], page.Likers[0].ActorID)

	_, err = f.svc.RecordInteraction(ctx, u[1], u[0], db.KindLike)
	require.NoError(t, err)

	page, err = f.svc.ListNewLikedYou(ctx, u[1], nil)
	require.NoError(t, err)
	assert.Empty(t, page.Likers)
}

func TestListLikedYou_BadToken(t *testing.T) {
	f := setupService(t)
	token := "%%%"

	_, err := f.svc.ListLikedYou(context.Background(), f.users[0], &token)
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
}

// The count is served from Redis after the first read and dropped when a
// new interaction targets the user.
func TestCountLikedYouCache(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedMinimal(t, f)
	u := f.users
	key := f.appCtx.RedisCache.KeyForLikeCount(u[1])

	// first call → DB
	n, err := f.svc.CountLikedYou(ctx, u[1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, f.mr.Exists(key))

	// second call → cache
	require.NoError(t, f.mr.Set(key, "5"))
	n, err = f.svc.CountLikedYou(ctx, u[1])
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// new like toward user2 invalidates
	_, err = f.svc.RecordInteraction(ctx, u[2], u[1], db.KindLike)
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(key))

	n, err = f.svc.CountLikedYou(ctx, u[1])
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
