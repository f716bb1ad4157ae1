package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/db"
	"github.com/simplesconnect/simples-connect/internal/repository"
	"github.com/simplesconnect/simples-connect/internal/testutil"
)

func TestCreateMatch_UniquePair(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(testutil.OpenDB(t))

	require.NoError(t, repo.Create(ctx, &db.Match{ID: "m1", LowUserID: "a", HighUserID: "b", IsActive: true}))

	err := repo.Create(ctx, &db.Match{ID: "m2", LowUserID: "a", HighUserID: "b", IsActive: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.True(t, repository.IsUniqueViolation(err))

	m, err := repo.FindByPair(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
}

func TestDeactivateAndReactivate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(testutil.OpenDB(t))
	require.NoError(t, repo.Create(ctx, &db.Match{ID: "m1", LowUserID: "a", HighUserID: "b", IsActive: true}))

	// outsider cannot deactivate
	ok, err := repo.Deactivate(ctx, "m1", "c")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Deactivate(ctx, "m1", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	// second deactivation is a no-op
	ok, err = repo.Deactivate(ctx, "m1", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Reactivate(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reactivate(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := repo.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, m.IsActive)
}

func TestListActiveForUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(testutil.OpenDB(t))
	require.NoError(t, repo.Create(ctx, &db.Match{ID: "m1", LowUserID: "a", HighUserID: "b", IsActive: true}))
	require.NoError(t, repo.Create(ctx, &db.Match{ID: "m2", LowUserID: "a", HighUserID: "c", IsActive: true}))
	require.NoError(t, repo.Create(ctx, &db.Match{ID: "m3", LowUserID: "b", HighUserID: "c", IsActive: true}))
	_, err := repo.Deactivate(ctx, "m2", "a")
	require.NoError(t, err)

	matches, err := repo.ListActiveForUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m1", matches[0].ID)

	active, inactive, err := repo.CountByActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)
	assert.Equal(t, int64(1), inactive)
}

func TestFindByID_NotFound(t *testing.T) {
	repo := repository.NewMatchRepository(testutil.OpenDB(t))
	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
