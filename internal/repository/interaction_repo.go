package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simplesconnect/simples-connect/internal/db"
	"github.com/simplesconnect/simples-connect/internal/utils/pagination"
)

// InteractionRepository provides data access methods for the Interaction model.
// It encapsulates all queries related to likes/passes between users.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// Upsert records the latest intent of actor toward target and returns the stored row.
//
// Behavior:
//   - If the (actor_id, target_id) pair exists → kind and timestamps are overwritten,
//     the row keeps its original id.
//   - If it doesn’t exist → a new row is inserted with a fresh UUIDv7.
//   - The unique index on the pair guarantees a single row per direction.
//
// Example:
//
//	repo.Upsert(ctx, alice, bob, db.KindLike) // alice liked bob
func (r *InteractionRepository) Upsert(
	ctx context.Context,
	actorID, targetID, kind string,
) (db.Interaction, error) {
	now := r.db.NowFunc()
	in := db.Interaction{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ActorID:   actorID,
		TargetID:  targetID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "created_at", "updated_at"}),
		}).
		Create(&in).Error
	if err != nil {
		return db.Interaction{}, err
	}

	// on conflict the generated id was discarded; read back the stored row
	var stored db.Interaction
	err = r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&stored).Error
	return stored, err
}

// HasLiked checks whether an actor's latest intent toward target is a like.
//
// Used by the match engine to look for the mirror interaction.
func (r *InteractionRepository) HasLiked(
	ctx context.Context,
	actorID, targetID string,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Interaction{}).
		Where("actor_id = ? AND target_id = ? AND kind = ?", actorID, targetID, db.KindLike).
		Count(&count).Error
	return count > 0, err
}

// LikedAfter reports whether actor's like toward target was recorded after t.
//
// Used to tell a fresh like from one left over from before an unmatch.
func (r *InteractionRepository) LikedAfter(
	ctx context.Context,
	actorID, targetID string,
	t time.Time,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Interaction{}).
		Where("actor_id = ? AND target_id = ? AND kind = ?", actorID, targetID, db.KindLike).
		Where("updated_at > ?", t).
		Count(&count).Error
	return count > 0, err
}

// GetLikers returns users whose latest intent toward target is a like.
//
// Behavior:
//   - Excludes users that the target explicitly passed.
//   - Ordered by updated_at DESC, actor_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *InteractionRepository) GetLikers(
	ctx context.Context,
	targetID string,
	paginationToken *string,
	limit int,
) ([]db.Interaction, *string, error) {
	return r.pageLikers(ctx, targetID, paginationToken, limit, false)
}

// GetNewLikers returns users who liked the target but have not been liked back.
//
// Behavior:
//   - Same filters as GetLikers.
//   - Additionally excludes mutual likes (target already liked them back).
func (r *InteractionRepository) GetNewLikers(
	ctx context.Context,
	targetID string,
	paginationToken *string,
	limit int,
) ([]db.Interaction, *string, error) {
	return r.pageLikers(ctx, targetID, paginationToken, limit, true)
}

func (r *InteractionRepository) pageLikers(
	ctx context.Context,
	targetID string,
	paginationToken *string,
	limit int,
	excludeMutual bool,
) ([]db.Interaction, *string, error) {
	var interactions []db.Interaction

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.likersQuery(ctx, targetID).
		Order("i.updated_at DESC, i.actor_id DESC").
		Limit(limit + 1)

	if excludeMutual {
		// subquery to exclude mutual likes
		mutual := r.db.
			Table("user_interactions i3").
			Select("1").
			Where("i3.actor_id = i.target_id AND i3.target_id = i.actor_id AND i3.kind = ?", db.KindLike)
		query = query.Where("NOT EXISTS (?)", mutual)
	}

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.UpdatedUnix).UTC()
		query = query.Where(
			"(i.updated_at < ? OR (i.updated_at = ? AND i.actor_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&interactions).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(interactions) > limit {
		last := interactions[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ActorID,
			UpdatedUnix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		interactions = interactions[:limit]
	}

	return interactions, nextToken, nil
}

// CountLikers returns how many users currently like the given target,
// excluding users the target passed.
//
// Used in conjunction with Redis cache (DB is fallback).
func (r *InteractionRepository) CountLikers(
	ctx context.Context,
	targetID string,
) (int64, error) {
	var count int64
	if err := r.likersQuery(ctx, targetID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByKind returns the number of interaction rows per kind.
func (r *InteractionRepository) CountByKind(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Kind string
		N    int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Interaction{}).
		Select("kind, COUNT(*) AS n").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Kind] = row.N
	}
	return out, nil
}

func (r *InteractionRepository) likersQuery(ctx context.Context, targetID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("user_interactions i").
		Where("i.target_id = ? AND i.kind = ?", targetID, db.KindLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM user_interactions i2
				WHERE i2.actor_id = ?
				  AND i2.target_id = i.actor_id
				  AND i2.kind = ?
			)`, targetID, db.KindPass)
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
