package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/db"
)

// IsUniqueViolation reports whether err is a unique-constraint violation.
// With TranslateError enabled gorm wraps these as gorm.ErrDuplicatedKey; the
// message checks cover connections opened without translation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "SQLSTATE 23505") // postgres
}

// MatchRepository provides data access for matches.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// Create inserts m as-is. A row for the same canonical pair makes this fail
// with a unique violation (see IsUniqueViolation).
func (r *MatchRepository) Create(ctx context.Context, m *db.Match) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID returns gorm.ErrRecordNotFound when no match has that id.
func (r *MatchRepository) FindByID(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByPair looks a match up by its canonical (low, high) pair.
func (r *MatchRepository) FindByPair(ctx context.Context, low, high string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("low_user_id = ? AND high_user_id = ?", low, high).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Reactivate flips an inactive match back to active.
// Returns false when the row was already active (or does not exist), so
// concurrent reactivations update the row at most once.
func (r *MatchRepository) Reactivate(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND is_active = ?", id, false).
		Updates(map[string]any{"is_active": true, "updated_at": r.db.NowFunc()})
	return res.RowsAffected > 0, res.Error
}

// Deactivate flips an active match to inactive, but only when userID is one
// of its participants. Returns false when nothing matched the guard.
func (r *MatchRepository) Deactivate(ctx context.Context, id, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("(low_user_id = ? OR high_user_id = ?)", userID, userID).
		Updates(map[string]any{"is_active": false, "updated_at": r.db.NowFunc()})
	return res.RowsAffected > 0, res.Error
}

// ListActiveForUser returns the user's active matches, newest first.
func (r *MatchRepository) ListActiveForUser(ctx context.Context, userID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("(low_user_id = ? OR high_user_id = ?)", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}

// CountByActive returns (active, inactive) match totals.
func (r *MatchRepository) CountByActive(ctx context.Context) (int64, int64, error) {
	var active, inactive int64
	if err := r.db.WithContext(ctx).Model(&db.Match{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&db.Match{}).Where("is_active = ?", false).Count(&inactive).Error; err != nil {
		return 0, 0, err
	}
	return active, inactive, nil
}
