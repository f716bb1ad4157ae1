package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/db"
)

// ProfileRepository reads public profile fields. Profiles are written elsewhere.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// FindByIDs returns the profiles that exist among ids, keyed by id.
func (r *ProfileRepository) FindByIDs(ctx context.Context, ids []string) (map[string]db.Profile, error) {
	out := make(map[string]db.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var profiles []db.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.Profile{}).Count(&n).Error
	return n, err
}
