package db

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo profiles and interactions.
//
// Behavior:
//  1. Clears existing data in messages, matches, user_interactions and profiles.
//  2. Creates 20 profiles (10 male, 10 female) with deterministic UUIDs.
//  3. Generates interactions between opposite genders with ~70% likes; every 3rd
//     pair also gets the reciprocal like so that matches can be formed.
//
// Matches are NOT created here: callers run the match engine over the returned
// likes so that every match row goes through the same canonicalization.
func SeedTestData(db *gorm.DB) ([]Profile, []Interaction, error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "user_interactions", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// --- Seed Profiles (10 male, 10 female) ---
	profiles := make([]Profile, 0, 20)
	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}
		profiles = append(profiles, Profile{
			ID:          SeedUserID(i),
			DisplayName: fmt.Sprintf("User %d", i),
			Bio:         "Seeded demo profile",
			Gender:      gender,
			Photos:      []string{fmt.Sprintf("https://picsum.photos/seed/simples-%d/400/400", i)},
		})
	}
	if err := db.Create(&profiles).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to seed profiles: %w", err)
	}

	// --- Seed Interactions ---
	var interactions []Interaction
	counter := 0
	for a := 0; a < len(profiles); a++ {
		for j := 0; j < 8; j++ { // each user decides on ~8 others
			b := r.Intn(len(profiles))
			if a == b || profiles[a].Gender == profiles[b].Gender {
				continue
			}

			kind := KindPass
			if r.Intn(100) < 70 {
				kind = KindLike
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				kind = KindLike
				recip, err := upsertInteraction(db, profiles[b].ID, profiles[a].ID, KindLike)
				if err != nil {
					return nil, nil, err
				}
				interactions = append(interactions, recip)
			}

			in, err := upsertInteraction(db, profiles[a].ID, profiles[b].ID, kind)
			if err != nil {
				return nil, nil, err
			}
			interactions = append(interactions, in)
			counter++
		}
	}

	return profiles, interactions, nil
}

// SeedUserID returns the deterministic profile id used for seed user n.
func SeedUserID(n int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("simples-seed-user-%d", n))).String()
}

func upsertInteraction(db *gorm.DB, actorID, targetID, kind string) (Interaction, error) {
	in := Interaction{
		ID:       uuid.Must(uuid.NewV7()).String(),
		ActorID:  actorID,
		TargetID: targetID,
		Kind:     kind,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "created_at", "updated_at"}),
	}).Create(&in).Error
	if err != nil {
		return Interaction{}, fmt.Errorf("failed to seed interaction: %w", err)
	}
	return in, nil
}
