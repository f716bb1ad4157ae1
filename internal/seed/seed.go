// Package seed fills a development database with demo data. Likes go through
// the match engine so seeded matches look exactly like organic ones.
package seed

import (
	"context"
	"fmt"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/db"
	"github.com/simplesconnect/simples-connect/internal/service/conversation"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
)

// Report summarises a seeding run.
type Report struct {
	Profiles     int
	Interactions int
	Matches      int
	Messages     int
	// Tokens maps the first few seeded user ids to dev access tokens. The
	// first one carries AdminRole.
	Tokens map[string]string
}

// AdminRole is granted to the first seeded user's token.
const AdminRole = "admin"

// openers are sent into the first few matches so the conversation list is not empty.
var openers = []string{"Hey! How's your week going?", "Hi there 👋", "Loved your photos!"}

// Run resets the database, seeds profiles and interactions, forms matches
// through the engine, opens a few conversations and mints dev tokens.
func Run(ctx context.Context, appCtx *app.AppContext, jwt *auth.JWTManager, tokens int) (*Report, error) {
	log := appCtx.Logger

	profiles, interactions, err := db.SeedTestData(appCtx.DB)
	if err != nil {
		return nil, err
	}
	rep := &Report{Profiles: len(profiles), Interactions: len(interactions), Tokens: map[string]string{}}

	matcher := matching.NewMatchingService(appCtx)
	chats := conversation.NewConversationService(appCtx)

	// later swipes may have overwritten earlier ones, so read back what stuck
	var likes []db.Interaction
	if err := appCtx.DB.WithContext(ctx).Where("kind = ?", db.KindLike).Order("id").Find(&likes).Error; err != nil {
		return nil, fmt.Errorf("failed to load seeded likes: %w", err)
	}

	seen := map[string]bool{}
	for _, in := range likes {
		res, err := matcher.TryFormMatch(ctx, in.ActorID, in.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to form seed match: %w", err)
		}
		if !res.Formed || seen[res.Match.ID] {
			continue
		}
		seen[res.Match.ID] = true
		rep.Matches++

		if rep.Messages < len(openers) {
			if _, err := chats.SendMessage(ctx, res.Match.ID, res.Match.LowUserID, openers[rep.Messages], db.MessageText); err != nil {
				return nil, fmt.Errorf("failed to seed message: %w", err)
			}
			rep.Messages++
		}
	}

	for i := 0; i < tokens && i < len(profiles); i++ {
		var roles []string
		if i == 0 {
			roles = append(roles, AdminRole)
		}
		tok, _, err := jwt.GenerateToken(profiles[i].ID, fmt.Sprintf("user%d@simples.dev", i+1), roles...)
		if err != nil {
			return nil, fmt.Errorf("failed to mint dev token: %w", err)
		}
		rep.Tokens[profiles[i].ID] = tok
	}

	log.Info("seeding completed",
		"profiles", rep.Profiles,
		"interactions", rep.Interactions,
		"matches", rep.Matches,
		"messages", rep.Messages,
	)
	return rep, nil
}
