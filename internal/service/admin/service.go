package admin

import (
	"context"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/auth"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/logger"
	"github.com/simplesconnect/simples-connect/internal/repository"
)

// Authorizer decides whether an identity carries an admin role.
type Authorizer interface {
	IsAdmin(id auth.Identity) bool
}

// Service serves dashboard totals to administrators.
type Service struct {
	appCtx          *app.AppContext
	authz           Authorizer
	profileRepo     *repository.ProfileRepository
	interactionRepo *repository.InteractionRepository
	matchRepo       *repository.MatchRepository
	messageRepo     *repository.MessageRepository
}

// Stats are the dashboard totals.
type Stats struct {
	Profiles        int64 `json:"profiles"`
	Interactions    int64 `json:"interactions"`
	Likes           int64 `json:"likes"`
	Passes          int64 `json:"passes"`
	ActiveMatches   int64 `json:"active_matches"`
	InactiveMatches int64 `json:"inactive_matches"`
	Messages        int64 `json:"messages"`
}

func NewAdminService(appCtx *app.AppContext, authz Authorizer) *Service {
	return &Service{
		appCtx:          appCtx,
		authz:           authz,
		profileRepo:     repository.NewProfileRepository(appCtx.DB),
		interactionRepo: repository.NewInteractionRepository(appCtx.DB),
		matchRepo:       repository.NewMatchRepository(appCtx.DB),
		messageRepo:     repository.NewMessageRepository(appCtx.DB),
	}
}

// Stats returns platform totals. Only identities holding an admin role may call it.
func (s *Service) Stats(ctx context.Context, caller auth.Identity) (*Stats, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("Stats called", "user", caller.UserID)

	if !s.authz.IsAdmin(caller) {
		log.Warn("admin stats denied", "user", caller.UserID)
		return nil, svcErr.Forbidden("admin role required")
	}

	var (
		st  Stats
		err error
	)
	if st.Profiles, err = s.profileRepo.Count(ctx); err != nil {
		return nil, svcErr.Storage("count profiles", err)
	}
	byKind, err := s.interactionRepo.CountByKind(ctx)
	if err != nil {
		return nil, svcErr.Storage("count interactions", err)
	}
	st.Likes, st.Passes = byKind[db.KindLike], byKind[db.KindPass]
	st.Interactions = st.Likes + st.Passes
	if st.ActiveMatches, st.InactiveMatches, err = s.matchRepo.CountByActive(ctx); err != nil {
		return nil, svcErr.Storage("count matches", err)
	}
	if st.Messages, err = s.messageRepo.Count(ctx); err != nil {
		return nil, svcErr.Storage("count messages", err)
	}
	return &st, nil
}
