package explore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/logger"
	"github.com/simplesconnect/simples-connect/internal/repository"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
	"github.com/simplesconnect/simples-connect/internal/utils/pagination"
)

// PageSize is the number of likers returned per page.
const PageSize = 20

// Values of InteractionResult.MatchCheck.
const (
	MatchFormed    = "formed"
	MatchNotFormed = "not_formed"
	MatchSkipped   = "skipped"
	MatchFailed    = "failed"
)

// Service records swipes and serves the "who liked me" views.
// It contains the business logic on top of repository and cache layers.
type Service struct {
	appCtx          *app.AppContext
	interactionRepo *repository.InteractionRepository
	profileRepo     *repository.ProfileRepository
	matcher         *matching.Service
}

// InteractionResult is returned by RecordInteraction. A failed match check
// does not fail the request; MatchCheck reports it instead.
type InteractionResult struct {
	Interaction db.Interaction `json:"interaction"`
	MatchCheck  string         `json:"match_check"`
	Match       *db.Match      `json:"match,omitempty"`
	Reactivated bool           `json:"reactivated,omitempty"`
}

// Liker is one entry of the liked-you lists.
type Liker struct {
	ActorID       string            `json:"actor_id"`
	UnixTimestamp int64             `json:"unix_timestamp"`
	Profile       db.ProfileSummary `json:"profile"`
}

// LikersPage is a page of likers plus the token for the next one.
type LikersPage struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via InteractionRepository and ProfileRepository)
//   - RedisCache for like counters from AppContext
//   - the match engine, run after every like
func NewExploreService(appCtx *app.AppContext, matcher *matching.Service) *Service {
	return &Service{
		appCtx:          appCtx,
		interactionRepo: repository.NewInteractionRepository(appCtx.DB),
		profileRepo:     repository.NewProfileRepository(appCtx.DB),
		matcher:         matcher,
	}
}

// RecordInteraction stores actor's latest intent toward target and, for a like,
// runs the match engine.
//
// Behavior:
//   - Validates both ids (UUIDs, must differ) and the kind (like/pass).
//   - Upserts the (actor, target) row; re-swiping overwrites kind and timestamps.
//   - Drops target's cached like count.
//   - For likes calls TryFormMatch. Its failure is logged and reported, and the
//     interaction is still returned with MatchCheck = "failed".
//
// Example:
//
//	svc.RecordInteraction(ctx, alice, bob, db.KindLike)
func (s *Service) RecordInteraction(ctx context.Context, actorID, targetID, kind string) (*InteractionResult, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("RecordInteraction called", "actor", actorID, "target", targetID, "kind", kind)

	actor, err := parseUserID(actorID, "actor_id")
	if err != nil {
		return nil, err
	}
	target, err := parseUserID(targetID, "target_id")
	if err != nil {
		return nil, err
	}
	if actor == target {
		return nil, svcErr.InvalidArgument("cannot interact with yourself")
	}
	if kind != db.KindLike && kind != db.KindPass {
		return nil, svcErr.InvalidArgument("kind must be one of: like, pass")
	}

	in, err := s.interactionRepo.Upsert(ctx, actor, target, kind)
	if err != nil {
		log.Error("Upsert interaction failed", "err", err)
		return nil, svcErr.Storage("record interaction", err)
	}

	if s.appCtx.RedisCache != nil {
		if err := s.appCtx.RedisCache.InvalidateLikeCount(ctx, target); err != nil {
			log.Warn("like count invalidation failed", "target", target, "err", err)
		}
	}

	res := &InteractionResult{Interaction: in, MatchCheck: MatchSkipped}
	if kind != db.KindLike {
		return res, nil
	}

	mr, err := s.matcher.TryFormMatch(ctx, actor, target)
	if err != nil {
		log.Error("match check failed", "actor", actor, "target", target, "err", err)
		svcErr.Report(ctx, err, map[string]string{"operation": "try_form_match"})
		res.MatchCheck = MatchFailed
		return res, nil
	}

	res.MatchCheck = MatchNotFormed
	if mr.Formed {
		res.MatchCheck = MatchFormed
		res.Match = mr.Match
		res.Reactivated = mr.Reactivated
	}
	return res, nil
}

// ListLikedYou returns the users who liked the recipient.
//
// Behavior:
//   - Excludes users that the recipient explicitly passed.
//   - Newest first, cursor-based pagination with paginationToken.
//   - Returns actor_id + timestamp pairs with the liker's public profile.
func (s *Service) ListLikedYou(ctx context.Context, recipientID string, paginationToken *string) (*LikersPage, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("ListLikedYou called", "recipient", recipientID)

	interactions, next, err := s.interactionRepo.GetLikers(ctx, recipientID, paginationToken, PageSize)
	if err != nil {
		log.Error("GetLikers failed", "err", err)
		return nil, likersErr(err)
	}
	return s.toPage(ctx, interactions, next)
}

// ListNewLikedYou returns the users who liked the recipient but have not been
// liked back. Same filters and paging as ListLikedYou.
func (s *Service) ListNewLikedYou(ctx context.Context, recipientID string, paginationToken *string) (*LikersPage, error) {
	logger.FromContext(ctx, s.appCtx.Logger).Debug("ListNewLikedYou called", "recipient", recipientID)

	interactions, next, err := s.interactionRepo.GetNewLikers(ctx, recipientID, paginationToken, PageSize)
	if err != nil {
		return nil, likersErr(err)
	}
	return s.toPage(ctx, interactions, next)
}

// CountLikedYou returns how many users liked the recipient.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID), refreshing its TTL.
//  2. If cache miss or unreadable value, falls back to DB via repository.CountLikers.
//  3. On DB fetch, stores the count with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, recipientID string) (int64, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("CountLikedYou called", "recipient", recipientID)

	rc := s.appCtx.RedisCache
	if rc != nil {
		n, ok, err := rc.GetLikeCount(ctx, recipientID)
		if err != nil {
			log.Warn("like count cache read failed", "err", err)
		}
		if ok {
			return n, nil
		}
	}

	count, err := s.interactionRepo.CountLikers(ctx, recipientID)
	if err != nil {
		return 0, svcErr.Storage("count likers", err)
	}

	if rc != nil {
		if err := rc.SetLikeCount(ctx, recipientID, count); err != nil {
			log.Warn("like count cache write failed", "err", err)
		}
	}
	return count, nil
}

func (s *Service) toPage(ctx context.Context, interactions []db.Interaction, next *string) (*LikersPage, error) {
	ids := make([]string, 0, len(interactions))
	for _, in := range interactions {
		ids = append(ids, in.ActorID)
	}
	profiles, err := s.profileRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Storage("load profiles", err)
	}

	page := &LikersPage{Likers: make([]Liker, 0, len(interactions)), NextPaginationToken: next}
	for _, in := range interactions {
		l := Liker{
			ActorID:       in.ActorID,
			UnixTimestamp: in.UpdatedAt.UnixMilli(),
			Profile:       db.ProfileSummary{ID: in.ActorID},
		}
		if p, ok := profiles[in.ActorID]; ok {
			l.Profile = p.Summary()
		}
		page.Likers = append(page.Likers, l)
	}
	return page, nil
}

// likersErr maps a malformed pagination token to InvalidArgument.
func likersErr(err error) error {
	if errors.Is(err, pagination.ErrInvalidToken) {
		return svcErr.InvalidArgument("pagination_token is malformed")
	}
	return svcErr.Storage("list likers", err)
}

func parseUserID(raw, field string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", svcErr.InvalidArgument(field + " must be a valid UUID")
	}
	return id.String(), nil
}
