package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/cache"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/logger"
	"github.com/simplesconnect/simples-connect/internal/repository"
)

// Service owns the match lifecycle: forming a match from a mutual like,
// listing a user's matches and unmatching. It is the only writer of matches.
type Service struct {
	appCtx          *app.AppContext
	interactionRepo *repository.InteractionRepository
	matchRepo       *repository.MatchRepository
	profileRepo     *repository.ProfileRepository
}

// Result is the outcome of TryFormMatch.
type Result struct {
	Formed      bool      `json:"formed"`
	Match       *db.Match `json:"match,omitempty"`
	Reactivated bool      `json:"reactivated,omitempty"`
}

// View is a match as seen by one of its participants.
type View struct {
	ID        string            `json:"id"`
	OtherUser db.ProfileSummary `json:"other_user"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewMatchingService creates the service with dependencies from AppContext.
func NewMatchingService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:          appCtx,
		interactionRepo: repository.NewInteractionRepository(appCtx.DB),
		matchRepo:       repository.NewMatchRepository(appCtx.DB),
		profileRepo:     repository.NewProfileRepository(appCtx.DB),
	}
}

// TryFormMatch is called right after actor liked target. It materialises the
// pair's match when target already likes actor.
//
// Behavior:
//   - No mirror like → {Formed: false}; this is the common case, not an error.
//   - Otherwise inserts the canonical (low, high) row. When the unique index
//     rejects it, the existing row wins: returned as-is when active,
//     reactivated (same id, fresh updated_at) when previously unmatched.
//   - An unmatched pair is reactivated only once both users liked each other
//     again after the unmatch; likes from before it do not count.
//   - Safe to call any number of times and from concurrent requests.
func (s *Service) TryFormMatch(ctx context.Context, actorID, targetID string) (Result, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("TryFormMatch called", "actor", actorID, "target", targetID)

	if actorID == targetID {
		return Result{}, svcErr.InvalidArgument("cannot match with yourself")
	}

	mutual, err := s.interactionRepo.HasLiked(ctx, targetID, actorID)
	if err != nil {
		return Result{}, svcErr.Storage("check mirror like", err)
	}
	if !mutual {
		return Result{Formed: false}, nil
	}

	low, high := db.CanonicalPair(actorID, targetID)
	m := &db.Match{
		ID:         uuid.Must(uuid.NewV7()).String(),
		LowUserID:  low,
		HighUserID: high,
		IsActive:   true,
	}

	err = s.matchRepo.Create(ctx, m)
	switch {
	case err == nil:
		log.Info("match formed", "match_id", m.ID, "low", low, "high", high)
		s.publishFormed(ctx, m)
		return Result{Formed: true, Match: m}, nil

	case repository.IsUniqueViolation(err):
		return s.convergeOnExisting(ctx, low, high)

	default:
		return Result{}, svcErr.Storage("insert match", err)
	}
}

// convergeOnExisting resolves the uniqueness race: some row for the pair exists.
func (s *Service) convergeOnExisting(ctx context.Context, low, high string) (Result, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)

	existing, err := s.matchRepo.FindByPair(ctx, low, high)
	if err != nil {
		return Result{}, svcErr.Storage("refetch match", err)
	}
	if existing.IsActive {
		log.Debug("match already active", "match_id", existing.ID)
		return Result{Formed: true, Match: existing}, nil
	}

	// both likes must postdate the unmatch, which is the row's last update
	for _, dir := range [][2]string{{low, high}, {high, low}} {
		fresh, err := s.interactionRepo.LikedAfter(ctx, dir[0], dir[1], existing.UpdatedAt)
		if err != nil {
			return Result{}, svcErr.Storage("check like after unmatch", err)
		}
		if !fresh {
			log.Debug("match stays inactive", "match_id", existing.ID, "waiting_on", dir[0])
			return Result{Formed: false}, nil
		}
	}

	flipped, err := s.matchRepo.Reactivate(ctx, existing.ID)
	if err != nil {
		return Result{}, svcErr.Storage("reactivate match", err)
	}

	current, err := s.matchRepo.FindByID(ctx, existing.ID)
	if err != nil {
		return Result{}, svcErr.Storage("refetch match", err)
	}
	if flipped {
		log.Info("match reactivated", "match_id", current.ID)
		s.publishFormed(ctx, current)
	}
	return Result{Formed: true, Match: current, Reactivated: flipped}, nil
}

// ListMatches returns the caller's active matches, newest first, each with the
// other participant's public profile.
func (s *Service) ListMatches(ctx context.Context, userID string) ([]View, error) {
	logger.FromContext(ctx, s.appCtx.Logger).Debug("ListMatches called", "user", userID)

	matches, err := s.matchRepo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("list matches", err)
	}

	others := make([]string, 0, len(matches))
	for i := range matches {
		other, _ := matches[i].OtherUser(userID)
		others = append(others, other)
	}
	profiles, err := s.profileRepo.FindByIDs(ctx, others)
	if err != nil {
		return nil, svcErr.Storage("load profiles", err)
	}

	views := make([]View, 0, len(matches))
	for i, m := range matches {
		views = append(views, View{
			ID:        m.ID,
			OtherUser: summaryOf(profiles, others[i]),
			IsActive:  m.IsActive,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return views, nil
}

// Unmatch deactivates an active match the requester participates in.
//
// Missing, inactive and foreign matches all yield the same NotFound so the
// caller cannot probe for existence. Messages and interactions are kept.
func (s *Service) Unmatch(ctx context.Context, matchID, requesterID string) (*db.Match, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("Unmatch called", "match_id", matchID, "requester", requesterID)

	ok, err := s.matchRepo.Deactivate(ctx, matchID, requesterID)
	if err != nil {
		return nil, svcErr.Storage("deactivate match", err)
	}
	if !ok {
		return nil, svcErr.NotFound("match not found")
	}

	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("match not found")
		}
		return nil, svcErr.Storage("refetch match", err)
	}
	log.Info("match deactivated", "match_id", m.ID, "by", requesterID)
	return m, nil
}

func (s *Service) publishFormed(ctx context.Context, m *db.Match) {
	if s.appCtx.RedisCache == nil {
		return
	}
	ev := cache.Event{Type: cache.EventMatchFormed, MatchID: m.ID, At: m.UpdatedAt}
	if err := s.appCtx.RedisCache.Publish(ctx, ev, m.LowUserID, m.HighUserID); err != nil {
		logger.FromContext(ctx, s.appCtx.Logger).Warn("publish match event failed", "match_id", m.ID, "err", err)
	}
}

func summaryOf(profiles map[string]db.Profile, id string) db.ProfileSummary {
	if p, ok := profiles[id]; ok {
		return p.Summary()
	}
	return db.ProfileSummary{ID: id}
}
