package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/app"
	"github.com/simplesconnect/simples-connect/internal/cache"
	"github.com/simplesconnect/simples-connect/internal/db"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/logger"
	"github.com/simplesconnect/simples-connect/internal/repository"
)

const (
	// MaxContentLength is the longest message accepted, in characters.
	MaxContentLength = 2000

	// EmptyConversationPreview is shown for a match nobody has written in yet.
	EmptyConversationPreview = "Start a conversation!"
)

// Perspective of a message relative to the requester.
const (
	PerspectiveMine   = "mine"
	PerspectiveTheirs = "theirs"
)

// SubscriptionChecker decides whether a user may send messages.
type SubscriptionChecker interface {
	CanSendMessages(ctx context.Context, userID string) (bool, error)
}

// AllowAll lets every user send messages.
type AllowAll struct{}

func (AllowAll) CanSendMessages(context.Context, string) (bool, error) { return true, nil }

// Service gates message access to the two participants of an active match.
type Service struct {
	appCtx       *app.AppContext
	matchRepo    *repository.MatchRepository
	messageRepo  *repository.MessageRepository
	profileRepo  *repository.ProfileRepository
	subscription SubscriptionChecker
}

// Option customises a Service.
type Option func(*Service)

// WithSubscriptionChecker replaces the default allow-all checker.
func WithSubscriptionChecker(c SubscriptionChecker) Option {
	return func(s *Service) {
		if c != nil {
			s.subscription = c
		}
	}
}

// Summary is one entry of the conversation list.
type Summary struct {
	MatchID      string            `json:"match_id"`
	OtherUser    db.ProfileSummary `json:"other_user"`
	LastMessage  string            `json:"last_message"`
	LastActivity time.Time         `json:"last_activity"`
	UnreadCount  int64             `json:"unread_count"`
}

// MessageView is a message as seen by the requester.
type MessageView struct {
	db.Message
	Perspective string `json:"perspective"`
}

// NewConversationService creates the service with dependencies from AppContext.
func NewConversationService(appCtx *app.AppContext, opts ...Option) *Service {
	s := &Service{
		appCtx:       appCtx,
		matchRepo:    repository.NewMatchRepository(appCtx.DB),
		messageRepo:  repository.NewMessageRepository(appCtx.DB),
		profileRepo:  repository.NewProfileRepository(appCtx.DB),
		subscription: AllowAll{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListConversations returns one summary per active match of userID, most
// recent activity first. Activity is the last message, or the match creation
// when the conversation is still empty.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Summary, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("ListConversations called", "user", userID)

	matches, err := s.matchRepo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("list matches", err)
	}
	if len(matches) == 0 {
		return []Summary{}, nil
	}

	matchIDs := make([]string, 0, len(matches))
	others := make([]string, 0, len(matches))
	for i := range matches {
		other, _ := matches[i].OtherUser(userID)
		matchIDs = append(matchIDs, matches[i].ID)
		others = append(others, other)
	}

	profiles, err := s.profileRepo.FindByIDs(ctx, others)
	if err != nil {
		return nil, svcErr.Storage("load profiles", err)
	}
	last, err := s.messageRepo.LastMessages(ctx, matchIDs)
	if err != nil {
		return nil, svcErr.Storage("load last messages", err)
	}
	unread, err := s.messageRepo.UnreadCounts(ctx, matchIDs, userID)
	if err != nil {
		return nil, svcErr.Storage("count unread", err)
	}

	out := make([]Summary, 0, len(matches))
	for i, m := range matches {
		sum := Summary{
			MatchID:      m.ID,
			OtherUser:    db.ProfileSummary{ID: others[i]},
			LastMessage:  EmptyConversationPreview,
			LastActivity: m.CreatedAt,
			UnreadCount:  unread[m.ID],
		}
		if p, ok := profiles[others[i]]; ok {
			sum.OtherUser = p.Summary()
		}
		if msg, ok := last[m.ID]; ok {
			sum.LastMessage = msg.Content
			sum.LastActivity = msg.CreatedAt
		}
		out = append(out, sum)
	}

	// newest activity first; match id keeps ties stable
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].MatchID > out[j].MatchID
	})
	return out, nil
}

// ListMessages returns the conversation of an active match, oldest first.
// Only the two participants may read it.
func (s *Service) ListMessages(ctx context.Context, matchID, requesterID string) ([]MessageView, error) {
	logger.FromContext(ctx, s.appCtx.Logger).Debug("ListMessages called", "match_id", matchID, "requester", requesterID)

	if _, err := s.gate(ctx, matchID, requesterID); err != nil {
		return nil, err
	}

	msgs, err := s.messageRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, svcErr.Storage("list messages", err)
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		p := PerspectiveTheirs
		if m.SenderID == requesterID {
			p = PerspectiveMine
		}
		views = append(views, MessageView{Message: m, Perspective: p})
	}
	return views, nil
}

// SendMessage appends a message from senderID to the other participant.
//
// Behavior:
//   - Forbidden for non-participants, NotFound for missing or inactive matches.
//   - Content is trimmed; empty or longer than MaxContentLength is rejected.
//   - Kind defaults to text; only text and image are accepted.
//   - The subscription checker may refuse with PaymentRequired.
//   - The receiver is notified on its event channel.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID, content, kind string) (*db.Message, error) {
	log := logger.FromContext(ctx, s.appCtx.Logger)
	log.Debug("SendMessage called", "match_id", matchID, "sender", senderID, "kind", kind)

	m, err := s.gate(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return nil, svcErr.InvalidArgument("content must not be empty")
	case utf8.RuneCountInString(content) > MaxContentLength:
		return nil, svcErr.InvalidArgument("content must be at most 2000 characters")
	}
	if kind == "" {
		kind = db.MessageText
	}
	if kind != db.MessageText && kind != db.MessageImage {
		return nil, svcErr.InvalidArgument("kind must be one of: text, image")
	}

	ok, err := s.subscription.CanSendMessages(ctx, senderID)
	if err != nil {
		log.Error("subscription check failed", "sender", senderID, "err", err)
		return nil, svcErr.Storage("check subscription", err)
	}
	if !ok {
		return nil, svcErr.PaymentRequired("an active subscription is required to send messages")
	}

	receiverID, _ := m.OtherUser(senderID)
	msg := &db.Message{
		ID:         uuid.Must(uuid.NewV7()).String(),
		MatchID:    m.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Kind:       kind,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		log.Error("Create message failed", "err", err)
		return nil, svcErr.Storage("send message", err)
	}

	if s.appCtx.RedisCache != nil {
		ev := cache.Event{Type: cache.EventMessageSent, MatchID: m.ID, At: msg.CreatedAt, Data: msg}
		if err := s.appCtx.RedisCache.Publish(ctx, ev, receiverID); err != nil {
			log.Warn("publish message event failed", "match_id", m.ID, "err", err)
		}
	}
	return msg, nil
}

// MarkRead marks every unread message addressed to readerID in the match as
// read and returns how many changed. Calling it again returns 0.
func (s *Service) MarkRead(ctx context.Context, matchID, readerID string) (int64, error) {
	logger.FromContext(ctx, s.appCtx.Logger).Debug("MarkRead called", "match_id", matchID, "reader", readerID)

	if _, err := s.gate(ctx, matchID, readerID); err != nil {
		return 0, err
	}
	n, err := s.messageRepo.MarkRead(ctx, matchID, readerID)
	if err != nil {
		return 0, svcErr.Storage("mark read", err)
	}
	return n, nil
}

// gate loads the match and checks userID may use its conversation.
func (s *Service) gate(ctx context.Context, matchID, userID string) (*db.Match, error) {
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("match not found")
	}
	if err != nil {
		return nil, svcErr.Storage("load match", err)
	}
	if !m.HasUser(userID) {
		return nil, svcErr.Forbidden("not a participant of this match")
	}
	if !m.IsActive {
		return nil, svcErr.NotFound("match not found")
	}
	return m, nil
}
