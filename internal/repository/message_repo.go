package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/simplesconnect/simples-connect/internal/db"
)

// MessageRepository provides data access for messages.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByMatch returns the whole conversation, oldest first.
// Ids are UUIDv7, so they break created_at ties in insertion order.
func (r *MessageRepository) ListByMatch(ctx context.Context, matchID string) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// MarkRead flips is_read for every unread message in the match addressed to
// readerID and returns how many rows changed.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND is_read = ?", matchID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// LastMessages returns the most recent message of each given match.
// Matches without messages are absent from the map.
func (r *MessageRepository) LastMessages(ctx context.Context, matchIDs []string) (map[string]db.Message, error) {
	out := make(map[string]db.Message, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	latest := r.db.
		Table("messages m2").
		Select("MAX(m2.created_at)").
		Where("m2.match_id = messages.match_id")

	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id IN ?", matchIDs).
		Where("created_at = (?)", latest).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// several rows can share the max timestamp; the first one has the highest id
	for _, m := range msgs {
		if _, seen := out[m.MatchID]; !seen {
			out[m.MatchID] = m
		}
	}
	return out, nil
}

// UnreadCounts returns, per match, how many messages addressed to receiverID are unread.
func (r *MessageRepository) UnreadCounts(ctx context.Context, matchIDs []string, receiverID string) (map[string]int64, error) {
	out := make(map[string]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		MatchID string
		N       int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("match_id, COUNT(*) AS n").
		Where("match_id IN ? AND receiver_id = ? AND is_read = ?", matchIDs, receiverID, false).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MatchID] = row.N
	}
	return out, nil
}

func (r *MessageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.Message{}).Count(&n).Error
	return n, err
}
