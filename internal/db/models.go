package db

import (
	"time"

	"gorm.io/datatypes"
)

// Interaction kinds.
const (
	KindLike = "like"
	KindPass = "pass"
)

// Message kinds.
const (
	MessageText  = "text"
	MessageImage = "image"
)

// Profile is the public part of a user's profile. Rows are owned by the
// profile service; this module only reads them.
type Profile struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	DisplayName string                      `gorm:"size:128;not null" json:"display_name"`
	Bio         string                      `gorm:"type:text" json:"bio,omitempty"`
	Gender      string                      `gorm:"size:16" json:"gender,omitempty"`
	Photos      datatypes.JSONSlice[string] `json:"photos,omitempty"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// AvatarURL returns the first photo, or "" when the profile has none.
func (p Profile) AvatarURL() string {
	if len(p.Photos) == 0 {
		return ""
	}
	return p.Photos[0]
}

// ProfileSummary is what one participant may see of the other.
type ProfileSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (p Profile) Summary() ProfileSummary {
	return ProfileSummary{ID: p.ID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL()}
}

// Interaction is an actor's latest like/pass toward a target.
//
// Unique index: idx_interaction_pair(actor_id, target_id)
//   - One row per ordered pair; re-swiping overwrites kind and timestamps.
//
// Indexes:
//   - idx_target_kind_updated(target_id, kind, updated_at DESC)
//     Serves "who liked me" lists and counts.
type Interaction struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ActorID   string    `gorm:"size:36;not null;uniqueIndex:idx_interaction_pair,priority:1" json:"actor_id"`
	TargetID  string    `gorm:"size:36;not null;uniqueIndex:idx_interaction_pair,priority:2;index:idx_target_kind_updated,priority:1" json:"target_id"`
	Kind      string    `gorm:"size:8;not null;index:idx_target_kind_updated,priority:2" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index:idx_target_kind_updated,priority:3,sort:desc" json:"updated_at"`
}

func (Interaction) TableName() string { return "user_interactions" }

// Match is a mutual like between two users.
//
// LowUserID < HighUserID always holds (see CanonicalPair), and the unique
// index idx_match_pair makes the store reject a second row for the same pair.
type Match struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	LowUserID  string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:1" json:"low_user_id"`
	HighUserID string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:2;index:idx_match_high" json:"high_user_id"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasUser reports whether userID is one of the two participants.
func (m *Match) HasUser(userID string) bool {
	return m.LowUserID == userID || m.HighUserID == userID
}

// OtherUser returns the participant that is not userID.
func (m *Match) OtherUser(userID string) (string, bool) {
	switch userID {
	case m.LowUserID:
		return m.HighUserID, true
	case m.HighUserID:
		return m.LowUserID, true
	}
	return "", false
}

// Message belongs to a match; IsRead is its only mutable column.
type Message struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	MatchID    string    `gorm:"size:36;not null;index:idx_message_match_created,priority:1;index:idx_message_unread,priority:1" json:"match_id"`
	SenderID   string    `gorm:"size:36;not null" json:"sender_id"`
	ReceiverID string    `gorm:"size:36;not null;index:idx_message_unread,priority:2" json:"receiver_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Kind       string    `gorm:"size:8;not null;default:text" json:"kind"`
	IsRead     bool      `gorm:"not null;default:false;index:idx_message_unread,priority:3" json:"is_read"`
	CreatedAt  time.Time `gorm:"index:idx_message_match_created,priority:2" json:"created_at"`
}

// CanonicalPair orders two user ids so that the same unordered pair always
// maps to the same (low, high) tuple.
func CanonicalPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}
