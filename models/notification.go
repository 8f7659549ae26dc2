package models

import "time"

// Notification kinds.
const (
	NotifyQuarantine = "quarantine"
	NotifyReply      = "reply"
	NotifyRepost     = "repost"
	NotifyMention    = "mention"
)

// Notification is a stored message to a user. Unread counts are derived from this table.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ActorID   *uint     `json:"actor_id,omitempty"`
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	ContentID *uint     `gorm:"index" json:"content_id,omitempty"`
	Message   string    `gorm:"size:500" json:"message"`
	Read      bool      `gorm:"column:is_read;not null;default:false;index" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// All returns every model managed by the engine, for migration.
func All() []interface{} {
	return []interface{}{
		&User{}, &Content{}, &Flag{}, &Mention{}, &Mute{}, &Ban{},
		&Poll{}, &PollOption{}, &PollVote{}, &Notification{},
	}
}
