package models

import "time"

// Mention consent states.
const (
	MentionPending  = "pending"
	MentionAccepted = "accepted"
	MentionDeclined = "declined"
)

// Mention records a request to link a mentioned identity from a content item.
type Mention struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ContentID       uint       `gorm:"index;not null" json:"content_id"`
	MentionedUserID uint       `gorm:"index;not null" json:"mentioned_user_id"`
	RequesterID     uint       `gorm:"index;not null" json:"requester_id"`
	Status          string     `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	RespondedAt     *time.Time `json:"responded_at"`
	MentionedUser   User       `gorm:"foreignKey:MentionedUserID" json:"mentioned_user"`
}
