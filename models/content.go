package models

import "time"

// Content is a unit of user content: a root post, a reply or a repost.
// Replies form a tree through ParentID. RepostOf is a weak reference.
type Content struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	Body            string     `gorm:"type:text;not null" json:"body"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	ExpiresAt       *time.Time `gorm:"index" json:"expires_at"`
	ParentID        *uint      `gorm:"index" json:"parent_id,omitempty"`
	RepostOf        *uint      `gorm:"index" json:"repost_of,omitempty"`
	PopupReplyLimit *int       `json:"popup_reply_limit,omitempty"`
	PopupTimeLimit  *int       `json:"popup_time_limit,omitempty"` // minutes
	PopupStartedAt  *time.Time `json:"popup_started_at,omitempty"`
	PopupClosedAt   *time.Time `json:"popup_closed_at,omitempty"`
	IsQuarantined   bool       `gorm:"not null;default:false;index" json:"is_quarantined"`
	RepliesDisabled bool       `gorm:"not null;default:false" json:"replies_disabled"`
	Pinned          bool       `gorm:"not null;default:false" json:"pinned"`
	User            User       `gorm:"foreignKey:UserID" json:"author"`
}

// TableName keeps the table name stable regardless of naming strategy.
func (Content) TableName() string { return "contents" }

// HasPopup reports whether the item carries a popup-thread configuration.
func (c *Content) HasPopup() bool {
	return c.PopupReplyLimit != nil && c.PopupTimeLimit != nil
}

// IsLiveAt reports whether the item is still alive at t.
func (c *Content) IsLiveAt(t time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(t)
}
