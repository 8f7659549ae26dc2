package models

import "time"

// Poll belongs 1:1 to a root content item.
type Poll struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	ContentID uint         `gorm:"not null;uniqueIndex" json:"content_id"`
	CreatedAt time.Time    `json:"created_at"`
	Options   []PollOption `gorm:"foreignKey:PollID" json:"options"`
}

// PollOption has a stable zero-based index within its poll.
type PollOption struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	PollID uint   `gorm:"not null;uniqueIndex:idx_option_poll_index" json:"poll_id"`
	Index  int    `gorm:"column:option_index;not null;uniqueIndex:idx_option_poll_index" json:"index"`
	Text   string `gorm:"size:255;not null" json:"text"`
}

// PollVote is one vote per (poll, voter); revoting overwrites the index.
type PollVote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PollID      uint      `gorm:"not null;uniqueIndex:idx_vote_poll_user" json:"poll_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_vote_poll_user" json:"user_id"`
	OptionIndex int       `gorm:"not null" json:"option_index"`
	VotedAt     time.Time `json:"voted_at"`
}
