package models

import "time"

// Flag is a community report. One row per (content, reporter); a second
// report from the same reporter overwrites the reason.
type Flag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ContentID uint      `gorm:"not null;uniqueIndex:idx_flag_content_user" json:"content_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_flag_content_user" json:"user_id"`
	Reason    string    `gorm:"size:500;not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"reporter"`
}
