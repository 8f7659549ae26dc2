package models

import "time"

// Mute is a time-boxed write restriction. Logically absent once ExpiresAt has passed.
type Mute struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Reason    string    `gorm:"size:500" json:"reason"`
	MutedBy   uint      `gorm:"not null" json:"muted_by"`
	MutedAt   time.Time `json:"muted_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// Ban is a permanent restriction that must be revoked explicitly.
type Ban struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Reason   string    `gorm:"size:500" json:"reason"`
	BannedBy uint      `gorm:"not null" json:"banned_by"`
	BannedAt time.Time `json:"banned_at"`
}
