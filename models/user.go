package models

import (
	"time"

	"gorm.io/gorm"
)

// Roles recognised by the engine. Moderator and admin are elevated.
const (
	RoleUser             = "user"
	RoleModerator        = "moderator"
	RoleAdmin            = "admin"
	RoleCommunityManager = "community_manager"
)

// User represents a board identity. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"size:32;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps and role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// IsElevatedRole reports whether role may perform moderation actions.
func IsElevatedRole(role string) bool {
	return role == RoleModerator || role == RoleAdmin
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleModerator, RoleAdmin, RoleCommunityManager:
		return true
	}
	return false
}
