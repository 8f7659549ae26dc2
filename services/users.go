package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ephembbs/models"
)

// Authenticate resolves the current identity for a verified token subject.
// The role is read fresh so demotions apply without re-login; banned users get a *BannedError.
func (e *Engine) Authenticate(ctx context.Context, userID uint) (Actor, error) {
	var u models.User
	if err := e.dbx(ctx).Select("id", "username", "role").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Actor{}, ErrUnauthorized
		}
		return Actor{}, fmt.Errorf("load user: %w", err)
	}
	if err := e.CheckBanned(ctx, u.ID); err != nil {
		return Actor{}, err
	}
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// UpdateRole changes the role of targetID. Admin only.
func (e *Engine) UpdateRole(ctx context.Context, actor Actor, targetID uint, role string) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if !models.IsValidRole(role) {
		return nil, invalidInput("unknown role %q", role)
	}
	var u models.User
	if err := e.dbx(ctx).First(&u, targetID).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if u.Role == role {
		return &u, nil
	}
	if err := e.dbx(ctx).Model(&u).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	e.log.Info("role updated", zap.Uint("user_id", targetID), zap.String("role", role), zap.Uint("by", actor.UserID))
	return &u, nil
}
