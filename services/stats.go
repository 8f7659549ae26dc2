package services

import (
	"context"
	"fmt"

	"github.com/cppla/ephembbs/models"
)

// ModerationStats summarises the moderation state of the board.
type ModerationStats struct {
	Users       int64 `json:"users"`
	LiveContent int64 `json:"live_content"`
	Flagged     int64 `json:"flagged_content"`
	Quarantined int64 `json:"quarantined_content"`
	ActiveMutes int64 `json:"active_mutes"`
	Bans        int64 `json:"bans"`
}

// Stats computes moderation totals. Moderators only.
func (e *Engine) Stats(ctx context.Context, actor Actor) (*ModerationStats, error) {
	if !actor.Elevated() {
		return nil, ErrForbidden
	}
	now := e.now()
	db := e.dbx(ctx)
	var s ModerationStats
	if err := db.Model(&models.User{}).Count(&s.Users).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.Content{}).Scopes(liveAt(now)).Count(&s.LiveContent).Error; err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	flagged := db.Model(&models.Flag{}).Select("content_id")
	if err := db.Model(&models.Content{}).Scopes(liveAt(now)).
		Where("contents.id IN (?)", flagged).Count(&s.Flagged).Error; err != nil {
		return nil, fmt.Errorf("count flagged: %w", err)
	}
	if err := db.Model(&models.Content{}).Scopes(liveAt(now)).
		Where("contents.is_quarantined = ?", true).Count(&s.Quarantined).Error; err != nil {
		return nil, fmt.Errorf("count quarantined: %w", err)
	}
	if err := db.Model(&models.Mute{}).Where("expires_at > ?", now).Count(&s.ActiveMutes).Error; err != nil {
		return nil, fmt.Errorf("count mutes: %w", err)
	}
	if err := db.Model(&models.Ban{}).Count(&s.Bans).Error; err != nil {
		return nil, fmt.Errorf("count bans: %w", err)
	}
	return &s, nil
}
