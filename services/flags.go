package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/ephembbs/models"
)

const maxReasonLength = 500

// FlagResult reports the ledger state right after a flag was filed.
type FlagResult struct {
	FlagCount   int64 `json:"flag_count"`
	Quarantined bool  `json:"quarantined"`
	Triggered   bool  `json:"triggered"`
}

// FlaggedContent is a live item with at least one flag.
type FlaggedContent struct {
	models.Content
	FlagCount int64 `json:"flag_count"`
}

// FlagSummary groups the flags of an item by reason.
type FlagSummary struct {
	ContentID uint             `json:"content_id"`
	Total     int64            `json:"total"`
	ByReason  map[string]int64 `json:"by_reason"`
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", invalidInput("reason cannot be empty")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return "", invalidInput("reason exceeds %d characters", maxReasonLength)
	}
	return reason, nil
}

// FileFlag upserts the reporter's flag and quarantines the item once the
// threshold is reached. The author is notified only on the transition.
func (e *Engine) FileFlag(ctx context.Context, actor Actor, contentID uint, reason string) (*FlagResult, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	now := e.now()
	var (
		res    FlagResult
		target models.Content
	)
	err = e.dbx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(liveAt(now)).First(&target, contentID).Error; err != nil {
			return notFound(err, ErrContentNotFound)
		}
		flag := models.Flag{ContentID: contentID, UserID: actor.UserID, Reason: reason, CreatedAt: now, UpdatedAt: now}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "updated_at"}),
		}).Create(&flag).Error; err != nil {
			return fmt.Errorf("upsert flag: %w", err)
		}
		if err := tx.Model(&models.Flag{}).Where("content_id = ?", contentID).Count(&res.FlagCount).Error; err != nil {
			return fmt.Errorf("count flags: %w", err)
		}
		res.Quarantined = target.IsQuarantined
		if res.FlagCount >= int64(e.cfg.FlagThreshold) && !target.IsQuarantined {
			flipped, err := setQuarantine(tx, contentID)
			if err != nil {
				return err
			}
			res.Triggered = flipped
			res.Quarantined = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	flagFiledCount.Inc()
	if res.Triggered {
		quarantineCount.WithLabelValues("threshold").Inc()
		e.log.Info("content quarantined by flags", zap.Uint("content_id", contentID), zap.Int64("flags", res.FlagCount))
		e.notifyQuarantine(ctx, &target, nil)
	}
	return &res, nil
}

// setQuarantine flips the gate only from false, reporting whether this call did it.
func setQuarantine(tx *gorm.DB, contentID uint) (bool, error) {
	upd := tx.Model(&models.Content{}).
		Where("id = ? AND is_quarantined = ?", contentID, false).
		Update("is_quarantined", true)
	if upd.Error != nil {
		return false, fmt.Errorf("quarantine content: %w", upd.Error)
	}
	return upd.RowsAffected == 1, nil
}

func (e *Engine) notifyQuarantine(ctx context.Context, c *models.Content, actorID *uint) {
	id := c.ID
	e.notify(ctx, models.Notification{
		UserID:    c.UserID,
		ActorID:   actorID,
		Kind:      models.NotifyQuarantine,
		ContentID: &id,
		Message:   "your post has been quarantined pending moderator review",
	})
}

// Quarantine sets the gate manually. Moderators only.
func (e *Engine) Quarantine(ctx context.Context, actor Actor, contentID uint) error {
	if !actor.Elevated() {
		return ErrForbidden
	}
	c, err := e.loadLive(ctx, contentID)
	if err != nil {
		return err
	}
	flipped, err := setQuarantine(e.dbx(ctx), contentID)
	if err != nil {
		return err
	}
	if flipped {
		quarantineCount.WithLabelValues("manual").Inc()
		e.log.Info("content quarantined", zap.Uint("content_id", contentID), zap.Uint("actor", actor.UserID))
		actorID := actor.UserID
		e.notifyQuarantine(ctx, c, &actorID)
	}
	return nil
}

// Unquarantine clears the gate. Existing flags are kept.
func (e *Engine) Unquarantine(ctx context.Context, actor Actor, contentID uint) error {
	if !actor.Elevated() {
		return ErrForbidden
	}
	if _, err := e.loadLive(ctx, contentID); err != nil {
		return err
	}
	res := e.dbx(ctx).Model(&models.Content{}).
		Where("id = ? AND is_quarantined = ?", contentID, true).
		Update("is_quarantined", false)
	if res.Error != nil {
		return fmt.Errorf("unquarantine content: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		quarantineCount.WithLabelValues("release").Inc()
		e.log.Info("content released from quarantine", zap.Uint("content_id", contentID), zap.Uint("actor", actor.UserID))
	}
	return nil
}

// ListFlaggedContent returns live flagged items, newest first. Moderators only.
func (e *Engine) ListFlaggedContent(ctx context.Context, actor Actor) ([]FlaggedContent, error) {
	if !actor.Elevated() {
		return nil, ErrForbidden
	}
	e.sweepOnRead(ctx)
	type row struct {
		ContentID uint
		N         int64
	}
	var rows []row
	if err := e.dbx(ctx).Model(&models.Flag{}).Select("content_id, COUNT(*) AS n").
		Group("content_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count flags: %w", err)
	}
	if len(rows) == 0 {
		return []FlaggedContent{}, nil
	}
	counts := make(map[uint]int64, len(rows))
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		counts[r.ContentID] = r.N
		ids = append(ids, r.ContentID)
	}
	var items []models.Content
	if err := e.dbx(ctx).Preload("User").Scopes(liveAt(e.now())).Where("contents.id IN ?", ids).
		Order("contents.created_at DESC, contents.id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list flagged content: %w", err)
	}
	out := make([]FlaggedContent, len(items))
	for i, c := range items {
		out[i] = FlaggedContent{Content: c, FlagCount: counts[c.ID]}
	}
	return out, nil
}

// GetFlagSummary groups an item's flags by reason. Moderators only.
func (e *Engine) GetFlagSummary(ctx context.Context, actor Actor, contentID uint) (*FlagSummary, error) {
	if !actor.Elevated() {
		return nil, ErrForbidden
	}
	if _, err := e.loadLive(ctx, contentID); err != nil {
		return nil, err
	}
	type row struct {
		Reason string
		N      int64
	}
	var rows []row
	if err := e.dbx(ctx).Model(&models.Flag{}).Select("reason, COUNT(*) AS n").
		Where("content_id = ?", contentID).Group("reason").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("summarise flags: %w", err)
	}
	sum := &FlagSummary{ContentID: contentID, ByReason: make(map[string]int64, len(rows))}
	for _, r := range rows {
		sum.ByReason[r.Reason] = r.N
		sum.Total += r.N
	}
	return sum, nil
}

// ListFlags returns the individual flags on an item with reporters. Moderators only.
func (e *Engine) ListFlags(ctx context.Context, actor Actor, contentID uint) ([]models.Flag, error) {
	if !actor.Elevated() {
		return nil, ErrForbidden
	}
	if _, err := e.loadLive(ctx, contentID); err != nil {
		return nil, err
	}
	var flags []models.Flag
	err := e.dbx(ctx).Preload("User").Where("content_id = ?", contentID).Order("updated_at DESC").Find(&flags).Error
	return flags, err
}
