package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/ephembbs/models"
)

// MuteStatus is the read model of a mute lookup.
type MuteStatus struct {
	Muted     bool       `json:"muted"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MutedBy   uint       `json:"muted_by,omitempty"`
}

// BanStatus is the read model of a ban lookup.
type BanStatus struct {
	Banned   bool       `json:"banned"`
	Reason   string     `json:"reason,omitempty"`
	BannedAt *time.Time `json:"banned_at,omitempty"`
	BannedBy uint       `json:"banned_by,omitempty"`
}

func muteCacheKey(userID uint) string {
	return "status:mute:" + strconv.FormatUint(uint64(userID), 10)
}

func banCacheKey(userID uint) string {
	return "status:ban:" + strconv.FormatUint(uint64(userID), 10)
}

// IsMuted reports an active mute. An expired mute row counts as absent.
func (e *Engine) IsMuted(ctx context.Context, userID uint) (MuteStatus, error) {
	now := e.now()
	var st MuteStatus
	if e.cache.Get(ctx, muteCacheKey(userID), &st) {
		if !st.Muted || (st.ExpiresAt != nil && st.ExpiresAt.After(now)) {
			return st, nil
		}
	}
	var m models.Mute
	err := e.dbx(ctx).Where("user_id = ? AND expires_at > ?", userID, now).First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		st = MuteStatus{}
		e.cache.Set(ctx, muteCacheKey(userID), st, e.cfg.StatusCacheTTL)
		return st, nil
	case err != nil:
		return MuteStatus{}, fmt.Errorf("lookup mute: %w", err)
	}
	exp := m.ExpiresAt
	st = MuteStatus{Muted: true, Reason: m.Reason, ExpiresAt: &exp, MutedBy: m.MutedBy}
	ttl := e.cfg.StatusCacheTTL
	if left := exp.Sub(now); left < ttl {
		ttl = left
	}
	e.cache.Set(ctx, muteCacheKey(userID), st, ttl)
	return st, nil
}

// IsBanned reports whether a ban record exists for userID.
func (e *Engine) IsBanned(ctx context.Context, userID uint) (BanStatus, error) {
	var st BanStatus
	if e.cache.Get(ctx, banCacheKey(userID), &st) {
		return st, nil
	}
	var b models.Ban
	err := e.dbx(ctx).Where("user_id = ?", userID).First(&b).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		st = BanStatus{}
	case err != nil:
		return BanStatus{}, fmt.Errorf("lookup ban: %w", err)
	default:
		at := b.BannedAt
		st = BanStatus{Banned: true, Reason: b.Reason, BannedAt: &at, BannedBy: b.BannedBy}
	}
	e.cache.Set(ctx, banCacheKey(userID), st, e.cfg.StatusCacheTTL)
	return st, nil
}

// CheckBanned returns a *BannedError when userID is banned.
func (e *Engine) CheckBanned(ctx context.Context, userID uint) error {
	st, err := e.IsBanned(ctx, userID)
	if err != nil {
		return err
	}
	if st.Banned {
		restrictionBlockCount.WithLabelValues("ban").Inc()
		return &BannedError{Reason: st.Reason, BannedAt: deref(st.BannedAt), BannedBy: st.BannedBy}
	}
	return nil
}

// checkWritable runs the enforcement checks that precede any content write.
func (e *Engine) checkWritable(ctx context.Context, userID uint) error {
	if err := e.CheckBanned(ctx, userID); err != nil {
		return err
	}
	st, err := e.IsMuted(ctx, userID)
	if err != nil {
		return err
	}
	if st.Muted {
		restrictionBlockCount.WithLabelValues("mute").Inc()
		return &MutedError{Reason: st.Reason, ExpiresAt: deref(st.ExpiresAt), MutedBy: st.MutedBy}
	}
	return nil
}

func (e *Engine) requireTarget(ctx context.Context, actor Actor, targetID uint) error {
	if !actor.Elevated() {
		return ErrForbidden
	}
	if targetID == actor.UserID {
		return invalidInput("cannot restrict yourself")
	}
	var n int64
	if err := e.dbx(ctx).Model(&models.User{}).Where("id = ?", targetID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// restrictionReason trims a mute or ban reason. Unlike flags an empty reason
// is allowed, but the length bound is shared.
func restrictionReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return "", invalidInput("reason exceeds %d characters", maxReasonLength)
	}
	return reason, nil
}

// Mute restricts targetID from writing for duration. Re-muting overwrites
// reason, expiry and actor. A non-positive duration uses the default.
func (e *Engine) Mute(ctx context.Context, actor Actor, targetID uint, reason string, duration time.Duration) (*models.Mute, error) {
	if err := e.requireTarget(ctx, actor, targetID); err != nil {
		return nil, err
	}
	reason, err := restrictionReason(reason)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = e.cfg.DefaultMute
	}
	now := e.now()
	m := models.Mute{
		UserID:    targetID,
		Reason:    reason,
		MutedBy:   actor.UserID,
		MutedAt:   now,
		ExpiresAt: now.Add(duration),
	}
	err = e.dbx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "muted_by", "muted_at", "expires_at"}),
	}).Create(&m).Error
	if err != nil {
		return nil, fmt.Errorf("upsert mute: %w", err)
	}
	e.cache.Delete(ctx, muteCacheKey(targetID))
	e.log.Info("user muted", zap.Uint("user_id", targetID), zap.Uint("actor", actor.UserID), zap.Time("expires_at", m.ExpiresAt))
	return &m, nil
}

// Unmute removes the mute record immediately.
func (e *Engine) Unmute(ctx context.Context, actor Actor, targetID uint) error {
	if err := e.requireTarget(ctx, actor, targetID); err != nil {
		return err
	}
	if err := e.dbx(ctx).Where("user_id = ?", targetID).Delete(&models.Mute{}).Error; err != nil {
		return fmt.Errorf("delete mute: %w", err)
	}
	e.cache.Delete(ctx, muteCacheKey(targetID))
	e.log.Info("user unmuted", zap.Uint("user_id", targetID), zap.Uint("actor", actor.UserID))
	return nil
}

// Ban permanently restricts targetID until Unban.
func (e *Engine) Ban(ctx context.Context, actor Actor, targetID uint, reason string) (*models.Ban, error) {
	if err := e.requireTarget(ctx, actor, targetID); err != nil {
		return nil, err
	}
	reason, err := restrictionReason(reason)
	if err != nil {
		return nil, err
	}
	b := models.Ban{
		UserID:   targetID,
		Reason:   reason,
		BannedBy: actor.UserID,
		BannedAt: e.now(),
	}
	err = e.dbx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "banned_by", "banned_at"}),
	}).Create(&b).Error
	if err != nil {
		return nil, fmt.Errorf("upsert ban: %w", err)
	}
	e.cache.Delete(ctx, banCacheKey(targetID))
	e.log.Info("user banned", zap.Uint("user_id", targetID), zap.Uint("actor", actor.UserID))
	return &b, nil
}

// Unban revokes a ban.
func (e *Engine) Unban(ctx context.Context, actor Actor, targetID uint) error {
	if err := e.requireTarget(ctx, actor, targetID); err != nil {
		return err
	}
	if err := e.dbx(ctx).Where("user_id = ?", targetID).Delete(&models.Ban{}).Error; err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	e.cache.Delete(ctx, banCacheKey(targetID))
	e.log.Info("user unbanned", zap.Uint("user_id", targetID), zap.Uint("actor", actor.UserID))
	return nil
}

// ListBans returns all bans, newest first.
func (e *Engine) ListBans(ctx context.Context, actor Actor) ([]models.Ban, error) {
	if !actor.Elevated() {
		return nil, ErrForbidden
	}
	var out []models.Ban
	err := e.dbx(ctx).Order("banned_at DESC").Find(&out).Error
	return out, err
}

// ListMutes returns mutes that have not yet expired.
func (e *Engine) ListMutes(ctx context.Context, actor Actor) ([]models.Mute, error) {
	if !actor.Elevated() {
		return nil, ErrForbidden
	}
	var out []models.Mute
	err := e.dbx(ctx).Where("expires_at > ?", e.now()).Order("expires_at ASC").Find(&out).Error
	return out, err
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
