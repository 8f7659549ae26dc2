package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/ephembbs/models"
)

// Popup closing reasons, in reporting priority order.
const (
	PopupReasonReplies = "replies"
	PopupReasonTime    = "time"
	PopupReasonManual  = "manual"
)

// PopupStatus is the computed state of a popup thread. Remaining values are
// only reported while the thread is open.
type PopupStatus struct {
	Closed           bool       `json:"closed"`
	Reason           string     `json:"reason,omitempty"`
	ReplyLimit       int        `json:"reply_limit"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	ReplyCount       int64      `json:"reply_count"`
	RemainingReplies *int64     `json:"remaining_replies,omitempty"`
	RemainingMs      *int64     `json:"remaining_ms,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

func evaluatePopup(c *models.Content, replyCount int64, now time.Time) PopupStatus {
	st := PopupStatus{
		ReplyLimit:       *c.PopupReplyLimit,
		TimeLimitMinutes: *c.PopupTimeLimit,
		ReplyCount:       replyCount,
		ClosedAt:         c.PopupClosedAt,
	}
	limitMs := int64(st.TimeLimitMinutes) * 60_000
	started := c.CreatedAt
	if c.PopupStartedAt != nil {
		started = *c.PopupStartedAt
	}
	elapsedMs := now.Sub(started).Milliseconds()
	switch {
	case replyCount >= int64(st.ReplyLimit):
		st.Reason = PopupReasonReplies
	case elapsedMs >= limitMs:
		st.Reason = PopupReasonTime
	case c.PopupClosedAt != nil:
		st.Reason = PopupReasonManual
	}
	st.Closed = st.Reason != ""
	if !st.Closed {
		rr := max(0, int64(st.ReplyLimit)-replyCount)
		rm := max(0, limitMs-elapsedMs)
		st.RemainingReplies = &rr
		st.RemainingMs = &rm
	}
	return st
}

func (e *Engine) validatePopup(p PopupConfig) error {
	if p.ReplyLimit < 1 || p.TimeLimitMinutes < 1 {
		return invalidInput("popup reply and time limits must be at least 1")
	}
	if e.cfg.PopupMaxReplies > 0 && p.ReplyLimit > e.cfg.PopupMaxReplies {
		return invalidInput("popup reply limit cannot exceed %d", e.cfg.PopupMaxReplies)
	}
	if e.cfg.PopupMaxMinutes > 0 && p.TimeLimitMinutes > e.cfg.PopupMaxMinutes {
		return invalidInput("popup time limit cannot exceed %d minutes", e.cfg.PopupMaxMinutes)
	}
	return nil
}

// GetPopupStatus computes the current state of a popup thread from live data.
func (e *Engine) GetPopupStatus(ctx context.Context, contentID uint) (*PopupStatus, error) {
	c, err := e.loadLive(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if !c.HasPopup() {
		return nil, ErrNotPopup
	}
	now := e.now()
	n, err := countLiveReplies(e.dbx(ctx), c.ID, now)
	if err != nil {
		return nil, err
	}
	st := evaluatePopup(c, n, now)
	return &st, nil
}

// ClosePopup records a manual closure. Author only; closing twice is a no-op.
func (e *Engine) ClosePopup(ctx context.Context, actor Actor, contentID uint) (*PopupStatus, error) {
	c, err := e.loadLive(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if !c.HasPopup() {
		return nil, ErrNotPopup
	}
	if c.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	res := e.dbx(ctx).Model(&models.Content{}).
		Where("id = ? AND popup_closed_at IS NULL", contentID).
		Update("popup_closed_at", e.now())
	if res.Error != nil {
		return nil, fmt.Errorf("close popup: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		e.log.Info("popup closed", zap.Uint("content_id", contentID), zap.Uint("actor", actor.UserID))
	}
	return e.GetPopupStatus(ctx, contentID)
}

// EnablePopup attaches a popup configuration to an existing root item of the caller.
func (e *Engine) EnablePopup(ctx context.Context, actor Actor, contentID uint, cfg PopupConfig) (*PopupStatus, error) {
	if err := e.validatePopup(cfg); err != nil {
		return nil, err
	}
	c, err := e.loadLive(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	if c.ParentID != nil {
		return nil, invalidInput("popup threads must be root items")
	}
	res := e.dbx(ctx).Model(&models.Content{}).
		Where("id = ? AND popup_reply_limit IS NULL AND popup_time_limit IS NULL", contentID).
		Updates(map[string]any{
			"popup_reply_limit": cfg.ReplyLimit,
			"popup_time_limit":  cfg.TimeLimitMinutes,
			"popup_started_at":  e.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("enable popup: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPopupExists
	}
	return e.GetPopupStatus(ctx, contentID)
}
