package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ephembbs/models"
)

// NotificationChannel is the pub/sub channel carrying events for userID.
func NotificationChannel(userID uint) string {
	return "notify:" + strconv.FormatUint(uint64(userID), 10)
}

// notify stores a notification and pushes it when a publisher is configured.
// Delivery is best-effort: failures are logged and counted, never returned.
func (e *Engine) notify(ctx context.Context, n models.Notification) {
	if n.ActorID != nil && *n.ActorID == n.UserID {
		return
	}
	n.CreatedAt = e.now()
	if err := e.dbx(ctx).Create(&n).Error; err != nil {
		notifyErrorCount.WithLabelValues("store").Inc()
		e.log.Warn("store notification failed",
			zap.Uint("user_id", n.UserID), zap.String("kind", n.Kind), zap.Error(err))
		return
	}
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := e.publisher.Publish(ctx, NotificationChannel(n.UserID), payload); err != nil {
		notifyErrorCount.WithLabelValues("publish").Inc()
		e.log.Warn("publish notification failed",
			zap.Uint("user_id", n.UserID), zap.String("kind", n.Kind), zap.Error(err))
	}
}

// ListNotifications returns the caller's notifications, newest first.
func (e *Engine) ListNotifications(ctx context.Context, actor Actor, page, pageSize int, unreadOnly bool) ([]models.Notification, int64, error) {
	scoped := func() *gorm.DB {
		q := e.dbx(ctx).Model(&models.Notification{}).Where("user_id = ?", actor.UserID)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	var items []models.Notification
	if err := scoped().Order("created_at DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// UnreadCount is derived from the ledger on every call.
func (e *Engine) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	var n int64
	err := e.dbx(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false).Count(&n).Error
	return n, err
}

// MarkRead marks one of the caller's notifications as read.
func (e *Engine) MarkRead(ctx context.Context, actor Actor, id uint) error {
	res := e.dbx(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, actor.UserID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := e.dbx(ctx).Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, actor.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return newError(KindNotFound, "notification", "notification not found")
		}
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (e *Engine) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	res := e.dbx(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}
