package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ephembbs/models"
)

const sweepBatch = 500

// IsLive reports whether c is alive at the engine's current time.
func (e *Engine) IsLive(c *models.Content) bool {
	return c.IsLiveAt(e.now())
}

// liveAt filters out content whose expiry has passed at now.
func liveAt(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(contents.expires_at IS NULL OR contents.expires_at > ?)", now)
	}
}

// expiresAt computes the expiry for a new item. Non-positive ttl means default;
// the cap is applied on seconds so huge inputs cannot overflow the duration.
func (e *Engine) expiresAt(now time.Time, ttlSeconds int64) time.Time {
	var ttl time.Duration
	switch {
	case ttlSeconds <= 0:
		ttl = e.cfg.DefaultTTL
	case ttlSeconds >= int64(e.cfg.MaxTTL/time.Second):
		ttl = e.cfg.MaxTTL
	default:
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	if ttl > e.cfg.MaxTTL {
		ttl = e.cfg.MaxTTL
	}
	return now.Add(ttl)
}

// Sweep physically removes expired content and everything it owns.
// It returns the number of content rows deleted.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	now := e.now()
	var total int64
	for {
		var ids []uint
		if err := e.dbx(ctx).Model(&models.Content{}).
			Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Order("id").Limit(sweepBatch).Pluck("id", &ids).Error; err != nil {
			return total, fmt.Errorf("select expired content: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		var n int64
		err := e.dbx(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			n, err = deleteTree(tx, ids)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if len(ids) < sweepBatch {
			break
		}
	}
	if total > 0 {
		contentSweptCount.Add(float64(total))
		e.log.Info("expired content swept", zap.Int64("deleted", total))
	}
	return total, nil
}

// sweepOnRead runs the lazy sweep before listings when enabled. Failures are
// logged only; listings filter by expiry regardless.
func (e *Engine) sweepOnRead(ctx context.Context) {
	if !e.cfg.SweepOnRead {
		return
	}
	if _, err := e.Sweep(ctx); err != nil {
		e.log.Warn("lazy sweep failed", zap.Error(err))
	}
}

// deleteTree removes roots, all their descendant replies and every row owned
// by them. Reposts of removed items keep existing with a cleared back-reference.
func deleteTree(tx *gorm.DB, roots []uint) (int64, error) {
	seen := make(map[uint]struct{}, len(roots))
	ids := make([]uint, 0, len(roots))
	for _, id := range roots {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	frontier := ids
	for len(frontier) > 0 {
		var children []uint
		if err := tx.Model(&models.Content{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return 0, fmt.Errorf("collect replies: %w", err)
		}
		next := children[:0]
		for _, id := range children {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			next = append(next, id)
		}
		ids = append(ids, next...)
		frontier = next
	}

	var pollIDs []uint
	if err := tx.Model(&models.Poll{}).Where("content_id IN ?", ids).Pluck("id", &pollIDs).Error; err != nil {
		return 0, fmt.Errorf("collect polls: %w", err)
	}
	if len(pollIDs) > 0 {
		if err := tx.Where("poll_id IN ?", pollIDs).Delete(&models.PollVote{}).Error; err != nil {
			return 0, fmt.Errorf("delete votes: %w", err)
		}
		if err := tx.Where("poll_id IN ?", pollIDs).Delete(&models.PollOption{}).Error; err != nil {
			return 0, fmt.Errorf("delete options: %w", err)
		}
		if err := tx.Where("id IN ?", pollIDs).Delete(&models.Poll{}).Error; err != nil {
			return 0, fmt.Errorf("delete polls: %w", err)
		}
	}
	if err := tx.Where("content_id IN ?", ids).Delete(&models.Flag{}).Error; err != nil {
		return 0, fmt.Errorf("delete flags: %w", err)
	}
	if err := tx.Where("content_id IN ?", ids).Delete(&models.Mention{}).Error; err != nil {
		return 0, fmt.Errorf("delete mentions: %w", err)
	}
	if err := tx.Where("content_id IN ?", ids).Delete(&models.Notification{}).Error; err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	if err := tx.Model(&models.Content{}).Where("repost_of IN ?", ids).Update("repost_of", nil).Error; err != nil {
		return 0, fmt.Errorf("detach reposts: %w", err)
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Content{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete content: %w", res.Error)
	}
	return res.RowsAffected, nil
}
