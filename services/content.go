package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/ephembbs/models"
)

// PopupConfig opts a root item into a bounded lifetime.
type PopupConfig struct {
	ReplyLimit       int `json:"reply_limit"`
	TimeLimitMinutes int `json:"time_limit_minutes"`
}

// CreateContentInput describes a new root item, reply or repost.
type CreateContentInput struct {
	Body        string
	ParentID    *uint
	RepostOf    *uint
	TTLSeconds  int64
	Popup       *PopupConfig
	PollOptions []string
}

// ContentView is a content item as returned to readers.
type ContentView struct {
	models.Content
	ReplyCount int64        `json:"reply_count"`
	Popup      *PopupStatus `json:"popup,omitempty"`
	Poll       *PollView    `json:"poll,omitempty"`
}

// Sort orders for listings.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])@([A-Za-z0-9_-]{3,64})`)

// CreateContent persists a new item after enforcement checks. Replies are
// admitted under a lock on the parent row so the popup limit cannot be overshot.
func (e *Engine) CreateContent(ctx context.Context, actor Actor, in CreateContentInput) (*models.Content, error) {
	if err := e.checkWritable(ctx, actor.UserID); err != nil {
		return nil, err
	}
	if in.ParentID != nil && in.RepostOf != nil {
		return nil, invalidInput("a reply cannot also be a repost")
	}
	if in.Popup != nil {
		if in.ParentID != nil {
			return nil, invalidInput("popup threads must be root items")
		}
		if err := e.validatePopup(*in.Popup); err != nil {
			return nil, err
		}
	}
	options, err := normalizePollOptions(in.PollOptions)
	if err != nil {
		return nil, err
	}
	if len(options) > 0 && in.ParentID != nil {
		return nil, invalidInput("polls must be attached to root items")
	}
	body := strings.TrimSpace(in.Body)
	if body == "" && in.RepostOf == nil {
		return nil, invalidInput("body cannot be empty")
	}
	if utf8.RuneCountInString(body) > e.cfg.MaxBodyLength {
		return nil, invalidInput("body exceeds %d characters", e.cfg.MaxBodyLength)
	}

	now := e.now()
	exp := e.expiresAt(now, in.TTLSeconds)
	item := models.Content{
		UserID:    actor.UserID,
		Body:      body,
		CreatedAt: now,
		ExpiresAt: &exp,
		ParentID:  in.ParentID,
		RepostOf:  in.RepostOf,
	}
	if in.Popup != nil {
		rl, tl := in.Popup.ReplyLimit, in.Popup.TimeLimitMinutes
		item.PopupReplyLimit = &rl
		item.PopupTimeLimit = &tl
		item.PopupStartedAt = &now
	}

	var parent, original models.Content
	var mentioned []models.User
	err = e.dbx(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ParentID != nil {
			if err := admitReply(tx, *in.ParentID, now, &parent); err != nil {
				return err
			}
		}
		if in.RepostOf != nil {
			if err := tx.Scopes(liveAt(now)).First(&original, *in.RepostOf).Error; err != nil {
				return notFound(err, ErrContentNotFound)
			}
			if item.Body == "" {
				item.Body = original.Body
			}
		}
		if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
			return fmt.Errorf("insert content: %w", err)
		}
		if len(options) > 0 {
			if _, err := createPoll(tx, item.ID, options, now); err != nil {
				return err
			}
		}
		var err error
		mentioned, err = spawnMentions(tx, &item, actor.UserID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	kind := "root"
	actorID := actor.UserID
	contentID := item.ID
	switch {
	case in.ParentID != nil:
		kind = "reply"
		e.notify(ctx, models.Notification{UserID: parent.UserID, ActorID: &actorID, Kind: models.NotifyReply,
			ContentID: &contentID, Message: actor.Username + " replied to your post"})
	case in.RepostOf != nil:
		kind = "repost"
		e.notify(ctx, models.Notification{UserID: original.UserID, ActorID: &actorID, Kind: models.NotifyRepost,
			ContentID: &contentID, Message: actor.Username + " reposted your post"})
	}
	for _, u := range mentioned {
		e.notify(ctx, models.Notification{UserID: u.ID, ActorID: &actorID, Kind: models.NotifyMention,
			ContentID: &contentID, Message: actor.Username + " mentioned you"})
	}
	contentCreatedCount.WithLabelValues(kind).Inc()
	return &item, nil
}

// Repost creates a root item that copies and references originalID.
func (e *Engine) Repost(ctx context.Context, actor Actor, originalID uint) (*models.Content, error) {
	return e.CreateContent(ctx, actor, CreateContentInput{RepostOf: &originalID})
}

// admitReply locks the parent and re-evaluates closure at write time.
func admitReply(tx *gorm.DB, parentID uint, now time.Time, parent *models.Content) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(liveAt(now)).First(parent, parentID).Error
	if err != nil {
		return notFound(err, ErrContentNotFound)
	}
	if parent.RepliesDisabled {
		return ErrRepliesDisabled
	}
	if !parent.HasPopup() {
		return nil
	}
	count, err := countLiveReplies(tx, parent.ID, now)
	if err != nil {
		return err
	}
	st := evaluatePopup(parent, count, now)
	if st.Closed {
		popupRejectCount.WithLabelValues(st.Reason).Inc()
		return newError(KindInvalidState, ErrParentClosed.Code, "popup thread is closed ("+st.Reason+")")
	}
	return nil
}

func countLiveReplies(tx *gorm.DB, parentID uint, now time.Time) (int64, error) {
	var n int64
	err := tx.Model(&models.Content{}).Scopes(liveAt(now)).Where("parent_id = ?", parentID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return n, nil
}

// spawnMentions records a pending mention for every @username in the body
// that resolves to an existing user other than the author.
func spawnMentions(tx *gorm.DB, item *models.Content, authorID uint, now time.Time) ([]models.User, error) {
	names := extractMentions(item.Body)
	if len(names) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := tx.Where("username IN ? AND id <> ?", names, authorID).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("resolve mentions: %w", err)
	}
	for _, u := range users {
		m := models.Mention{
			ContentID:       item.ID,
			MentionedUserID: u.ID,
			RequesterID:     authorID,
			Status:          models.MentionPending,
			CreatedAt:       now,
		}
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return nil, fmt.Errorf("insert mention: %w", err)
		}
	}
	return users, nil
}

func extractMentions(body string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// loadLive fetches a live item or ErrContentNotFound.
func (e *Engine) loadLive(ctx context.Context, id uint) (*models.Content, error) {
	var c models.Content
	if err := e.dbx(ctx).Scopes(liveAt(e.now())).First(&c, id).Error; err != nil {
		return nil, notFound(err, ErrContentNotFound)
	}
	return &c, nil
}

// GetContent returns a single live item. Expired and deleted items are
// reported identically as not found.
func (e *Engine) GetContent(ctx context.Context, viewer Actor, id uint) (*ContentView, error) {
	now := e.now()
	var c models.Content
	if err := e.dbx(ctx).Preload("User").Scopes(liveAt(now)).First(&c, id).Error; err != nil {
		return nil, notFound(err, ErrContentNotFound)
	}
	views, err := e.buildViews(ctx, viewer, []models.Content{c}, now)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListFeed lists live root items, pinned first.
func (e *Engine) ListFeed(ctx context.Context, viewer Actor, page, pageSize int, sort string) ([]ContentView, int64, error) {
	e.sweepOnRead(ctx)
	now := e.now()
	roots := func() *gorm.DB {
		return e.dbx(ctx).Model(&models.Content{}).Scopes(liveAt(now), visibleTo(viewer)).Where("contents.parent_id IS NULL")
	}
	var total int64
	if err := roots().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count feed: %w", err)
	}
	order := "contents.created_at DESC, contents.id DESC"
	if sort == SortOldest {
		order = "contents.created_at ASC, contents.id ASC"
	}
	var items []models.Content
	if err := roots().Preload("User").Order("contents.pinned DESC").Order(order).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list feed: %w", err)
	}
	views, err := e.buildViews(ctx, viewer, items, now)
	return views, total, err
}

// ListReplies lists live direct replies of a live parent, oldest first.
func (e *Engine) ListReplies(ctx context.Context, viewer Actor, parentID uint) ([]ContentView, error) {
	e.sweepOnRead(ctx)
	if _, err := e.loadLive(ctx, parentID); err != nil {
		return nil, err
	}
	now := e.now()
	var items []models.Content
	if err := e.dbx(ctx).Preload("User").Scopes(liveAt(now), visibleTo(viewer)).
		Where("contents.parent_id = ?", parentID).
		Order("contents.created_at ASC, contents.id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return e.buildViews(ctx, viewer, items, now)
}

// ListUserContent lists live items authored by username, newest first.
func (e *Engine) ListUserContent(ctx context.Context, viewer Actor, username string) ([]ContentView, error) {
	e.sweepOnRead(ctx)
	var u models.User
	if err := e.dbx(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	now := e.now()
	var items []models.Content
	if err := e.dbx(ctx).Preload("User").Scopes(liveAt(now), visibleTo(viewer)).
		Where("contents.user_id = ?", u.ID).
		Order("contents.created_at DESC, contents.id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list user content: %w", err)
	}
	return e.buildViews(ctx, viewer, items, now)
}

// visibleTo hides quarantined items from everyone except their author and moderators.
func visibleTo(viewer Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case viewer.Elevated():
			return db
		case viewer.UserID == 0:
			return db.Where("contents.is_quarantined = ?", false)
		default:
			return db.Where("(contents.is_quarantined = ? OR contents.user_id = ?)", false, viewer.UserID)
		}
	}
}

func (e *Engine) buildViews(ctx context.Context, viewer Actor, items []models.Content, now time.Time) ([]ContentView, error) {
	views := make([]ContentView, len(items))
	if len(items) == 0 {
		return views, nil
	}
	ids := make([]uint, len(items))
	for i, c := range items {
		ids[i] = c.ID
	}
	type row struct {
		ParentID uint
		N        int64
	}
	var rows []row
	if err := e.dbx(ctx).Model(&models.Content{}).Select("parent_id, COUNT(*) AS n").
		Scopes(liveAt(now)).Where("parent_id IN ?", ids).Group("parent_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count replies: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ParentID] = r.N
	}
	var polls []models.Poll
	if err := e.dbx(ctx).Where("content_id IN ?", ids).Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("load polls: %w", err)
	}
	pollByContent := make(map[uint]uint, len(polls))
	for _, p := range polls {
		pollByContent[p.ContentID] = p.ID
	}
	for i := range items {
		c := &items[i]
		views[i] = ContentView{Content: *c, ReplyCount: counts[c.ID]}
		if c.HasPopup() {
			st := evaluatePopup(c, counts[c.ID], now)
			views[i].Popup = &st
		}
		if pid, ok := pollByContent[c.ID]; ok {
			pv, err := e.pollView(e.dbx(ctx), pid, viewer.UserID)
			if err != nil {
				return nil, err
			}
			views[i].Poll = pv
		}
	}
	return views, nil
}

// DeleteContent removes an item and its subtree. Only the author or a moderator may delete.
func (e *Engine) DeleteContent(ctx context.Context, actor Actor, id uint) error {
	c, err := e.loadLive(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != actor.UserID && !actor.Elevated() {
		return ErrForbidden
	}
	var n int64
	err = e.dbx(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = deleteTree(tx, []uint{id})
		return err
	})
	if err != nil {
		return err
	}
	e.log.Info("content deleted", zap.Uint("content_id", id), zap.Uint("actor", actor.UserID), zap.Int64("rows", n))
	return nil
}

// SetPinned pins or unpins an item. Admin only.
func (e *Engine) SetPinned(ctx context.Context, actor Actor, id uint, pinned bool) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	if _, err := e.loadLive(ctx, id); err != nil {
		return err
	}
	return e.dbx(ctx).Model(&models.Content{}).Where("id = ?", id).Update("pinned", pinned).Error
}

// SetRepliesDisabled toggles replies on an item. Author only.
func (e *Engine) SetRepliesDisabled(ctx context.Context, actor Actor, id uint, disabled bool) error {
	c, err := e.loadLive(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != actor.UserID {
		return ErrForbidden
	}
	return e.dbx(ctx).Model(&models.Content{}).Where("id = ?", id).Update("replies_disabled", disabled).Error
}
