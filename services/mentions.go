package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/ephembbs/models"
)

// Segment is a piece of rendered body text. UserID is set only for
// mentions the mentioned identity has accepted.
type Segment struct {
	Text     string `json:"text"`
	UserID   *uint  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// CreateMention asks mentionedUsername to consent to being linked from
// contentID. Only the author of the content may request it.
func (e *Engine) CreateMention(ctx context.Context, actor Actor, contentID uint, mentionedUsername string) (*models.Mention, error) {
	c, err := e.loadLive(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	var target models.User
	if err := e.dbx(ctx).Where("username = ?", strings.TrimPrefix(strings.TrimSpace(mentionedUsername), "@")).First(&target).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if target.ID == actor.UserID {
		return nil, invalidInput("cannot mention yourself")
	}

	var existing models.Mention
	err = e.dbx(ctx).Where("content_id = ? AND mentioned_user_id = ?", contentID, target.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup mention: %w", err)
	}

	m := models.Mention{
		ContentID:       contentID,
		MentionedUserID: target.ID,
		RequesterID:     actor.UserID,
		Status:          models.MentionPending,
		CreatedAt:       e.now(),
	}
	if err := e.dbx(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("insert mention: %w", err)
	}
	actorID := actor.UserID
	e.notify(ctx, models.Notification{UserID: target.ID, ActorID: &actorID, Kind: models.NotifyMention,
		ContentID: &contentID, Message: actor.Username + " mentioned you"})
	return &m, nil
}

// RespondToMention moves a pending mention to accepted or declined. Only the
// mentioned identity may respond and only once.
func (e *Engine) RespondToMention(ctx context.Context, actor Actor, mentionID uint, status string) (*models.Mention, error) {
	if status != models.MentionAccepted && status != models.MentionDeclined {
		return nil, invalidInput("status must be accepted or declined")
	}
	now := e.now()
	var m models.Mention
	err := e.dbx(ctx).Model(&models.Mention{}).
		Joins("JOIN contents ON contents.id = mentions.content_id").
		Scopes(liveAt(now)).
		Where("mentions.id = ?", mentionID).
		Select("mentions.*").
		First(&m).Error
	if err != nil {
		return nil, notFound(err, ErrMentionNotFound)
	}
	if m.MentionedUserID != actor.UserID {
		return nil, ErrForbidden
	}
	res := e.dbx(ctx).Model(&models.Mention{}).
		Where("id = ? AND status = ?", mentionID, models.MentionPending).
		Updates(map[string]any{"status": status, "responded_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("respond to mention: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrMentionResponded
	}
	m.Status = status
	m.RespondedAt = &now
	e.log.Debug("mention answered", zap.Uint("mention_id", mentionID), zap.String("status", status))
	return &m, nil
}

// ListMentions returns the caller's mentions on live content, newest first.
func (e *Engine) ListMentions(ctx context.Context, actor Actor, status string) ([]models.Mention, error) {
	live := e.dbx(ctx).Model(&models.Content{}).Select("id").
		Where("expires_at IS NULL OR expires_at > ?", e.now())
	q := e.dbx(ctx).Where("mentioned_user_id = ? AND content_id IN (?)", actor.UserID, live)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Mention
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	return out, nil
}

// RenderContent splits a live item's body into segments. Only accepted
// mentions become links; the stored body is never changed.
func (e *Engine) RenderContent(ctx context.Context, contentID uint) ([]Segment, error) {
	c, err := e.loadLive(ctx, contentID)
	if err != nil {
		return nil, err
	}
	var accepted []models.Mention
	if err := e.dbx(ctx).Preload("MentionedUser").
		Where("content_id = ? AND status = ?", contentID, models.MentionAccepted).Find(&accepted).Error; err != nil {
		return nil, fmt.Errorf("load mentions: %w", err)
	}
	links := make(map[string]uint, len(accepted))
	for _, m := range accepted {
		links[m.MentionedUser.Username] = m.MentionedUserID
	}
	return renderSegments(c.Body, links), nil
}

func renderSegments(body string, links map[string]uint) []Segment {
	var out []Segment
	plain := func(s string) {
		if s == "" {
			return
		}
		if n := len(out); n > 0 && out[n-1].UserID == nil {
			out[n-1].Text += s
			return
		}
		out = append(out, Segment{Text: s})
	}
	pos := 0
	for _, idx := range mentionPattern.FindAllStringSubmatchIndex(body, -1) {
		at, end := idx[2]-1, idx[3]
		name := body[idx[2]:idx[3]]
		plain(body[pos:at])
		if id, ok := links[name]; ok {
			uid := id
			out = append(out, Segment{Text: body[at:end], UserID: &uid, Username: name})
		} else {
			plain(body[at:end])
		}
		pos = end
	}
	plain(body[pos:])
	return out
}
