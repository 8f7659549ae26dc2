package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/ephembbs/models"
)

const (
	minPollOptions = 2
	maxPollOptions = 5
	maxOptionText  = 255
)

// OptionView is an option with its live vote count.
type OptionView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Votes int64  `json:"votes"`
}

// PollView aggregates votes at read time and carries the viewer's choice.
type PollView struct {
	PollID     uint         `json:"poll_id"`
	ContentID  uint         `json:"content_id"`
	Options    []OptionView `json:"options"`
	TotalVotes int64        `json:"total_votes"`
	MyChoice   *int         `json:"my_choice"`
}

func normalizePollOptions(opts []string) ([]string, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	if len(opts) < minPollOptions || len(opts) > maxPollOptions {
		return nil, invalidInput("a poll needs between %d and %d options", minPollOptions, maxPollOptions)
	}
	out := make([]string, len(opts))
	for i, o := range opts {
		o = strings.TrimSpace(o)
		if o == "" {
			return nil, invalidInput("poll option %d is empty", i)
		}
		if len(o) > maxOptionText {
			return nil, invalidInput("poll option %d is too long", i)
		}
		out[i] = o
	}
	return out, nil
}

func createPoll(tx *gorm.DB, contentID uint, options []string, now time.Time) (*models.Poll, error) {
	p := models.Poll{ContentID: contentID, CreatedAt: now}
	if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("insert poll: %w", err)
	}
	rows := make([]models.PollOption, len(options))
	for i, text := range options {
		rows[i] = models.PollOption{PollID: p.ID, Index: i, Text: text}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("insert poll options: %w", err)
	}
	p.Options = rows
	return &p, nil
}

// livePoll loads a poll whose content is still alive.
func (e *Engine) livePoll(db *gorm.DB, pollID uint) (*models.Poll, error) {
	var p models.Poll
	err := db.Joins("JOIN contents ON contents.id = polls.content_id").
		Scopes(liveAt(e.now())).First(&p, "polls.id = ?", pollID).Error
	if err != nil {
		return nil, notFound(err, ErrPollNotFound)
	}
	return &p, nil
}

// Vote records or replaces the voter's choice and returns the fresh view.
func (e *Engine) Vote(ctx context.Context, actor Actor, pollID uint, optionIndex int) (*PollView, error) {
	var view *PollView
	err := e.dbx(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := e.livePoll(tx, pollID)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.PollOption{}).
			Where("poll_id = ? AND option_index = ?", p.ID, optionIndex).Count(&n).Error; err != nil {
			return fmt.Errorf("check option: %w", err)
		}
		if n == 0 {
			return ErrInvalidOption
		}
		v := models.PollVote{PollID: p.ID, UserID: actor.UserID, OptionIndex: optionIndex, VotedAt: e.now()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"option_index", "voted_at"}),
		}).Create(&v).Error; err != nil {
			return fmt.Errorf("upsert vote: %w", err)
		}
		view, err = e.pollView(tx, p.ID, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	pollVoteCount.Inc()
	return view, nil
}

// GetPoll returns the poll view for viewer.
func (e *Engine) GetPoll(ctx context.Context, viewer Actor, pollID uint) (*PollView, error) {
	p, err := e.livePoll(e.dbx(ctx), pollID)
	if err != nil {
		return nil, err
	}
	return e.pollView(e.dbx(ctx), p.ID, viewer.UserID)
}

func (e *Engine) pollView(db *gorm.DB, pollID, viewerID uint) (*PollView, error) {
	var p models.Poll
	if err := db.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("option_index ASC")
	}).First(&p, pollID).Error; err != nil {
		return nil, notFound(err, ErrPollNotFound)
	}
	type row struct {
		OptionIndex int
		N           int64
	}
	var rows []row
	if err := db.Model(&models.PollVote{}).Select("option_index, COUNT(*) AS n").
		Where("poll_id = ?", pollID).Group("option_index").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.OptionIndex] = r.N
	}
	view := &PollView{PollID: p.ID, ContentID: p.ContentID, Options: make([]OptionView, len(p.Options))}
	for i, o := range p.Options {
		view.Options[i] = OptionView{Index: o.Index, Text: o.Text, Votes: counts[o.Index]}
		view.TotalVotes += counts[o.Index]
	}
	if viewerID != 0 {
		var mine []models.PollVote
		if err := db.Where("poll_id = ? AND user_id = ?", pollID, viewerID).Limit(1).Find(&mine).Error; err != nil {
			return nil, fmt.Errorf("load vote: %w", err)
		}
		if len(mine) == 1 {
			choice := mine[0].OptionIndex
			view.MyChoice = &choice
		}
	}
	return view, nil
}
