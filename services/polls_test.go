package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/ephembbs/models"
)

func createPollPost(t *testing.T, e *Engine, author Actor, options ...string) (*models.Content, uint) {
	t.Helper()
	c, err := e.CreateContent(context.Background(), author, CreateContentInput{Body: "vote!", PollOptions: options})
	require.NoError(t, err)
	var p models.Poll
	require.NoError(t, e.db.Where("content_id = ?", c.ID).First(&p).Error)
	return c, p.ID
}

func TestRevoteReplacesChoice(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	_, pollID := createPollPost(t, e, alice, "tea", "coffee", "water")

	view, err := e.Vote(ctx, bob, pollID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, view.Options[0].Votes)

	view, err = e.Vote(ctx, bob, pollID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, view.Options[0].Votes)
	assert.EqualValues(t, 1, view.Options[1].Votes)
	assert.EqualValues(t, 1, view.TotalVotes)
	require.NotNil(t, view.MyChoice)
	assert.Equal(t, 1, *view.MyChoice)

	view, err = e.Vote(ctx, alice, pollID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, view.Options[1].Votes)

	anon, err := e.GetPoll(ctx, Actor{}, pollID)
	require.NoError(t, err)
	assert.Nil(t, anon.MyChoice)
	assert.Equal(t, []string{"tea", "coffee", "water"}, []string{anon.Options[0].Text, anon.Options[1].Text, anon.Options[2].Text})
}

func TestVoteErrors(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)

	_, err := e.Vote(ctx, bob, 77, 0)
	assert.True(t, errors.Is(err, ErrPollNotFound))
	assert.Equal(t, KindInvalidState, KindOf(err))

	c, pollID := createPollPost(t, e, alice, "yes", "no")
	_, err = e.Vote(ctx, bob, pollID, 2)
	assert.True(t, errors.Is(err, ErrInvalidOption))
	_, err = e.Vote(ctx, bob, pollID, -1)
	assert.True(t, errors.Is(err, ErrInvalidOption))

	view, err := e.GetContent(ctx, bob, c.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Poll)
	assert.Len(t, view.Poll.Options, 2)

	clock.Advance(31 * 24 * time.Hour)
	_, err = e.Vote(ctx, bob, pollID, 0)
	assert.True(t, errors.Is(err, ErrPollNotFound))
}

func TestPollOptionValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)

	_, err := e.CreateContent(ctx, alice, CreateContentInput{Body: "x", PollOptions: []string{"only"}})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	_, err = e.CreateContent(ctx, alice, CreateContentInput{Body: "x", PollOptions: []string{"1", "2", "3", "4", "5", "6"}})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	_, err = e.CreateContent(ctx, alice, CreateContentInput{Body: "x", PollOptions: []string{"a", "  "}})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	root := mkPost(t, e, alice, "root")
	_, err = e.CreateContent(ctx, alice, CreateContentInput{Body: "x", ParentID: uintPtr(root.ID), PollOptions: []string{"a", "b"}})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}
