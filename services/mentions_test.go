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

func TestMentionsSpawnedFromBody(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)

	mkPost(t, e, alice, "hey @bob and @ghost, also @alice and @bob again")

	got, err := e.ListMentions(ctx, bob, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.MentionPending, got[0].Status)
	assert.Equal(t, alice.UserID, got[0].RequesterID)
	assert.EqualValues(t, 1, countNotifications(t, e, bob.UserID, models.NotifyMention))

	mine, err := e.ListMentions(ctx, alice, "")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestMentionTransitions(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	carol := mkUser(t, e, "carol", models.RoleUser)
	c := mkPost(t, e, alice, "thanks to bob")

	_, err := e.CreateMention(ctx, alice, c.ID, "nobody")
	assert.True(t, errors.Is(err, ErrUserNotFound))
	_, err = e.CreateMention(ctx, carol, c.ID, "bob")
	assert.True(t, errors.Is(err, ErrForbidden))

	m, err := e.CreateMention(ctx, alice, c.ID, "@bob")
	require.NoError(t, err)
	assert.Equal(t, models.MentionPending, m.Status)

	_, err = e.RespondToMention(ctx, carol, m.ID, models.MentionAccepted)
	assert.True(t, errors.Is(err, ErrForbidden))
	_, err = e.RespondToMention(ctx, bob, m.ID, models.MentionPending)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	m, err = e.RespondToMention(ctx, bob, m.ID, models.MentionAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.MentionAccepted, m.Status)
	require.NotNil(t, m.RespondedAt)

	_, err = e.RespondToMention(ctx, bob, m.ID, models.MentionDeclined)
	assert.True(t, errors.Is(err, ErrMentionResponded))

	var stored models.Mention
	require.NoError(t, e.db.First(&stored, m.ID).Error)
	assert.Equal(t, models.MentionAccepted, stored.Status)
}

func TestRenderOnlyLinksAcceptedMentions(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	carol := mkUser(t, e, "carol", models.RoleUser)
	c := mkPost(t, e, alice, "hi @bob and @carol!")

	mentions, err := e.ListMentions(ctx, bob, models.MentionPending)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	_, err = e.RespondToMention(ctx, bob, mentions[0].ID, models.MentionAccepted)
	require.NoError(t, err)

	segs, err := e.RenderContent(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Text: "hi "}, segs[0])
	assert.Equal(t, "@bob", segs[1].Text)
	require.NotNil(t, segs[1].UserID)
	assert.Equal(t, bob.UserID, *segs[1].UserID)
	assert.Equal(t, Segment{Text: " and @carol!"}, segs[2])
	_ = carol

	var body models.Content
	require.NoError(t, e.db.First(&body, c.ID).Error)
	assert.Equal(t, "hi @bob and @carol!", body.Body)
}

func TestRenderSegmentsPlain(t *testing.T) {
	assert.Equal(t, []Segment{{Text: "mail me at a@bob.com"}}, renderSegments("mail me at a@bob.com", map[string]uint{"bob": 1}))
	assert.Nil(t, renderSegments("", nil))
}

func TestRespondToMentionOnExpiredContent(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	c, err := e.CreateContent(ctx, alice, CreateContentInput{Body: "quick one", TTLSeconds: 60})
	require.NoError(t, err)
	m, err := e.CreateMention(ctx, alice, c.ID, "bob")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = e.RespondToMention(ctx, bob, m.ID, models.MentionAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrMentionNotFound)

	var stored models.Mention
	require.NoError(t, e.db.First(&stored, m.ID).Error)
	assert.Equal(t, models.MentionPending, stored.Status)
}
