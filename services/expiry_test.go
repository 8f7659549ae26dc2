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

func TestExpiredContentIsNeverRead(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)

	c, err := e.CreateContent(ctx, alice, CreateContentInput{Body: "short lived", TTLSeconds: 3600})
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, clock.Now().Add(time.Hour), *c.ExpiresAt)
	assert.True(t, e.IsLive(c))

	items, total, err := e.ListFeed(ctx, alice, 1, 10, SortNewest)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)

	clock.Advance(3601 * time.Second)
	assert.False(t, e.IsLive(c))

	items, total, err = e.ListFeed(ctx, alice, 1, 10, SortNewest)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, items)

	_, err = e.GetContent(ctx, alice, c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExpiryBoundaryIsDead(t *testing.T) {
	e, clock := newTestEngine(t)
	alice := mkUser(t, e, "alice", models.RoleUser)
	c, err := e.CreateContent(context.Background(), alice, CreateContentInput{Body: "x", TTLSeconds: 60})
	require.NoError(t, err)

	clock.Advance(60 * time.Second)
	assert.False(t, e.IsLive(c))
	_, err = e.GetContent(context.Background(), alice, c.ID)
	assert.True(t, errors.Is(err, ErrContentNotFound))
}

func TestDefaultTTL(t *testing.T) {
	e, clock := newTestEngine(t)
	alice := mkUser(t, e, "alice", models.RoleUser)
	c := mkPost(t, e, alice, "defaults")
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), *c.ExpiresAt)
}

func TestHugeTTLClampsToMax(t *testing.T) {
	e, clock := newTestEngine(t)
	alice := mkUser(t, e, "alice", models.RoleUser)
	c, err := e.CreateContent(context.Background(), alice, CreateContentInput{Body: "forever?", TTLSeconds: 9223372037})
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, c.ExpiresAt.After(c.CreatedAt))
	assert.Equal(t, clock.Now().Add(e.cfg.MaxTTL), *c.ExpiresAt)
	assert.True(t, e.IsLive(c))
}

func TestSweepCascadesToOwnedRows(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)

	root, err := e.CreateContent(ctx, alice, CreateContentInput{
		Body: "which one @bob", TTLSeconds: 600, PollOptions: []string{"a", "b"},
	})
	require.NoError(t, err)
	reply, err := e.CreateContent(ctx, bob, CreateContentInput{Body: "reply", ParentID: uintPtr(root.ID)})
	require.NoError(t, err)
	_, err = e.CreateContent(ctx, alice, CreateContentInput{Body: "nested", ParentID: uintPtr(reply.ID)})
	require.NoError(t, err)
	repost, err := e.Repost(ctx, bob, root.ID)
	require.NoError(t, err)
	_, err = e.FileFlag(ctx, bob, root.ID, "spam")
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	n, err := e.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	var contents []models.Content
	require.NoError(t, e.db.Find(&contents).Error)
	require.Len(t, contents, 1)
	assert.Equal(t, repost.ID, contents[0].ID)
	assert.Nil(t, contents[0].RepostOf)
	assert.Equal(t, root.Body, contents[0].Body)

	for _, m := range []any{&models.Flag{}, &models.Mention{}, &models.Poll{}, &models.PollOption{}} {
		var cnt int64
		require.NoError(t, e.db.Model(m).Count(&cnt).Error)
		assert.Zero(t, cnt, "%T should be swept", m)
	}
}

func TestLazySweepOnRead(t *testing.T) {
	e, clock := newTestEngine(t)
	e.cfg.SweepOnRead = true
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	_, err := e.CreateContent(ctx, alice, CreateContentInput{Body: "gone soon", TTLSeconds: 10})
	require.NoError(t, err)
	mkPost(t, e, alice, "stays")

	clock.Advance(time.Minute)
	items, _, err := e.ListFeed(ctx, alice, 1, 10, SortNewest)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "stays", items[0].Body)

	var cnt int64
	require.NoError(t, e.db.Model(&models.Content{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)
}

func TestDeleteContentAuthorization(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	mod := mkUser(t, e, "mod", models.RoleModerator)

	c := mkPost(t, e, alice, "mine")
	assert.True(t, errors.Is(e.DeleteContent(ctx, bob, c.ID), ErrForbidden))
	require.NoError(t, e.DeleteContent(ctx, mod, c.ID))
	assert.True(t, errors.Is(e.DeleteContent(ctx, alice, c.ID), ErrNotFound))
}
