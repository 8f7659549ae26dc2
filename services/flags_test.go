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

func TestThirdFlagQuarantinesOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	reporters := []Actor{
		mkUser(t, e, "bob", models.RoleUser),
		mkUser(t, e, "dave", models.RoleUser),
		mkUser(t, e, "erin", models.RoleUser),
	}
	c := mkPost(t, e, alice, "questionable")

	res, err := e.FileFlag(ctx, reporters[0], c.ID, "spam")
	require.NoError(t, err)
	assert.Equal(t, FlagResult{FlagCount: 1}, *res)

	res, err = e.FileFlag(ctx, reporters[1], c.ID, "rude")
	require.NoError(t, err)
	assert.False(t, res.Quarantined)

	res, err = e.FileFlag(ctx, reporters[2], c.ID, "off topic")
	require.NoError(t, err)
	assert.Equal(t, FlagResult{FlagCount: 3, Quarantined: true, Triggered: true}, *res)
	assert.EqualValues(t, 1, countNotifications(t, e, alice.UserID, models.NotifyQuarantine))

	fourth := mkUser(t, e, "frank", models.RoleUser)
	res, err = e.FileFlag(ctx, fourth, c.ID, "spam")
	require.NoError(t, err)
	assert.Equal(t, FlagResult{FlagCount: 4, Quarantined: true}, *res)
	assert.EqualValues(t, 1, countNotifications(t, e, alice.UserID, models.NotifyQuarantine))
}

func TestRefileOverwritesReason(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	mod := mkUser(t, e, "mod", models.RoleModerator)
	c := mkPost(t, e, alice, "hello")

	_, err := e.FileFlag(ctx, bob, c.ID, "spam")
	require.NoError(t, err)
	res, err := e.FileFlag(ctx, bob, c.ID, "harassment")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.FlagCount)

	flags, err := e.ListFlags(ctx, mod, c.ID)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "harassment", flags[0].Reason)
	assert.Equal(t, "bob", flags[0].User.Username)
}

func TestFlagValidation(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)

	_, err := e.FileFlag(ctx, bob, 999, "spam")
	assert.True(t, errors.Is(err, ErrNotFound))

	c, err := e.CreateContent(ctx, alice, CreateContentInput{Body: "brief", TTLSeconds: 5})
	require.NoError(t, err)
	_, err = e.FileFlag(ctx, bob, c.ID, "   ")
	assert.Equal(t, KindInvalidInput, KindOf(err))

	clock.Advance(10 * time.Second)
	_, err = e.FileFlag(ctx, bob, c.ID, "spam")
	assert.True(t, errors.Is(err, ErrContentNotFound))
}

func TestUnquarantineKeepsFlags(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	mod := mkUser(t, e, "mod", models.RoleModerator)
	c := mkPost(t, e, alice, "hello")
	for _, name := range []string{"b1", "b2", "b3"} {
		_, err := e.FileFlag(ctx, mkUser(t, e, name, models.RoleUser), c.ID, "spam")
		require.NoError(t, err)
	}

	assert.True(t, errors.Is(e.Unquarantine(ctx, alice, c.ID), ErrForbidden))
	require.NoError(t, e.Unquarantine(ctx, mod, c.ID))

	sum, err := e.GetFlagSummary(ctx, mod, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.Total)
	assert.EqualValues(t, 3, sum.ByReason["spam"])

	res, err := e.FileFlag(ctx, mkUser(t, e, "b4", models.RoleUser), c.ID, "again")
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.EqualValues(t, 2, countNotifications(t, e, alice.UserID, models.NotifyQuarantine))
}

func TestManualQuarantine(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	admin := mkUser(t, e, "root", models.RoleAdmin)
	c := mkPost(t, e, alice, "hello")

	assert.True(t, errors.Is(e.Quarantine(ctx, bob, c.ID), ErrForbidden))
	require.NoError(t, e.Quarantine(ctx, admin, c.ID))
	require.NoError(t, e.Quarantine(ctx, admin, c.ID))
	assert.EqualValues(t, 1, countNotifications(t, e, alice.UserID, models.NotifyQuarantine))

	feed, _, err := e.ListFeed(ctx, bob, 1, 10, SortNewest)
	require.NoError(t, err)
	assert.Empty(t, feed)

	feed, _, err = e.ListFeed(ctx, alice, 1, 10, SortNewest)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.True(t, feed[0].IsQuarantined)
}

func TestListFlaggedContentRequiresElevation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := mkUser(t, e, "alice", models.RoleUser)
	bob := mkUser(t, e, "bob", models.RoleUser)
	mod := mkUser(t, e, "mod", models.RoleModerator)
	flagged := mkPost(t, e, alice, "flag me")
	mkPost(t, e, alice, "clean")
	_, err := e.FileFlag(ctx, bob, flagged.ID, "spam")
	require.NoError(t, err)

	_, err = e.ListFlaggedContent(ctx, bob)
	assert.True(t, errors.Is(err, ErrForbidden))

	items, err := e.ListFlaggedContent(ctx, mod)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, flagged.ID, items[0].ID)
	assert.EqualValues(t, 1, items[0].FlagCount)
}
