package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/ephembbs/models"
)

func TestAuthenticateReadsFreshRoleAndBan(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	admin := mkUser(t, e, "root", models.RoleAdmin)
	bob := mkUser(t, e, "bob", models.RoleUser)

	got, err := e.Authenticate(ctx, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, got.Role)

	_, err = e.UpdateRole(ctx, admin, bob.UserID, models.RoleModerator)
	require.NoError(t, err)
	got, err = e.Authenticate(ctx, bob.UserID)
	require.NoError(t, err)
	assert.True(t, got.Elevated())

	_, err = e.Ban(ctx, admin, bob.UserID, "spam")
	require.NoError(t, err)
	_, err = e.Authenticate(ctx, bob.UserID)
	var be *BannedError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "spam", be.Reason)
	assert.Equal(t, admin.UserID, be.BannedBy)

	_, err = e.Authenticate(ctx, 9999)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateRoleRequiresAdmin(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mod := mkUser(t, e, "mod", models.RoleModerator)
	admin := mkUser(t, e, "root", models.RoleAdmin)
	bob := mkUser(t, e, "bob", models.RoleUser)

	_, err := e.UpdateRole(ctx, mod, bob.UserID, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.UpdateRole(ctx, admin, bob.UserID, "wizard")
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = e.UpdateRole(ctx, admin, 4242, models.RoleUser)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
