package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	closed := newError(KindInvalidState, ErrParentClosed.Code, "popup thread is closed (time)")
	assert.True(t, errors.Is(closed, ErrParentClosed))
	assert.True(t, errors.Is(closed, ErrInvalidState))
	assert.False(t, errors.Is(closed, ErrRepliesDisabled))
	assert.False(t, errors.Is(closed, ErrNotFound))

	wrapped := fmt.Errorf("create: %w", ErrContentNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestRestrictionErrors(t *testing.T) {
	exp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var err error = &MutedError{Reason: "spam", ExpiresAt: exp, MutedBy: 7}
	assert.True(t, errors.Is(err, ErrMuted))
	assert.False(t, errors.Is(err, ErrBanned))
	assert.Equal(t, KindMuted, KindOf(err))

	var me *MutedError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &me))
	assert.Equal(t, "spam", me.Reason)
	assert.Equal(t, uint(7), me.MutedBy)

	err = &BannedError{Reason: "abuse"}
	assert.True(t, errors.Is(err, ErrBanned))
	assert.Equal(t, KindBanned, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
