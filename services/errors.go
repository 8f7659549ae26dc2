package services

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies engine failures so transports can map them to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMuted
	KindBanned
	KindInvalidState
	KindConflict
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMuted:
		return "muted"
	case KindBanned:
		return "banned"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Error is a classified engine error. Code narrows the kind for callers that
// need to tell, for example, a closed popup thread from other invalid states.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches another *Error of the same kind. A target without a Code
// matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func invalidInput(format string, args ...any) *Error {
	return newError(KindInvalidInput, "", fmt.Sprintf(format, args...))
}

var (
	ErrUnauthorized = newError(KindUnauthorized, "", "unauthorized")
	ErrForbidden    = newError(KindForbidden, "", "forbidden")
	ErrNotFound     = newError(KindNotFound, "", "not found")
	ErrInvalidState = newError(KindInvalidState, "", "invalid state")
	ErrInvalidInput = newError(KindInvalidInput, "", "invalid input")

	ErrContentNotFound = newError(KindNotFound, "content", "content not found")
	ErrUserNotFound    = newError(KindNotFound, "user", "user not found")
	ErrMentionNotFound = newError(KindNotFound, "mention", "mention not found")
	ErrPollNotFound    = newError(KindInvalidState, "poll_missing", "poll not found")

	ErrParentClosed     = newError(KindInvalidState, "parent_closed", "popup thread is closed")
	ErrRepliesDisabled  = newError(KindInvalidState, "replies_disabled", "replies are disabled")
	ErrNotPopup         = newError(KindInvalidState, "not_popup", "content is not a popup thread")
	ErrPopupExists      = newError(KindInvalidState, "popup_exists", "popup thread already configured")
	ErrMentionResponded = newError(KindInvalidState, "mention_responded", "mention already responded")
	ErrInvalidOption    = newError(KindInvalidState, "invalid_option", "option index out of range")

	// ErrMuted and ErrBanned are matched by *MutedError and *BannedError.
	ErrMuted  = errors.New("user is muted")
	ErrBanned = errors.New("user is banned")
)

// MutedError blocks a write and carries what the muted user should see.
type MutedError struct {
	Reason    string
	ExpiresAt time.Time
	MutedBy   uint
}

func (e *MutedError) Error() string {
	return fmt.Sprintf("user is muted until %s: %s", e.ExpiresAt.Format(time.RFC3339), e.Reason)
}

func (e *MutedError) Is(target error) bool { return target == ErrMuted }

// BannedError blocks authentication and writes for a banned identity.
type BannedError struct {
	Reason   string
	BannedAt time.Time
	BannedBy uint
}

func (e *BannedError) Error() string { return "user is banned: " + e.Reason }

func (e *BannedError) Is(target error) bool { return target == ErrBanned }

// KindOf reports the classification of err; unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var me *MutedError
	if errors.As(err, &me) {
		return KindMuted
	}
	var be *BannedError
	if errors.As(err, &be) {
		return KindBanned
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
