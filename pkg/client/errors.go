package client

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrMessageTooLong = errors.New("message too long")
	ErrSessionClosed  = errors.New("session closed")
	ErrUnknownBuddy   = errors.New("buddy not on list")
	ErrPrivacyBlocked = errors.New("blocked by privacy settings")
	ErrNoPicture      = errors.New("no buddy icon set")
	ErrEmptyName      = errors.New("empty name")
	ErrNotInChat      = errors.New("not in a chat room")
	ErrUnknownRoom    = errors.New("unknown room")
	ErrNoWhiteboard   = errors.New("no whiteboard with that user")
	ErrAlreadyInGroup = errors.New("buddy already in that group")

	// ErrWebMessengerRequired is wrapped by the non-terminal error sent
	// when normal auth fails the first time. The host should fetch a web
	// messenger cookie and reconnect with WebLogin.
	ErrWebMessengerRequired = errors.New("web messenger login required")
	// Web messenger sessions reach chat rooms over a separate protocol.
	ErrChatUnavailable      = errors.New("chat rooms unavailable over web messenger")
)

// Reason classifies a session error.
type Reason int

const (
	ReasonNetwork Reason = iota
	ReasonAuth
	ReasonOtherLocation
	ReasonInvalidName
	ReasonLocked
)

func (r Reason) String() string {
	switch r {
	case ReasonNetwork:
		return "network"
	case ReasonAuth:
		return "auth"
	case ReasonOtherLocation:
		return "other-location"
	case ReasonInvalidName:
		return "invalid-name"
	case ReasonLocked:
		return "locked"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// SessionError is reported to the host when the session fails.
// Terminal errors must not be retried automatically.
type SessionError struct {
	Reason   Reason
	Terminal bool
	Message  string
	Err      error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
