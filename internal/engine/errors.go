package engine

import (
	"errors"
	"fmt"
)

// Rejection kinds. Every rejected command wraps exactly one of these.
var (
	ErrAlreadyActive   = errors.New("game already in progress")
	ErrNoSession       = errors.New("no game in progress")
	ErrWrongPhase      = errors.New("wrong phase")
	ErrDuplicate       = errors.New("duplicate action")
	ErrCapacity        = errors.New("game is full")
	ErrStakeOutOfRange = errors.New("stake out of range")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotParticipant  = errors.New("not a participant")
	ErrNotPrivileged   = errors.New("not privileged")
	ErrDisabled        = errors.New("games are disabled in this room")
	ErrWrongVariant    = errors.New("command not available in this game")
)

// Rejection is a user input error. Reason is safe to show in chat; Kind is
// one of the sentinel errors above for errors.Is checks.
type Rejection struct {
	Kind   error
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}

func reject(kind error, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
