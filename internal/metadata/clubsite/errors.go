package clubsite

import (
	"errors"
	"fmt"
)

// Sentinel errors for club profile lookups.
var (
	ErrNotFound    = errors.New("clubsite: profile not found")
	ErrAntiBot     = errors.New("clubsite: anti-bot challenge")
	ErrRateLimited = errors.New("clubsite: rate limited by server")
	ErrServer      = errors.New("clubsite: server error")
	ErrBadRequest  = errors.New("clubsite: request rejected")
	ErrNoDetails   = errors.New("clubsite: profile has no club details link")
	ErrNoAddress   = errors.New("clubsite: club details link has no address")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // "lookup", "parse"
	Ref string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("clubsite %s [%s]: %v", e.Op, e.Ref, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, ref string, err error) error {
	return &Error{Op: op, Ref: ref, Err: err}
}
