package nominatim

import (
	"errors"
	"fmt"
)

// Sentinel errors for geocoding requests.
var (
	ErrRateLimited = errors.New("nominatim: rate limited by server")
	ErrUnavailable = errors.New("nominatim: service unavailable")
	ErrServer      = errors.New("nominatim: server error")
	ErrBadRequest  = errors.New("nominatim: bad request")
	ErrForbidden   = errors.New("nominatim: forbidden")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string // "search"
	Query string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("nominatim %s [%q]: %v", e.Op, e.Query, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, query string, err error) error {
	return &Error{Op: op, Query: query, Err: err}
}
