package response

import (
	"errors"
)

// Error is an error with the HTTP status and machine-readable code a handler
// should answer with.
type Error struct {
	Code int
	Slug string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, slug string, err string) error {
	return &Error{Code: code, Slug: slug, Err: errors.New(err)}
}
