package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput     = "invalid_input"
	CodeInvalidState     = "invalid_state"
	CodeNotFound         = "not_found"
	CodeForbidden        = "forbidden"
	CodeUnauthorized     = "unauthorized"
	CodeConflict         = "conflict"
	CodeUnavailable      = "unavailable"
	CodeUpstreamRejected = "upstream_rejected"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, fmt.Errorf(format, args...))
}

func InvalidState(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidState, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(http.StatusForbidden, CodeForbidden, fmt.Errorf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, CodeConflict, fmt.Errorf(format, args...))
}

// Unavailable hides err from callers; the cause stays reachable via Unwrap
// only for logging.
func Unavailable(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeUnavailable, Err: &hidden{cause: err}}
}

type hidden struct{ cause error }

func (h *hidden) Error() string { return "service temporarily unavailable" }
func (h *hidden) Unwrap() error { return h.cause }

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries an *Error with the given code.
func Is(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}
