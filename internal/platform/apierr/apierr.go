package apierr

import (
	"errors"
	"fmt"
	"net/http"
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

// Sentinels for the caller-visible failure kinds of the snapshot engine.
// Dropping a stale event is deliberately not represented here: it is a logged
// no-op, not an error surfaced to anyone.
var (
	ErrNotFound        = errors.New("aggregate not found")
	ErrVersionConflict = errors.New("entity outdated")
	ErrTransient       = errors.New("transient failure")
)

func NotFound(err error) *Error {
	return New(http.StatusNotFound, "AGGREGATE_NOT_FOUND", err)
}

func Conflict(err error) *Error {
	return New(http.StatusConflict, "ENTITY_OUTDATED", err)
}

func Transient(err error) *Error {
	return New(http.StatusServiceUnavailable, "TRANSIENT_FAILURE", err)
}

// Invalid marks a domain precondition failure, e.g. a state transition the
// aggregate does not allow.
func Invalid(err error) *Error {
	return New(http.StatusBadRequest, "INVALID_OPERATION", err)
}

// StatusOf maps an error chain onto an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
