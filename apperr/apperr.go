// Package apperr is the error taxonomy shared by every operation exposed to
// the transport layer.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	NotFound     Kind = "NotFound"
	Forbidden    Kind = "Forbidden"
	InvalidState Kind = "InvalidState"
	InvalidInput Kind = "InvalidInput"
	Conflict     Kind = "Conflict"
	Unauthorized Kind = "Unauthorized"
	Internal     Kind = "Internal"
)

// Error carries a stable, user-visible message plus its classification.
// Err is the underlying cause and is never shown to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Msg + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// InternalErr wraps an unexpected failure; the message stays generic.
func InternalErr(err error) *Error {
	return &Error{Kind: Internal, Msg: "internal server error", Err: err}
}

// KindOf reports the classification of err. Anything that is not an *Error
// is treated as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-visible message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case InvalidState, InvalidInput:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
