package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by how the submission pipeline reacts to it.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindDecode       Kind = "DECODE"
	KindPersistence  Kind = "PERSISTENCE"
	KindNotification Kind = "NOTIFICATION"
	KindUnexpected   Kind = "UNEXPECTED"
)

// Error is the error type shared by the pipeline components.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Decode(msg string, err error) *Error {
	return &Error{Kind: KindDecode, Message: msg, Err: err}
}

func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

func Notification(msg string, err error) *Error {
	return &Error{Kind: KindNotification, Message: msg, Err: err}
}

func Unexpected(msg string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

// KindOf reports the kind of err. Errors outside the taxonomy are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err onto the status code returned to the client.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
