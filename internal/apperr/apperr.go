// Package apperr holds the error taxonomy shared by every console slice.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by how the console reacts to it.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindTransient      Kind = "transient"
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindStorage        Kind = "storage"
	KindCancelled      Kind = "cancelled"
	KindPushDisconnect Kind = "push_disconnect"
)

// GenericMessage is shown when the service did not supply a usable message.
const GenericMessage = "Something went wrong. Please try again."

// ErrCancelled is the distinguished error returned for caller-issued cancellation.
var ErrCancelled = &Error{Kind: KindCancelled, Code: "cancelled", Message: "operation cancelled"}

// Error is the normalized failure shape: status, code, and a human message.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches errors of the same kind and code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind && e.Code == other.Code
}

// New builds an Error without a cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, err: cause}
}

// Validation reports a local predicate failure; it never reaches the network.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusUnprocessableEntity, Code: code, Message: message}
}

// FromStatus maps an HTTP status from the CMS service onto the taxonomy.
func FromStatus(status int, code, message string) *Error {
	if message == "" {
		message = GenericMessage
	}
	if code == "" {
		code = http.StatusText(status)
	}
	kind := KindTransient
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuthorization
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status >= 400 && status < 500:
		kind = KindConflict
	}
	return &Error{Kind: kind, Status: status, Code: code, Message: message}
}

// KindOf reports the Kind of err, treating context cancellation as cancelled
// and anything unclassified as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransient
}

// IsCancelled reports whether err stems from caller-issued cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// MessageOf returns the human message carried by err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return GenericMessage
}

// ShouldToast reports whether a failure is surfaced as a red toast. Cancelled,
// storage and push failures stay silent; authorization failures redirect instead.
func ShouldToast(err error) bool {
	switch KindOf(err) {
	case "", KindCancelled, KindStorage, KindPushDisconnect, KindAuthorization:
		return false
	default:
		return true
	}
}
