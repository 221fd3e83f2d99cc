// Package apperr defines the error taxonomy shared by the sync engine.
//
// Callers distinguish failures by kind rather than by message:
//   - NotFound: a referenced route, company, collection or import record is missing
//   - BadRequest: the input can never succeed as given (duplicate name, bad URL,
//     missing introspection settings, unsupported spec, nothing to retry)
//
// Per-endpoint import failures are not errors at this level; the importer
// records them in the import's error log instead of returning them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindBadRequest Kind = "bad_request"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string

	// Details carries structured context, e.g. spec validation errors or
	// the list of supported formats.
	Details interface{}

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates a NotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// BadRequest creates a BadRequest error.
func BadRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Wrap attaches a cause and returns the same error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsNotFound reports whether err is classified as NotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsBadRequest reports whether err is classified as BadRequest.
func IsBadRequest(err error) bool {
	return KindOf(err) == KindBadRequest
}
