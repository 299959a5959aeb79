// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package registration

import "errors"

// Kind classifies workflow failures. Only the HTTP layer maps kinds to
// status codes; inside the workflow everything is a *registration.Error.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindEmailInUse         Kind = "email_in_use"
	KindTokenInvalid       Kind = "token_invalid"
	KindNotFound           Kind = "not_found"
	KindEmailNotVerified   Kind = "email_not_verified"
	KindAlreadyDecided     Kind = "already_decided"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindInternal           Kind = "internal"
)

// Error is a classified workflow failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error. Unclassified errors are
// treated as internal.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of a classified error. Internal
// errors deliberately yield a generic message so no detail leaks.
func MessageOf(err error) string {
	var werr *Error
	if errors.As(err, &werr) && werr.Kind != KindInternal {
		return werr.Message
	}
	return "internal server error"
}
