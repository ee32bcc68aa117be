package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// AuthReason tells why an authentication attempt failed.
type AuthReason string

const (
	AuthInvalidCredentials AuthReason = "invalid_credentials"
	AuthUnknownIdentity    AuthReason = "unknown_identity"
	AuthUnverifiedEmail    AuthReason = "unverified_email"
	AuthAccountDeactivated AuthReason = "account_deactivated"
	AuthSessionExpired     AuthReason = "session_expired"
)

var authMessages = map[AuthReason]string{
	AuthInvalidCredentials: "invalid identity number or password",
	AuthUnknownIdentity:    "invalid identity number or password",
	AuthUnverifiedEmail:    "email address has not been verified",
	AuthAccountDeactivated: "account deactivated",
	AuthSessionExpired:     "session expired, please log in again",
}

// AuthError is returned when a credential is refused.
// Unknown identities and bad passwords share a message so callers cannot enumerate accounts.
type AuthError struct {
	Reason AuthReason
	Err    error
}

func NewAuthError(reason AuthReason, err ...error) error {
	ae := &AuthError{Reason: reason}
	if len(err) > 0 {
		ae.Err = err[0]
	}
	return ae
}

func (err *AuthError) Error() string {
	if msg, ok := authMessages[err.Reason]; ok {
		return msg
	}
	return "authentication failed"
}

func (err *AuthError) Unwrap() error { return err.Err }

// NotFoundError reports an absent record.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err *NotFoundError) Error() string {
	return err.Resource + " not found"
}

// BackendUnavailableError wraps network or service failures of a backing store.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func NewBackendUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendUnavailableError{Op: op, Err: err}
}

func (err *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s: backend unavailable: %v", err.Op, err.Err)
}

func (err *BackendUnavailableError) Unwrap() error { return err.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsBackendUnavailable(err error) bool {
	var bu *BackendUnavailableError
	return errors.As(err, &bu)
}

func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	ok := errors.As(err, &ae)
	return ae, ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
