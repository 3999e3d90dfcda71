package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so wrapped clones still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Forced-logout reasons exposed to the UI layer.
const (
	ReasonIPChanged      = "ip_changed"
	ReasonSessionInvalid = "session_invalid"
)

// Predefined errors for common scenarios.
var (
	ErrCredentialInvalid  = New("CREDENTIAL_INVALID", http.StatusUnauthorized, "invalid telegram username or password")
	ErrAccountPending     = New("ACCOUNT_PENDING", http.StatusForbidden, "account is pending admin approval")
	ErrAccountInactive    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrDeviceBlocked      = New("DEVICE_BLOCKED", http.StatusForbidden, "this device has been blocked by an administrator")
	ErrSessionInvalid     = &Error{Code: "SESSION_INVALID", Status: http.StatusUnauthorized, Message: "session is invalid or expired", Reason: ReasonSessionInvalid}
	ErrIPChanged          = &Error{Code: "IP_CHANGED", Status: http.StatusUnauthorized, Message: "network changed, please log in again", Reason: ReasonIPChanged}
	ErrResolverExhausted  = New("RESOLVER_EXHAUSTED", http.StatusServiceUnavailable, "could not determine client ip address")
	ErrStorageFailure     = New("STORAGE_FAILURE", http.StatusInternalServerError, "storage operation failed")
	ErrRateLimited        = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests, try again later")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Storage wraps a persistence failure; callers never see driver details.
func Storage(err error, message string) *Error {
	return Wrap(err, ErrStorageFailure.Code, ErrStorageFailure.Status, message)
}

// IsForcedLogout reports whether err should make the client discard its token.
func IsForcedLogout(err error) bool {
	e := FromError(err)
	return e != nil && e.Reason != ""
}
