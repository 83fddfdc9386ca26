package core

import (
	"fmt"
)

// Error is the canonical error carried across the SDK. Server-reported
// errors, device failures, and payload decode failures all surface as one
// of these so callers have a single user-visible message to show.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	// ErrPermission covers denied or unavailable capture devices.
	ErrPermission ErrorType = "permission_error"
	// ErrAPI is a server-reported error surfaced verbatim to the user.
	ErrAPI ErrorType = "api_error"
	// ErrDecode is a malformed audio payload. The offending chunk is dropped
	// and playback continues.
	ErrDecode ErrorType = "decode_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewPermissionError creates a permission error.
func NewPermissionError(message string) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
	}
}

// NewAPIError creates a server-reported error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// NewDecodeError creates a payload decode error.
func NewDecodeError(message string) *Error {
	return &Error{
		Type:    ErrDecode,
		Message: message,
	}
}

// IsFatal reports whether the error ends the current session. A decode
// failure drops a single chunk and the session continues; every other type
// marks the session errored. Nothing is fatal to the process.
func (e *Error) IsFatal() bool {
	return e.Type != ErrDecode
}
