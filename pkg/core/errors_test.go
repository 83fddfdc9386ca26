package core

import (
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "base URL must not be empty",
	}

	expected := "invalid_request_error: base URL must not be empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrAPI,
		Message: "rate limit reached for realtime sessions",
		Code:    "session_limit",
	}

	expected := "api_error: rate limit reached for realtime sessions (code: session_limit)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewPermissionError(t *testing.T) {
	err := NewPermissionError("microphone access denied")
	if err.Type != ErrPermission {
		t.Errorf("Type = %v, want %v", err.Type, ErrPermission)
	}
	if err.Message != "microphone access denied" {
		t.Errorf("Message = %q, want %q", err.Message, "microphone access denied")
	}
}

func TestNewAuthenticationError(t *testing.T) {
	err := NewAuthenticationError("missing bearer token")
	if err.Type != ErrAuthentication {
		t.Errorf("Type = %v, want %v", err.Type, ErrAuthentication)
	}
}

func TestError_IsFatal(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrInvalidRequest, true},
		{ErrAuthentication, true},
		{ErrPermission, true},
		{ErrAPI, true},
		{ErrDecode, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &Error{Type: tt.errType, Message: "test"}
			if got := err.IsFatal(); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}
