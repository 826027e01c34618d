package clientcli

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

var (
	ErrConfigRequired  = errors.New("config is required")
	ErrEmptyID         = errors.New("download id or name is required")
	ErrInvalidEndpoint = errors.New("endpoint must be an http or https URL")
)

// APIError is an error response from the server. Code and Message come from
// the JSON error body when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("server error %d", e.StatusCode)
	}
}

// Is matches another *APIError by status code, and by error code when the
// target names one.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	if t.StatusCode != e.StatusCode {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrNotFound          = &APIError{StatusCode: http.StatusNotFound}
	ErrUnauthorized      = &APIError{StatusCode: http.StatusUnauthorized}
	ErrForbidden         = &APIError{StatusCode: http.StatusForbidden}
	ErrPasswordRequired  = &APIError{StatusCode: http.StatusUnauthorized, Code: "password_required"}
	ErrIncorrectPassword = &APIError{StatusCode: http.StatusUnauthorized, Code: "incorrect_password"}
)
