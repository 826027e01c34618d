package identity

import "errors"

var (
	// ErrTokenNotFound is returned when a static token is not configured.
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidToken is returned when a JWT fails verification.
	ErrInvalidToken = errors.New("invalid token")
)
