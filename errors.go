package ferry

import "errors"

var (
	// ErrNotFound is returned when a download resource does not exist
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// Access gate refusals. None of these are retried.
var (
	ErrNotDownloadable   = errors.New("file is not downloadable")
	ErrUnauthorized      = errors.New("not allowed to download this file")
	ErrPasswordRequired  = errors.New("password required")
	ErrIncorrectPassword = errors.New("incorrect password")
)

// Delivery failures.
var (
	// ErrFileNotFound is returned when the underlying bytes cannot be opened
	// and no fallback strategy is left.
	ErrFileNotFound = errors.New("file not found")
	// ErrRangeNotSatisfiable is returned when the requested byte range lies
	// outside the file.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	// ErrTransferFailed is returned when writing the body fails mid-stream.
	ErrTransferFailed = errors.New("transfer failed")
)
