package http

import "errors"

// ErrUnauthenticated is returned when a request carries a bearer token that
// cannot be resolved to a user, or carries none on a route that needs one.
var ErrUnauthenticated = errors.New("unauthenticated")
