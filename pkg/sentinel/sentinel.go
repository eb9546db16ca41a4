// Package sentinel holds the error values infrastructure clients return so
// controllers can classify failures without string matching.
package sentinel

import "errors"

var (
	// ErrUnauthorized marks a missing or expired auth token; callers route
	// the user to re-authentication and discard checkout state.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks a resource the backend does not know.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks a transport failure or upstream 5xx; the same
	// user action can simply be retried.
	ErrUnavailable = errors.New("unavailable")
)
