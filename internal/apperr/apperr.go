// Package apperr defines the error kinds shared by the services and the
// transports that surface them.
package apperr

import "errors"

var (
	// ErrNotFound marks an entity that is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input such as an order below 1.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks an update that mixes mutually exclusive field groups.
	ErrConflict = errors.New("conflict")
	// ErrUpstream marks a failed call to the identity or billing provider.
	ErrUpstream = errors.New("upstream provider error")
	// ErrUnauthorized marks a missing or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks a caller without access to a gated feature.
	ErrForbidden = errors.New("forbidden")
	// ErrInvariant marks a broken internal invariant. It always indicates a bug.
	ErrInvariant = errors.New("invariant violated")
)

// Message returns the part of a wrapped error meant for clients: the text
// after the sentinel prefix, or the sentinel text itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrUpstream, ErrUnauthorized, ErrForbidden, ErrInvariant} {
		prefix := kind.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
