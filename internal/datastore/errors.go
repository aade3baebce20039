package datastore

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the datastore package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("datastore: row not found")

	// ErrMultipleRows is returned when a single-row lookup matches more than one row.
	ErrMultipleRows = errors.New("datastore: more than one row matched")

	// ErrInvalidQuery is returned for malformed queries (bad identifiers, empty updates).
	ErrInvalidQuery = errors.New("datastore: invalid query")

	// ErrConflict is returned when the backend reports a uniqueness or constraint conflict.
	ErrConflict = errors.New("datastore: conflict")
)

// RemoteError is a failure reported by a PostgREST endpoint.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest %d: %s", e.Status, e.Message)
}

// Is maps well-known statuses onto the package sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.Status == 409 || e.Code == "23505"
	case ErrNotFound:
		return e.Status == 404 || e.Code == "PGRST116"
	}
	return false
}
