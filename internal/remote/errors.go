package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the credentials were missing, expired or revoked.
	ErrUnauthorized = errors.New("token expired or revoked")

	// ErrNotFound means the object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTimeout means the request did not complete in time.
	ErrTimeout = errors.New("request timed out")

	// ErrUnsupported means the backend has no equivalent for the operation.
	ErrUnsupported = errors.New("not supported by backend")
)

// Error is a failed remote call.
type Error struct {
	Op         string // client method, e.g. "UpdateTask"
	StatusCode int    // HTTP status, 0 if the request never completed
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
