package errors

import (
	"errors"
	"fmt"
)

// Restore errors.
var (
	ErrInvalidFormat = errors.New("backup data is invalid or corrupted")
	ErrRestoreFailed = errors.New("backup restore failed")
)

// Sync errors.
var (
	ErrDecode       = errors.New("malformed settings payload")
	ErrTransport    = errors.New("remote backend request failed")
	ErrNoOpSkip     = errors.New("sync hash unchanged")
	ErrSyncInFlight = errors.New("sync cycle already in progress")
	ErrSyncDisabled = errors.New("settings sync is disabled")
)

// Entity errors.
var (
	ErrValidation  = errors.New("entity failed validation")
	ErrReferential = errors.New("dangling entity reference")
)

// TransportError wraps a failure reported by a remote backend. It
// matches ErrTransport with errors.Is.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport as a match so callers can classify without
// knowing the concrete type.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
