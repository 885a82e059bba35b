package shared

import "errors"

// Error kinds shared across the engine. Domain packages wrap these so
// callers can classify failures with errors.Is without importing every
// package's sentinels.
var (
	// ErrNotFound indicates a missing vendor, transaction, bill or entry.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStateTransition indicates a lifecycle operation applied
	// to a transaction in the wrong state.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
