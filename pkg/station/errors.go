package station

import "errors"

// Station errors.
var (
	// ErrNotConnected - the command requires an active CSMS connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected - Connect was called twice.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnected - the configuration change is rejected while connected.
	ErrConnected = errors.New("cannot change electrical configuration while connected")

	// ErrEVSENotFound - no EVSE with the requested id.
	ErrEVSENotFound = errors.New("evse not found")

	// ErrInvalidTransition - the command does not apply to the EVSE's
	// current status. The command is a no-op; no state was changed.
	ErrInvalidTransition = errors.New("invalid transition for current status")

	// ErrNoActiveSession - stop requested but no session is active.
	ErrNoActiveSession = errors.New("no active session")

	// ErrInvalidConfig - configuration validation failed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidSession - session parameter validation failed.
	ErrInvalidSession = errors.New("invalid session parameters")
)
