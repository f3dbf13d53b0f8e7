package command

import "errors"

// Dispatch errors. All are surfaced directly to the caller of Trigger;
// the dispatcher never retries on its own.
var (
	// ErrInvalidDoor is returned when the door id is not in the configured
	// set. No network call is made.
	ErrInvalidDoor = errors.New("command: invalid door id")

	// ErrUnreachable is returned on connection-level failure, including
	// the round-trip timeout.
	ErrUnreachable = errors.New("command: controller unreachable")

	// ErrRejected is returned when the controller answered with a
	// non-success status (auth failure, rate limit, bad request).
	ErrRejected = errors.New("command: rejected by controller")

	// ErrStaleCredential is returned when the configured bearer token is a
	// JWT whose expiry has passed. Detected locally, before any network call.
	ErrStaleCredential = errors.New("command: bearer token expired")
)
