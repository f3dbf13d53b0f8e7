package door

import "errors"

// Domain errors for the door package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, door.ErrUnknownDoor) {
//	    // handle unconfigured door id
//	}
var (
	// ErrUnknownDoor is returned when a door ID is not in the configured set.
	ErrUnknownDoor = errors.New("door: unknown door id")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("door: store closed")
)
