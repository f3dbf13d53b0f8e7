package relay

import (
	"fmt"

	"github.com/doorsync/doorsync-core/internal/door"
)

// Topic scheme: {prefix}/door/{id}/state for retained current state,
// {prefix}/door/{id}/transition for individual movements, and
// {prefix}/status for service availability (LWT).
type topics struct {
	prefix string
}

// DoorState returns the retained current-state topic for a door.
//
// Example: doorsync/door/1/state
func (t topics) DoorState(id door.ID) string {
	return fmt.Sprintf("%s/door/%d/state", t.prefix, int(id))
}

// DoorTransition returns the event topic for door movements.
//
// Example: doorsync/door/1/transition
func (t topics) DoorTransition(id door.ID) string {
	return fmt.Sprintf("%s/door/%d/transition", t.prefix, int(id))
}

// Status returns the service availability topic.
//
// Example: doorsync/status
func (t topics) Status() string {
	return t.prefix + "/status"
}
