package door

import "time"

// ID identifies a single garage door. The set of valid ids is fixed at
// configuration time; ids are never auto-discovered.
type ID int

// State is the current position of a door as reported by the controller.
type State string

// Door states. These match the controller's wire values exactly.
const (
	StateUnknown State = "unknown"
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateClosing State = "closing"
)

// ParseState converts a wire value to a State.
// Unrecognised values map to StateUnknown; the controller treats the status
// field as free text, so this must never fail.
func ParseState(s string) State {
	switch State(s) {
	case StateOpen, StateClosed, StateOpening, StateClosing, StateUnknown:
		return State(s)
	default:
		return StateUnknown
	}
}

// Moving reports whether the state is a transitional one.
func (s State) Moving() bool {
	return s == StateOpening || s == StateClosing
}

// Event is a typed message decoded from the controller stream and applied
// to the Store. Exactly two shapes exist on the wire.
type Event interface {
	isEvent()
}

// InitialSnapshot carries the full door set sent when the stream connects.
// Applying it replaces the registry atomically.
type InitialSnapshot struct {
	Doors map[ID]State
}

func (InitialSnapshot) isEvent() {}

// StatusChanged carries a single door's new state.
type StatusChanged struct {
	Door   ID
	Status State
}

func (StatusChanged) isEvent() {}

// Transition describes an observed state change for one door.
// It is delivered to subscribers only when the state actually changed.
type Transition struct {
	Door     ID        `json:"door_id"`
	Previous State     `json:"previous"`
	New      State     `json:"new"`
	At       time.Time `json:"at"`
}
