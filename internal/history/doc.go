// Package history persists door transitions to SQLite.
//
// Each observed movement becomes one append-only row:
//
//	door_transitions(id, door_id, prev_state, new_state, source, created_at)
//
// The table answers "when did the garage last open" without any external
// service, which matters on a Pi that may spend days offline. Recent and
// RecentForDoor read newest-first; Prune trims old rows.
//
// Recorder is the fan-out adapter: it subscribes to the door registry and
// writes each transition with a bounded timeout, logging failures instead
// of propagating them.
package history
