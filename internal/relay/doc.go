// Package relay republishes door state to an MQTT broker.
//
// The controller speaks its own streaming protocol; companion devices on
// the local network (wall panels, notification daemons, dashboards) mostly
// speak MQTT. The relay bridges the two:
//
//	door.Store ──transitions──> Publisher ──publish──> broker
//
// Topic layout under the configured prefix (default "doorsync"):
//
//	doorsync/door/{id}/state        retained, current state string
//	doorsync/door/{id}/transition   event, JSON {door_id, previous, new, timestamp}
//	doorsync/status                 retained availability, LWT-backed
//
// State topics are retained so late subscribers see the door position
// without waiting for the next movement. After a broker reconnect the
// OnConnect callback republishes the full snapshot so retained values
// never drift.
//
// The publisher is strictly one-directional: nothing received from the
// broker ever feeds back into the door registry.
package relay
