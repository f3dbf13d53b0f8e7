// Package telemetry writes door-state metrics to InfluxDB.
//
// Two measurements:
//
//	door_state       gauge per door: closed=0, moving=0.5, open=1, unknown=-1
//	door_transition  one point per observed movement, tagged by target state
//
// Writes are batched and non-blocking so the fan-out path never waits on
// the network. Telemetry is optional; when disabled in config the client
// is simply never constructed and nothing else changes.
package telemetry
