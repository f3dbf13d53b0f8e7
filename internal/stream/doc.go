// Package stream provides the controller stream session and frame codec
// for DoorSync Core.
//
// This package manages:
//   - One logical WebSocket connection to the controller's /ws endpoint
//   - Automatic reconnection after a fixed delay (default 3s)
//   - Keep-alive pings (default 30s) doubling as a liveness probe
//   - Decoding raw frames into typed door events
//
// # Architecture
//
//	controller /ws ──frames──▶ Session ──chan []byte──▶ DecodeFrame ──door.Event──▶ door.Store
//
// The session exposes inbound frames as a single channel in wire order,
// restartable across reconnects and closed only by Stop(). Transport errors
// are recovered locally and surface to consumers only as ConnectionState;
// decode errors are per-frame and never fatal.
//
// # Wire Protocol
//
// Two inbound JSON shapes, keyed by a "type" field:
//
//	{"type":"initial_status","doors":{"1":"closed","2":"open"}}
//	{"type":"status_update","door_id":1,"status":"opening"}
//
// plus the literal text "pong" answering our keep-alive "ping".
package stream
