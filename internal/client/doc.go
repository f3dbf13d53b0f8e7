// Package client wires the sync pipeline together.
//
//	stream.Session ──frames──┐
//	                         ├──> eventLoop ──Apply──> door.Store ──fan-out──> subscribers
//	poll fallback ──snapshots┘
//
// The event loop is the registry's only writer. Frames decode to events
// and apply in arrival order; undecodable frames are logged and dropped.
// While the stream is down, an optional poll loop fetches the status
// endpoint and feeds the result through the same path as a full snapshot.
//
// Triggers bypass all of this: they go straight out on the command
// side-channel and their effects come back in as ordinary status updates.
package client
