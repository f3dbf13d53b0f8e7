// Package door provides the Door State Store for DoorSync Core.
//
// The store is the single authoritative owner of the door registry: a fixed
// mapping from door id to current state, mutated only by applying decoded
// stream events in arrival order. Consumers never receive a mutable
// reference; they read immutable snapshots or subscribe to transition
// notifications.
//
// # Architecture
//
//	stream.Session ──frames──▶ codec ──events──▶ Store.Apply (single writer)
//	                                                   │
//	                              ┌────────────────────┼────────────────────┐
//	                              ▼                    ▼                    ▼
//	                        api server          mqtt relay           history/telemetry
//	                       (Snapshot())      (Subscribe())            (Subscribe())
//
// # Fan-out
//
// Transition notifications fire for StatusChanged events that actually
// change a door's state. An InitialSnapshot replaces the registry silently;
// it is a baseline for readers, not a burst of movements.
//
// Each subscription owns a bounded queue drained by a dedicated worker
// goroutine. Delivery is per-subscriber ordered and never concurrent with
// itself; a slow consumer overflows its own queue (dropped, counted) without
// blocking the event loop or other subscribers. One store instance per
// process replaces the per-surface state copies earlier clients kept.
//
// # Thread Safety
//
// Apply follows a single-writer discipline: only the client event loop calls
// it. Snapshot, Get, Subscribe and Unsubscribe are safe from any goroutine.
package door
