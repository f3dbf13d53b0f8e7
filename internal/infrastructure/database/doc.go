// Package database provides the SQLite connection layer for DoorSync Core.
//
// This package manages:
//   - Opening the SQLite database with WAL mode and busy-timeout pragmas
//   - Single-writer connection pool settings appropriate for SQLite
//   - Restrictive file permissions (0600)
//   - Connection health checks
//
// The only consumer is the transition-history store (internal/history),
// which keeps its schema inline. No migration framework is required for a
// single-table client-side log.
package database
