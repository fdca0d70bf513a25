// Package database owns the connection to the host engine: configuration,
// engine opening for SQLite, PostgreSQL, MySQL and bbolt, the capacity
// pre-check, version negotiation, health checks, reconnects and logging.
package database
