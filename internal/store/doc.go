// Package store persists device state in a local SQLite database.
//
// Two things survive restarts here:
//   - settings: provisioned key/value pairs (custom device ID, flags)
//   - pins: the last server-applied GPIO configuration
//
// Restoring pins locally means the agent drives hardware correctly from
// boot, before the broker connection comes up, instead of waiting for the
// server to push configuration again.
//
// The database uses WAL mode and a single writer connection, which is the
// sweet spot for SQLite on small devices.
package store
