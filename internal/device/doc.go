// Package device records what the gateway learns about its configured
// devices: the outcome of the most recent poll and a bounded history of
// readings.
//
// The store is a side channel. MQTT remains the gateway's output; the
// status tables back the HTTP status API and survive restarts so an
// operator can see when a tag was last heard from.
//
// # Tables
//
//	device_status    one row per (worker, device), upserted every cycle
//	reading_history  one row per successful poll, pruned per device
//
// Both tables are created by the embedded migrations in /migrations.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use; it relies on database/sql
// pooling and SQLite's single-writer locking.
package device
