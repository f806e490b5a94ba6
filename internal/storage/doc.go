// Package storage records the firing history of a run.
//
// It is an append-only audit trail: nothing is read back when repeat starts, so
// a restart always begins with a fresh loop. Supported drivers:
//   - "file": JSON Lines appended to a single file
//   - "sqlite": a SQLite database (modernc.org/sqlite, no cgo)
package storage
