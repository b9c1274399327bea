// Package queue persists menu-processing jobs in SQLite. The store only ever
// sees snapshots: the orchestrator owns the in-flight job and writes through
// Update, so readers polling for status always observe a coherent state.
package queue
