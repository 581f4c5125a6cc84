// Package queue provides SQLite-backed persistence for audit and
// lookup jobs. Jobs fan out into one item per paper; items move
// pending -> running -> completed/failed, or pending -> canceled. Job
// status is always derived from item counts and never stored, so the
// database cannot hold a contradictory rollup. All state transitions
// go through the store, which serializes them with transactions and
// busy retries.
package queue
