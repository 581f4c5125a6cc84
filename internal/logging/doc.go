// Package logging builds the slog loggers used across presswatch and
// standardizes the structured field names shared by the daemon, worker
// pool, and CLI. Console output is a compact single-line format; json
// output uses lowercase level names and RFC3339 timestamps.
package logging
