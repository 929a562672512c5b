// Package logs provides log streaming clients and file tailing helpers
// shared by the CLI and daemon diagnostics.
//
// The HTTP stream client talks to the daemon's /api/v1/logs endpoint with
// filter support; the file tailer streams the on-disk log with bounded
// memory usage and supports negative offsets for "tail last N lines"
// operations. Callers supply context deadlines so follow-mode polling shuts
// down cleanly when the CLI exits.
//
// Use this package whenever you need consistent log viewing semantics
// instead of re-implementing ad-hoc tail logic.
package logs
