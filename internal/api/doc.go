// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal store models into transport-friendly DTOs
// so CLI and HTTP consumers never couple to internal types.
//
// # Key Types
//
// Segment: transport representation of a pipeline segment with progress,
// analysis payload, and review state.
//
// Camera: registered video source with runtime stream state.
//
// Event/Alert/Rule: analysis findings, raised notifications, and the rules
// that connect them.
//
// WorkflowStatus/DaemonStatus: daemon running state, queue stats, stage
// health, ingest counters, and dependency availability.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (store.Status, store.Severity) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Analysis documents, rule
// conditions, and event metadata pass through as json.RawMessage to avoid
// double-encoding.
package api
