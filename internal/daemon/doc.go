// Package daemon coordinates the long-running Argus process and its
// integration points.
//
// It wires configuration, the segment store, the ingest manager, the workflow
// manager, and the background services (scaler, retention janitor, metrics
// sampler) into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon exposes queue maintenance helpers, camera
// registration, alert acknowledgement, and the HTTP API server.
//
// Keep orchestration logic here: individual pipeline stages should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
