// Package notify delivers outbound notifications. It has two halves: a
// system notification service that reports daemon lifecycle and pipeline
// trouble to an ntfy topic, and an alert dispatcher that fans
// rule-triggered alerts out to ntfy and signed webhook endpoints with
// per-key deduplication.
package notify
