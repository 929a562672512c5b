// Package retention prunes aged segments, events, alerts, and audit rows,
// and keeps the segment filesystem above the configured free-space floor.
package retention
