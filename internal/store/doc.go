// Package store persists cameras, video segments, events, alerts, rules,
// analytics entries and metric samples in SQLite.
//
// The Store manages database connections, schema migrations, stats queries,
// heartbeat tracking, stuck-segment recovery, and the status transitions that
// mirror the public workflow enum. Segments capture progress, analysis
// results, and review flags so stages can coordinate without additional
// state.
//
// Segment rows are transient records of in-flight work; events, alerts and
// metrics are the durable output and are trimmed by retention sweeps rather
// than cleared wholesale. Schema changes add a migration file under
// migrations/; applied versions are tracked in schema_migrations.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add new statuses or columns, add a migration and update the enums
// here.
package store
