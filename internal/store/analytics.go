package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordAnalytics appends an operational audit entry.
func (s *Store) RecordAnalytics(ctx context.Context, kind, cameraID, detailJSON string) error {
	if kind == "" {
		return fmt.Errorf("analytics kind is required")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO analytics_events (kind, camera_id, detail_json, created_at) VALUES (?, ?, ?, ?)`,
		kind,
		nullableString(cameraID),
		nullableString(detailJSON),
		timestamp(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("record analytics: %w", err)
	}
	return nil
}

// AnalyticsFilter narrows ListAnalytics output.
type AnalyticsFilter struct {
	Kind     string
	CameraID string
	Since    time.Time
	Limit    int
}

// ListAnalytics returns audit entries newest-first.
func (s *Store) ListAnalytics(ctx context.Context, filter AnalyticsFilter) ([]*AnalyticsEvent, error) {
	query := `SELECT id, kind, camera_id, detail_json, created_at FROM analytics_events`
	var (
		clauses []string
		args    []any
	)
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.CameraID != "" {
		clauses = append(clauses, "camera_id = ?")
		args = append(args, filter.CameraID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, timestamp(filter.Since))
	}
	query += whereClause(clauses)
	query += ` ORDER BY id DESC`
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analytics: %w", err)
	}
	defer rows.Close()

	var entries []*AnalyticsEvent
	for rows.Next() {
		var (
			entry      AnalyticsEvent
			cameraID   sql.NullString
			detailJSON sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Kind, &cameraID, &detailJSON, &createdRaw); err != nil {
			return nil, err
		}
		entry.CameraID = cameraID.String
		entry.DetailJSON = detailJSON.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// PruneAnalyticsBefore deletes audit entries older than the cutoff.
func (s *Store) PruneAnalyticsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM analytics_events WHERE created_at < ?`, timestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune analytics: %w", err)
	}
	return res.RowsAffected()
}
