package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const alertColumns = "id, alert_uid, rule_id, camera_id, event_id, severity, status, title, message, dedup_key, channels_json, dispatched_at, acknowledged_at, acknowledged_by, delivery_error, created_at, updated_at"

// InsertAlert stores a new alert, pending dispatch by default.
func (s *Store) InsertAlert(ctx context.Context, alert *Alert) (*Alert, error) {
	if alert == nil {
		return nil, errors.New("alert is nil")
	}
	if alert.Title == "" {
		return nil, errors.New("alert title is required")
	}
	if alert.UID == "" {
		alert.UID = uuid.NewString()
	}
	if alert.Severity == "" {
		alert.Severity = SeverityInfo
	}
	if alert.Status == "" {
		alert.Status = AlertPending
	}
	now := time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO alerts (alert_uid, rule_id, camera_id, event_id, severity, status, title, message, dedup_key, channels_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.UID,
		nullableInt64(alert.RuleID),
		nullableString(alert.CameraID),
		nullableInt64(alert.EventID),
		alert.Severity,
		alert.Status,
		alert.Title,
		nullableString(alert.Message),
		nullableString(alert.DedupKey),
		nullableString(alert.ChannelsJSON),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("alert insert id: %w", err)
	}
	return s.AlertByID(ctx, id)
}

// AlertByID fetches an alert by identifier.
func (s *Store) AlertByID(ctx context.Context, id int64) (*Alert, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// AlertByUID fetches an alert by public UID.
func (s *Store) AlertByUID(ctx context.Context, uid string) (*Alert, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+alertColumns+` FROM alerts WHERE alert_uid = ?`, uid)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert by uid: %w", err)
	}
	return alert, nil
}

// UpdateAlert persists delivery outcome changes.
func (s *Store) UpdateAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return errors.New("alert is nil")
	}
	alert.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE alerts
         SET severity = ?, status = ?, title = ?, message = ?, dedup_key = ?,
             channels_json = ?, dispatched_at = ?, acknowledged_at = ?,
             acknowledged_by = ?, delivery_error = ?, updated_at = ?
         WHERE id = ?`,
		alert.Severity,
		alert.Status,
		alert.Title,
		nullableString(alert.Message),
		nullableString(alert.DedupKey),
		nullableString(alert.ChannelsJSON),
		nullableTime(alert.DispatchedAt),
		nullableTime(alert.AcknowledgedAt),
		nullableString(alert.AcknowledgedBy),
		nullableString(alert.DeliveryError),
		timestamp(alert.UpdatedAt),
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return nil
}

// AlertFilter narrows ListAlerts output.
type AlertFilter struct {
	Status   AlertStatus
	CameraID string
	Severity Severity
	Since    time.Time
	Limit    int
	BeforeID int64
}

// ListAlerts returns alerts newest-first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.CameraID != "" {
		clauses = append(clauses, "camera_id = ?")
		args = append(args, filter.CameraID)
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, filter.Severity)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, timestamp(filter.Since))
	}
	if filter.BeforeID > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, filter.BeforeID)
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
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// PendingAlerts returns alerts waiting for dispatch, oldest first.
func (s *Store) PendingAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+alertColumns+` FROM alerts WHERE status = ? ORDER BY created_at LIMIT ?`,
		AlertPending,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert acknowledged by an operator.
func (s *Store) AcknowledgeAlert(ctx context.Context, uid string, actor string) (*Alert, error) {
	alert, err := s.AlertByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	alert.Status = AlertAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = actor
	if err := s.UpdateAlert(ctx, alert); err != nil {
		return nil, err
	}
	return s.AlertByID(ctx, alert.ID)
}

// LastAlertForDedup returns the most recent alert carrying the dedup key
// created at or after the cutoff, or nil when the window is clear.
func (s *Store) LastAlertForDedup(ctx context.Context, dedupKey string, since time.Time) (*Alert, error) {
	if dedupKey == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+alertColumns+` FROM alerts WHERE dedup_key = ? AND created_at >= ? ORDER BY created_at DESC LIMIT 1`,
		dedupKey,
		timestamp(since),
	)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	return alert, nil
}

// LastDispatchedForDedup returns the most recent dispatched alert carrying
// the dedup key since the cutoff, excluding the given alert. Used by the
// dispatcher to collapse duplicate deliveries inside the dedup window.
func (s *Store) LastDispatchedForDedup(ctx context.Context, dedupKey string, since time.Time, excludeID int64) (*Alert, error) {
	if dedupKey == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+alertColumns+` FROM alerts
         WHERE dedup_key = ? AND status = ? AND dispatched_at IS NOT NULL AND dispatched_at >= ? AND id != ?
         ORDER BY dispatched_at DESC LIMIT 1`,
		dedupKey,
		AlertDispatched,
		timestamp(since),
		excludeID,
	)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dispatched dedup lookup: %w", err)
	}
	return alert, nil
}

// RetryFailedAlerts moves failed alerts back to pending for redelivery.
func (s *Store) RetryFailedAlerts(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE alerts SET status = ?, delivery_error = NULL, updated_at = ? WHERE status = ?`,
		AlertPending,
		timestamp(time.Now().UTC()),
		AlertFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed alerts: %w", err)
	}
	return res.RowsAffected()
}

// PruneAlertsBefore deletes alerts created before the cutoff.
func (s *Store) PruneAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM alerts WHERE created_at < ?`, timestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune alerts: %w", err)
	}
	return res.RowsAffected()
}

// AlertStats returns a count of alerts grouped by status.
func (s *Store) AlertStats(ctx context.Context) (map[AlertStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM alerts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[AlertStatus]int)
	for rows.Next() {
		var status AlertStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanAlert(sc scanner) (*Alert, error) {
	var (
		id              int64
		uid             string
		ruleID          sql.NullInt64
		cameraID        sql.NullString
		eventID         sql.NullInt64
		severityStr     string
		statusStr       string
		title           string
		message         sql.NullString
		dedupKey        sql.NullString
		channelsRaw     sql.NullString
		dispatchedRaw   sql.NullString
		acknowledgedRaw sql.NullString
		acknowledgedBy  sql.NullString
		deliveryError   sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := sc.Scan(
		&id,
		&uid,
		&ruleID,
		&cameraID,
		&eventID,
		&severityStr,
		&statusStr,
		&title,
		&message,
		&dedupKey,
		&channelsRaw,
		&dispatchedRaw,
		&acknowledgedRaw,
		&acknowledgedBy,
		&deliveryError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	alert := &Alert{
		ID:             id,
		UID:            uid,
		CameraID:       cameraID.String,
		Severity:       Severity(severityStr),
		Status:         AlertStatus(statusStr),
		Title:          title,
		Message:        message.String,
		DedupKey:       dedupKey.String,
		ChannelsJSON:   channelsRaw.String,
		AcknowledgedBy: acknowledgedBy.String,
		DeliveryError:  deliveryError.String,
	}
	if ruleID.Valid {
		value := ruleID.Int64
		alert.RuleID = &value
	}
	if eventID.Valid {
		value := eventID.Int64
		alert.EventID = &value
	}
	if dispatchedRaw.Valid {
		if at, err := parseTimeString(dispatchedRaw.String); err == nil {
			alert.DispatchedAt = &at
		}
	}
	if acknowledgedRaw.Valid {
		if at, err := parseTimeString(acknowledgedRaw.String); err == nil {
			alert.AcknowledgedAt = &at
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		alert.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		alert.UpdatedAt = updated
	}
	return alert, nil
}
