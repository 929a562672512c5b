package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordMetric appends one sample to the metrics timeseries.
func (s *Store) RecordMetric(ctx context.Context, point MetricPoint) error {
	if point.Name == "" {
		return errors.New("metric name is required")
	}
	if point.RecordedAt.IsZero() {
		point.RecordedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO metrics_timeseries (name, camera_id, value, recorded_at) VALUES (?, ?, ?, ?)`,
		point.Name,
		nullableString(point.CameraID),
		point.Value,
		timestamp(point.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record metric: %w", err)
	}
	return nil
}

// RecordMetrics appends a batch of samples in one transaction.
func (s *Store) RecordMetrics(ctx context.Context, points []MetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return retryOnBusy(ensureContext(ctx), func() error {
		tx, err := s.db.BeginTx(ensureContext(ctx), nil)
		if err != nil {
			return fmt.Errorf("begin metrics tx: %w", err)
		}
		defer tx.Rollback()

		for _, point := range points {
			if point.Name == "" {
				return errors.New("metric name is required")
			}
			at := point.RecordedAt
			if at.IsZero() {
				at = now
			}
			if _, err := tx.ExecContext(
				ensureContext(ctx),
				`INSERT INTO metrics_timeseries (name, camera_id, value, recorded_at) VALUES (?, ?, ?, ?)`,
				point.Name,
				nullableString(point.CameraID),
				point.Value,
				timestamp(at),
			); err != nil {
				return fmt.Errorf("insert metric: %w", err)
			}
		}
		return tx.Commit()
	})
}

// LatestMetric returns the newest sample for a metric name, or nil when the
// series is empty.
func (s *Store) LatestMetric(ctx context.Context, name string) (*MetricPoint, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, name, camera_id, value, recorded_at FROM metrics_timeseries WHERE name = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		name,
	)
	point, err := scanMetricPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest metric: %w", err)
	}
	return point, nil
}

// MetricQuery selects a window of one metric series.
type MetricQuery struct {
	Name     string
	CameraID string
	From     time.Time
	To       time.Time
	Step     time.Duration
}

// QueryMetrics aggregates samples into fixed-width buckets over the window.
// Empty buckets are omitted.
func (s *Store) QueryMetrics(ctx context.Context, q MetricQuery) ([]MetricBucket, error) {
	if q.Name == "" {
		return nil, errors.New("metric name is required")
	}
	if q.To.IsZero() {
		q.To = time.Now().UTC()
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-time.Hour)
	}
	if !q.From.Before(q.To) {
		return nil, errors.New("metric query window is empty")
	}
	if q.Step <= 0 {
		q.Step = time.Minute
	}

	query := `SELECT value, recorded_at FROM metrics_timeseries WHERE name = ? AND recorded_at >= ? AND recorded_at < ?`
	args := []any{q.Name, timestamp(q.From), timestamp(q.To)}
	if q.CameraID != "" {
		query += ` AND camera_id = ?`
		args = append(args, q.CameraID)
	}
	query += ` ORDER BY recorded_at`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	buckets := make(map[int64]*MetricBucket)
	var order []int64
	from := q.From.UTC()
	for rows.Next() {
		var (
			value       float64
			recordedRaw sql.NullString
		)
		if err := rows.Scan(&value, &recordedRaw); err != nil {
			return nil, err
		}
		recordedAt, err := parseTimeString(recordedRaw.String)
		if err != nil {
			continue
		}
		index := int64(recordedAt.Sub(from) / q.Step)
		bucket, ok := buckets[index]
		if !ok {
			bucket = &MetricBucket{
				Start: from.Add(time.Duration(index) * q.Step),
				Min:   value,
				Max:   value,
			}
			buckets[index] = bucket
			order = append(order, index)
		}
		if value < bucket.Min {
			bucket.Min = value
		}
		if value > bucket.Max {
			bucket.Max = value
		}
		bucket.Avg += value
		bucket.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]MetricBucket, 0, len(order))
	for _, index := range order {
		bucket := buckets[index]
		if bucket.Count > 0 {
			bucket.Avg /= float64(bucket.Count)
		}
		out = append(out, *bucket)
	}
	return out, nil
}

// PruneMetricsBefore deletes samples recorded before the cutoff.
func (s *Store) PruneMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM metrics_timeseries WHERE recorded_at < ?`, timestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune metrics: %w", err)
	}
	return res.RowsAffected()
}

func scanMetricPoint(sc scanner) (*MetricPoint, error) {
	var (
		point       MetricPoint
		cameraID    sql.NullString
		recordedRaw sql.NullString
	)
	if err := sc.Scan(&point.ID, &point.Name, &cameraID, &point.Value, &recordedRaw); err != nil {
		return nil, err
	}
	point.CameraID = cameraID.String
	if recorded, err := parseTimeString(recordedRaw.String); err == nil {
		point.RecordedAt = recorded
	}
	return &point, nil
}
