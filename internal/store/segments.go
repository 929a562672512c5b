package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const segmentColumns = "id, segment_uid, camera_id, path, status, started_at, ended_at, frame_count, byte_size, width, height, error_message, progress_stage, progress_percent, progress_message, analysis_json, last_heartbeat, needs_review, review_reason, created_at, updated_at"

// NewSegment inserts a freshly recorded segment awaiting analysis.
// A UID is assigned when the caller did not provide one.
func (s *Store) NewSegment(ctx context.Context, seg *Segment) (*Segment, error) {
	if seg == nil {
		return nil, errors.New("segment is nil")
	}
	if seg.CameraID == "" {
		return nil, errors.New("segment camera id is required")
	}
	if seg.UID == "" {
		seg.UID = uuid.NewString()
	}
	if seg.Status == "" {
		seg.Status = StatusRecorded
	}
	now := time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO video_segments (
            segment_uid, camera_id, path, status, started_at, ended_at,
            frame_count, byte_size, width, height, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.UID,
		seg.CameraID,
		seg.Path,
		seg.Status,
		nullableString(formatOptionalTime(seg.StartedAt)),
		nullableString(formatOptionalTime(seg.EndedAt)),
		seg.FrameCount,
		seg.ByteSize,
		seg.Width,
		seg.Height,
		timestamp(now),
		timestamp(now),
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert segment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.SegmentByID(ctx, id)
}

// SegmentByID fetches a segment by identifier.
func (s *Store) SegmentByID(ctx context.Context, id int64) (*Segment, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+segmentColumns+` FROM video_segments WHERE id = ?`, id)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// SegmentByUID fetches a segment by its public UID.
func (s *Store) SegmentByUID(ctx context.Context, uid string) (*Segment, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+segmentColumns+` FROM video_segments WHERE segment_uid = ?`, uid)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment by uid: %w", err)
	}
	return seg, nil
}

// UpdateSegment persists changes to an existing segment.
func (s *Store) UpdateSegment(ctx context.Context, seg *Segment) error {
	if seg == nil {
		return errors.New("segment is nil")
	}
	seg.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE video_segments
         SET camera_id = ?, path = ?, status = ?, started_at = ?, ended_at = ?,
             frame_count = ?, byte_size = ?, width = ?, height = ?, error_message = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             analysis_json = ?, last_heartbeat = ?, needs_review = ?, review_reason = ?,
             updated_at = ?
         WHERE id = ?`,
		seg.CameraID,
		seg.Path,
		seg.Status,
		nullableString(formatOptionalTime(seg.StartedAt)),
		nullableString(formatOptionalTime(seg.EndedAt)),
		seg.FrameCount,
		seg.ByteSize,
		seg.Width,
		seg.Height,
		nullableString(seg.ErrorMessage),
		nullableString(seg.ProgressStage),
		seg.ProgressPercent,
		nullableString(seg.ProgressMessage),
		nullableString(seg.AnalysisJSON),
		nullableTime(seg.LastHeartbeat),
		boolToInt(seg.NeedsReview),
		nullableString(seg.ReviewReason),
		timestamp(seg.UpdatedAt),
		seg.ID,
	)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	return nil
}

// SegmentFilter narrows ListSegments output.
type SegmentFilter struct {
	CameraID string
	Statuses []Status
	Limit    int
	BeforeID int64
}

// ListSegments returns segments newest-first, filtered and cursor-paginated.
func (s *Store) ListSegments(ctx context.Context, filter SegmentFilter) ([]*Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM video_segments`
	var (
		clauses []string
		args    []any
	)
	if filter.CameraID != "" {
		clauses = append(clauses, "camera_id = ?")
		args = append(args, filter.CameraID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
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
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// SegmentsByStatus returns segments matching a status ordered by creation time.
func (s *Store) SegmentsByStatus(ctx context.Context, status Status) ([]*Segment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+segmentColumns+` FROM video_segments WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// NextForStatuses returns the oldest segment matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Segment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + segmentColumns + ` FROM video_segments WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return seg, nil
}

// CountByStatus returns the number of segments currently in a status.
func (s *Store) CountByStatus(ctx context.Context, status Status) (int, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM video_segments WHERE status = ?`, status)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight segment.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE video_segments SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		timestamp(now),
		timestamp(now),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// RetryFailed moves failed segments back to recorded for reprocessing.
// With no ids every failed segment is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE video_segments
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusRecorded,
			timestamp(time.Now().UTC()),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed segments: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusRecorded, timestamp(time.Now().UTC()))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE video_segments
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected segments: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of segments grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM video_segments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("segment stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// RemoveSegment deletes a segment row by identifier.
func (s *Store) RemoveSegment(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM video_segments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete segment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearSegments removes all segments.
func (s *Store) ClearSegments(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM video_segments`)
	if err != nil {
		return 0, fmt.Errorf("clear segments: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompletedSegments removes only completed segments.
func (s *Store) ClearCompletedSegments(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM video_segments WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailedSegments removes only failed segments.
func (s *Store) ClearFailedSegments(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM video_segments WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// SegmentsEndedBefore returns terminal segments whose recording ended before
// the cutoff, oldest first. Used by retention sweeps.
func (s *Store) SegmentsEndedBefore(ctx context.Context, cameraID string, cutoff time.Time, limit int) ([]*Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM video_segments
        WHERE status IN (?, ?, ?) AND ended_at IS NOT NULL AND ended_at < ?`
	args := []any{StatusCompleted, StatusFailed, StatusReview, timestamp(cutoff)}
	if cameraID != "" {
		query += ` AND camera_id = ?`
		args = append(args, cameraID)
	}
	query += ` ORDER BY ended_at`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("segments ended before: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// OldestCompletedSegments returns completed segments oldest-first for the
// disk watermark sweep. In-flight segments are never candidates.
func (s *Store) OldestCompletedSegments(ctx context.Context, limit int) ([]*Segment, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + segmentColumns + ` FROM video_segments
        WHERE status = ? ORDER BY created_at LIMIT ?`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("oldest completed segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

func scanSegment(sc scanner) (*Segment, error) {
	var (
		id               int64
		uid              string
		cameraID         string
		path             string
		statusStr        string
		startedRaw       sql.NullString
		endedRaw         sql.NullString
		frameCount       sql.NullInt64
		byteSize         sql.NullInt64
		width            sql.NullInt64
		height           sql.NullInt64
		errorMessage     sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		analysisJSON     sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := sc.Scan(
		&id,
		&uid,
		&cameraID,
		&path,
		&statusStr,
		&startedRaw,
		&endedRaw,
		&frameCount,
		&byteSize,
		&width,
		&height,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&analysisJSON,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	seg := &Segment{
		ID:              id,
		UID:             uid,
		CameraID:        cameraID,
		Path:            path,
		Status:          Status(statusStr),
		FrameCount:      frameCount.Int64,
		ByteSize:        byteSize.Int64,
		Width:           int(width.Int64),
		Height:          int(height.Int64),
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		AnalysisJSON:    analysisJSON.String,
		ReviewReason:    reviewReason.String,
	}
	if needsReview.Valid {
		seg.NeedsReview = needsReview.Int64 != 0
	}

	if started, err := parseTimeString(startedRaw.String); err == nil {
		seg.StartedAt = started
	}
	if ended, err := parseTimeString(endedRaw.String); err == nil {
		seg.EndedAt = ended
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		seg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		seg.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			seg.LastHeartbeat = &heartbeat
		}
	}
	return seg, nil
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timestamp(t)
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	out := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		out += " AND " + clause
	}
	return out
}
