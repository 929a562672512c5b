package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const eventColumns = "id, event_uid, camera_id, segment_id, type, label, score, frame_index, occurred_at, metadata_json, created_at"

// InsertEvent stores an event together with its detected objects in one
// transaction. A UID is assigned when the caller did not provide one.
func (s *Store) InsertEvent(ctx context.Context, event *Event) (*Event, error) {
	if event == nil {
		return nil, errors.New("event is nil")
	}
	if event.CameraID == "" {
		return nil, errors.New("event camera id is required")
	}
	if event.UID == "" {
		event.UID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	now := time.Now().UTC()

	var eventID int64
	err := retryOnBusy(ensureContext(ctx), func() error {
		tx, err := s.db.BeginTx(ensureContext(ctx), nil)
		if err != nil {
			return fmt.Errorf("begin event tx: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(
			ensureContext(ctx),
			`INSERT INTO events (event_uid, camera_id, segment_id, type, label, score, frame_index, occurred_at, metadata_json, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.UID,
			event.CameraID,
			nullableInt64(event.SegmentID),
			event.Type,
			event.Label,
			event.Score,
			event.FrameIndex,
			timestamp(event.OccurredAt),
			nullableString(event.MetadataJSON),
			timestamp(now),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		eventID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("event insert id: %w", err)
		}

		for _, obj := range event.Objects {
			if _, err := tx.ExecContext(
				ensureContext(ctx),
				`INSERT INTO event_objects (event_id, label, score, x, y, w, h, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				eventID,
				obj.Label,
				obj.Score,
				obj.X,
				obj.Y,
				obj.W,
				obj.H,
				timestamp(now),
			); err != nil {
				return fmt.Errorf("insert event object: %w", err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return s.EventByID(ctx, eventID)
}

// EventByID fetches an event and its objects by identifier.
func (s *Store) EventByID(ctx context.Context, id int64) (*Event, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := s.attachObjects(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// EventByUID fetches an event and its objects by public UID.
func (s *Store) EventByUID(ctx context.Context, uid string) (*Event, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+eventColumns+` FROM events WHERE event_uid = ?`, uid)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event by uid: %w", err)
	}
	if err := s.attachObjects(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// EventFilter narrows ListEvents output.
type EventFilter struct {
	CameraID string
	Type     EventType
	Label    string
	MinScore float64
	Since    time.Time
	Until    time.Time
	Limit    int
	BeforeID int64
}

// ListEvents returns events newest-first without their objects attached.
// Callers needing boxes fetch individual events.
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var (
		clauses []string
		args    []any
	)
	if filter.CameraID != "" {
		clauses = append(clauses, "camera_id = ?")
		args = append(args, filter.CameraID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Label != "" {
		clauses = append(clauses, "label = ?")
		args = append(args, filter.Label)
	}
	if filter.MinScore > 0 {
		clauses = append(clauses, "score >= ?")
		args = append(args, filter.MinScore)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, timestamp(filter.Since))
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "occurred_at < ?")
		args = append(args, timestamp(filter.Until))
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
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// EventsForSegment returns every event produced from one segment, with
// objects attached, ordered by frame index.
func (s *Store) EventsForSegment(ctx context.Context, segmentID int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+eventColumns+` FROM events WHERE segment_id = ? ORDER BY frame_index, id`,
		segmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("events for segment: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, event := range events {
		if err := s.attachObjects(ctx, event); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// ObjectsForEvent returns the detected boxes for one event.
func (s *Store) ObjectsForEvent(ctx context.Context, eventID int64) ([]EventObject, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, event_id, label, score, x, y, w, h, created_at FROM event_objects WHERE event_id = ? ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("objects for event: %w", err)
	}
	defer rows.Close()

	var objects []EventObject
	for rows.Next() {
		var (
			obj        EventObject
			createdRaw sql.NullString
		)
		if err := rows.Scan(&obj.ID, &obj.EventID, &obj.Label, &obj.Score, &obj.X, &obj.Y, &obj.W, &obj.H, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			obj.CreatedAt = created
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// CountEventsSince returns how many events occurred at or after the cutoff.
func (s *Store) CountEventsSince(ctx context.Context, since time.Time) (int, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM events WHERE occurred_at >= ?`, timestamp(since))
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// PruneEventsBefore deletes events older than the cutoff. Their objects
// cascade away.
func (s *Store) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM events WHERE occurred_at < ?`, timestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) attachObjects(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	objects, err := s.ObjectsForEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	event.Objects = objects
	return nil
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		id          int64
		uid         string
		cameraID    string
		segmentID   sql.NullInt64
		typeStr     string
		label       string
		score       float64
		frameIndex  sql.NullInt64
		occurredRaw sql.NullString
		metadata    sql.NullString
		createdRaw  sql.NullString
	)

	if err := sc.Scan(
		&id,
		&uid,
		&cameraID,
		&segmentID,
		&typeStr,
		&label,
		&score,
		&frameIndex,
		&occurredRaw,
		&metadata,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	event := &Event{
		ID:           id,
		UID:          uid,
		CameraID:     cameraID,
		Type:         EventType(typeStr),
		Label:        label,
		Score:        score,
		FrameIndex:   int(frameIndex.Int64),
		MetadataJSON: metadata.String,
	}
	if segmentID.Valid {
		value := segmentID.Int64
		event.SegmentID = &value
	}
	if occurred, err := parseTimeString(occurredRaw.String); err == nil {
		event.OccurredAt = occurred
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		event.CreatedAt = created
	}
	return event, nil
}
