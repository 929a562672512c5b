package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCameraExists reports an insert that collides with an existing camera name.
var ErrCameraExists = errors.New("camera already exists")

const cameraColumns = "id, name, location, stream_url, enabled, retention_days, state, state_detail, last_seen_at, created_at, updated_at"

// AddCamera registers a camera. Names are unique; the generated identifier
// stays stable across later edits to the stream URL or location.
func (s *Store) AddCamera(ctx context.Context, cam *Camera) (*Camera, error) {
	if cam == nil {
		return nil, errors.New("camera is nil")
	}
	if strings.TrimSpace(cam.Name) == "" {
		return nil, errors.New("camera name is required")
	}
	if strings.TrimSpace(cam.StreamURL) == "" {
		return nil, errors.New("camera stream url is required")
	}
	if cam.ID == "" {
		cam.ID = uuid.NewString()
	}
	if cam.State == "" {
		cam.State = CameraOffline
	}
	now := time.Now().UTC()

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO cameras (id, name, location, stream_url, enabled, retention_days, state, state_detail, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cam.ID,
		cam.Name,
		nullableString(cam.Location),
		cam.StreamURL,
		boolToInt(cam.Enabled),
		cam.RetentionDays,
		cam.State,
		nullableString(cam.StateDetail),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCameraExists, cam.Name)
		}
		return nil, fmt.Errorf("insert camera: %w", err)
	}
	return s.CameraByID(ctx, cam.ID)
}

// CameraByID fetches a camera by identifier.
func (s *Store) CameraByID(ctx context.Context, id string) (*Camera, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id)
	cam, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get camera: %w", err)
	}
	return cam, nil
}

// CameraByName fetches a camera by its unique name.
func (s *Store) CameraByName(ctx context.Context, name string) (*Camera, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+cameraColumns+` FROM cameras WHERE name = ?`, name)
	cam, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get camera by name: %w", err)
	}
	return cam, nil
}

// ListCameras returns every camera ordered by name.
func (s *Store) ListCameras(ctx context.Context) ([]*Camera, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+cameraColumns+` FROM cameras ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, cam)
	}
	return cameras, rows.Err()
}

// UpdateCamera persists changes to an existing camera.
func (s *Store) UpdateCamera(ctx context.Context, cam *Camera) error {
	if cam == nil {
		return errors.New("camera is nil")
	}
	cam.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE cameras
         SET name = ?, location = ?, stream_url = ?, enabled = ?, retention_days = ?,
             state = ?, state_detail = ?, last_seen_at = ?, updated_at = ?
         WHERE id = ?`,
		cam.Name,
		nullableString(cam.Location),
		cam.StreamURL,
		boolToInt(cam.Enabled),
		cam.RetentionDays,
		cam.State,
		nullableString(cam.StateDetail),
		nullableTime(cam.LastSeenAt),
		timestamp(cam.UpdatedAt),
		cam.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCameraExists, cam.Name)
		}
		return fmt.Errorf("update camera: %w", err)
	}
	return nil
}

// RemoveCamera deletes a camera. Segments referencing it cascade away.
func (s *Store) RemoveCamera(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM cameras WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete camera: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetCameraEnabled toggles whether the ingest manager runs the camera.
func (s *Store) SetCameraEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE cameras SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set camera enabled: %w", err)
	}
	return nil
}

// SetCameraState records the connection state reported by the ingest handler.
// Detail carries the degraded or connecting reason and may be empty.
func (s *Store) SetCameraState(ctx context.Context, id string, state CameraState, detail string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE cameras SET state = ?, state_detail = ?, updated_at = ? WHERE id = ?`,
		state,
		nullableString(detail),
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set camera state: %w", err)
	}
	return nil
}

// MarkCameraSeen updates the liveness timestamp after a frame arrives.
func (s *Store) MarkCameraSeen(ctx context.Context, id string, at time.Time) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE cameras SET last_seen_at = ?, updated_at = ? WHERE id = ?`,
		timestamp(at),
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark camera seen: %w", err)
	}
	return nil
}

// UpsertCameraByName seeds a camera from configuration. Existing rows keep
// their identifier and runtime state; stream URL, location, enabled flag and
// retention follow the configuration.
func (s *Store) UpsertCameraByName(ctx context.Context, cam *Camera) (*Camera, error) {
	if cam == nil {
		return nil, errors.New("camera is nil")
	}
	existing, err := s.CameraByName(ctx, cam.Name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.AddCamera(ctx, cam)
	}
	existing.StreamURL = cam.StreamURL
	existing.Location = cam.Location
	existing.Enabled = cam.Enabled
	existing.RetentionDays = cam.RetentionDays
	if err := s.UpdateCamera(ctx, existing); err != nil {
		return nil, err
	}
	return s.CameraByID(ctx, existing.ID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanCamera(sc scanner) (*Camera, error) {
	var (
		id            string
		name          string
		location      sql.NullString
		streamURL     string
		enabled       sql.NullInt64
		retentionDays sql.NullInt64
		stateStr      string
		stateDetail   sql.NullString
		lastSeenRaw   sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := sc.Scan(
		&id,
		&name,
		&location,
		&streamURL,
		&enabled,
		&retentionDays,
		&stateStr,
		&stateDetail,
		&lastSeenRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	cam := &Camera{
		ID:            id,
		Name:          name,
		Location:      location.String,
		StreamURL:     streamURL,
		RetentionDays: int(retentionDays.Int64),
		State:         CameraState(stateStr),
		StateDetail:   stateDetail.String,
	}
	if enabled.Valid {
		cam.Enabled = enabled.Int64 != 0
	}
	if lastSeenRaw.Valid {
		if at, err := parseTimeString(lastSeenRaw.String); err == nil {
			cam.LastSeenAt = &at
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		cam.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		cam.UpdatedAt = updated
	}
	return cam, nil
}
