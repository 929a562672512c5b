package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// rollbackQuery builds the stage rollback UPDATE shared by the startup reset
// and the heartbeat reclaim. Extra WHERE clauses and args are appended by
// callers.
func rollbackQuery(progressStage string) (string, []any) {
	query := `UPDATE video_segments
        SET status = CASE status`
	args := make([]any, 0, len(stageRollbackTransitions)*3+1)
	for _, tr := range stageRollbackTransitions {
		query += `
            WHEN ? THEN ?`
		args = append(args, tr.from, tr.to)
	}
	query += `
            ELSE status
        END,
            progress_stage = '` + progressStage + `',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(stageRollbackTransitions)) + `)`
	args = append(args, timestamp(time.Now().UTC()))
	for _, tr := range stageRollbackTransitions {
		args = append(args, tr.from)
	}
	return query, args
}

// ResetStuckProcessing resets segments in processing states back to the
// start of their current stage. Called once at daemon startup.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	query, args := rollbackQuery("Reset from stuck processing")
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck segments: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStaleProcessing returns segments stuck in processing back to the
// start of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args := rollbackQuery("Reclaimed from stale processing")
	query += ` AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`
	args = append(args, timestamp(cutoff))
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale segments: %w", err)
	}
	return res.RowsAffected()
}

// Health aggregates segment state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusRecorded:
			health.Recorded += count
		case StatusFailed:
			health.Failed += count
		case StatusReview:
			health.Review += count
		case StatusCompleted:
			health.Completed += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the segment database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: "current",
	}

	if s.path == "" {
		return health, errors.New("segment database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat segment database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("segment database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("segment database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping segment database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'video_segments'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(video_segments)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		expected := []string{
			"id",
			"segment_uid",
			"camera_id",
			"path",
			"status",
			"started_at",
			"ended_at",
			"frame_count",
			"byte_size",
			"width",
			"height",
			"error_message",
			"progress_stage",
			"progress_percent",
			"progress_message",
			"analysis_json",
			"last_heartbeat",
			"needs_review",
			"review_reason",
			"created_at",
			"updated_at",
		}
		missingMap := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missingMap[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missingMap, col)
		}
		for col := range missingMap {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM video_segments")
		if err := row.Scan(&health.TotalSegments); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count segments: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
