package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"argus/internal/config"
	"argus/internal/fileutil"
	"argus/internal/logging"
	"argus/internal/notify"
	"argus/internal/store"
)

// diskUsage reports free and total bytes on the filesystem holding path.
type diskUsage func(path string) (free, total uint64, err error)

func statfsUsage(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	blockSize := uint64(stat.Bsize)
	return stat.Bavail * blockSize, stat.Blocks * blockSize, nil
}

// watermarkBatch bounds how many segments one pressure iteration deletes
// before free space is re-measured.
const watermarkBatch = 25

// SweepResult summarizes one retention pass.
type SweepResult struct {
	SegmentsPruned  int
	BytesFreed      int64
	EventsPruned    int64
	AlertsPruned    int64
	AnalyticsRows   int64
	MetricRows      int64
	PressureDeletes int
	PressureBytes   int64
	FreePercent     float64
}

// Janitor prunes aged rows and segment files, and enforces the free-disk
// watermark on the segment filesystem. It is the only component that
// deletes data by age; explicit operator commands own the rest.
type Janitor struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notify.Service

	usage diskUsage
	now   func() time.Time
}

// NewJanitor builds the retention janitor.
func NewJanitor(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notify.Service) *Janitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Janitor{
		cfg:      cfg,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "retention"),
		notifier: notifier,
		usage:    statfsUsage,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until the context ends. The
// first sweep happens immediately so a daemon restarted after downtime
// catches up without waiting a full interval.
func (j *Janitor) Run(ctx context.Context, wg *sync.WaitGroup) {
	interval := time.Duration(j.cfg.Retention.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		j.logger.Info("retention janitor started",
			logging.Args(logging.Duration("sweep_interval", interval))...)
		j.sweepAndLog(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweepAndLog(ctx)
			}
		}
	}()
}

func (j *Janitor) sweepAndLog(ctx context.Context) {
	result, err := j.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		j.logger.Error("retention sweep failed", logging.Args(logging.Error(err))...)
		return
	}
	j.logger.Info("retention sweep complete",
		logging.Args(
			logging.Int("segments_pruned", result.SegmentsPruned),
			logging.Int64("bytes_freed", result.BytesFreed),
			logging.Int64("events_pruned", result.EventsPruned),
			logging.Int64("alerts_pruned", result.AlertsPruned),
			logging.Int("pressure_deletes", result.PressureDeletes),
			logging.Float64("free_percent", result.FreePercent),
		)...)
}

// Sweep runs one full retention pass: per-camera segment age pruning, row
// pruning for events/alerts/analytics/metrics, then the disk watermark.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := j.now().UTC()

	if err := j.pruneSegmentsByAge(ctx, now, &result); err != nil {
		return result, err
	}
	if err := j.pruneRows(ctx, now, &result); err != nil {
		return result, err
	}
	if err := j.enforceWatermark(ctx, &result); err != nil {
		return result, err
	}

	j.recordSweep(ctx, result)
	return result, nil
}

// pruneSegmentsByAge deletes segment files and rows older than the
// camera's retention, falling back to the global segment_days. A camera
// retention of zero inherits the global value; a global value of zero
// disables age pruning entirely.
func (j *Janitor) pruneSegmentsByAge(ctx context.Context, now time.Time, result *SweepResult) error {
	cameras, err := j.store.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	for _, cam := range cameras {
		days := cam.RetentionDays
		if days <= 0 {
			days = j.cfg.Retention.SegmentDays
		}
		if days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -days)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			segments, err := j.store.SegmentsEndedBefore(ctx, cam.ID, cutoff, watermarkBatch)
			if err != nil {
				return fmt.Errorf("aged segments for %s: %w", cam.Name, err)
			}
			if len(segments) == 0 {
				break
			}
			for _, seg := range segments {
				freed, err := j.deleteSegment(ctx, seg)
				if err != nil {
					return err
				}
				result.SegmentsPruned++
				result.BytesFreed += freed
			}
		}
	}
	return nil
}

func (j *Janitor) pruneRows(ctx context.Context, now time.Time, result *SweepResult) error {
	prune := func(days int, fn func(context.Context, time.Time) (int64, error), target *int64) error {
		if days <= 0 {
			return nil
		}
		n, err := fn(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		*target += n
		return nil
	}
	if err := prune(j.cfg.Retention.EventDays, j.store.PruneEventsBefore, &result.EventsPruned); err != nil {
		return fmt.Errorf("prune events: %w", err)
	}
	if err := prune(j.cfg.Retention.EventDays, j.store.PruneAlertsBefore, &result.AlertsPruned); err != nil {
		return fmt.Errorf("prune alerts: %w", err)
	}
	if err := prune(j.cfg.Retention.AnalyticsDays, j.store.PruneAnalyticsBefore, &result.AnalyticsRows); err != nil {
		return fmt.Errorf("prune analytics: %w", err)
	}
	if err := prune(j.cfg.Retention.MetricsDays, j.store.PruneMetricsBefore, &result.MetricRows); err != nil {
		return fmt.Errorf("prune metrics: %w", err)
	}
	return nil
}

// enforceWatermark deletes oldest completed segments while free space on
// the segment filesystem sits below the configured floor. In-flight
// segments are never touched; when only those remain the watermark stays
// breached and the operator is notified.
func (j *Janitor) enforceWatermark(ctx context.Context, result *SweepResult) error {
	minFree := j.cfg.Retention.MinFreePercent
	if minFree <= 0 {
		return nil
	}

	breached := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		free, total, err := j.usage(j.cfg.SegmentDir())
		if err != nil {
			return err
		}
		if total == 0 {
			return nil
		}
		result.FreePercent = float64(free) / float64(total) * 100
		if result.FreePercent >= minFree {
			break
		}
		breached = true

		segments, err := j.store.OldestCompletedSegments(ctx, watermarkBatch)
		if err != nil {
			return fmt.Errorf("oldest completed segments: %w", err)
		}
		if len(segments) == 0 {
			j.logger.Warn("disk watermark breached with nothing left to prune",
				logging.Args(
					logging.Float64("free_percent", result.FreePercent),
					logging.String(logging.FieldImpact, "segment recording may fail"),
				)...)
			break
		}
		for _, seg := range segments {
			freed, err := j.deleteSegment(ctx, seg)
			if err != nil {
				return err
			}
			result.PressureDeletes++
			result.PressureBytes += freed
			result.BytesFreed += freed
		}
	}

	if breached && j.notifier != nil {
		if err := j.notifier.NotifyDiskPressure(context.WithoutCancel(ctx), result.FreePercent, result.PressureBytes); err != nil {
			j.logger.Warn("disk pressure notification failed", logging.Args(logging.Error(err))...)
		}
	}
	return nil
}

// deleteSegment removes the file first, then the row, so a crash between
// the two leaves a row pointing at nothing rather than an orphaned file
// no sweep would ever find again.
func (j *Janitor) deleteSegment(ctx context.Context, seg *store.Segment) (int64, error) {
	freed, err := fileutil.RemoveFile(seg.Path)
	if err != nil {
		return 0, fmt.Errorf("remove segment file %s: %w", seg.Path, err)
	}
	if _, err := j.store.RemoveSegment(ctx, seg.ID); err != nil {
		return freed, fmt.Errorf("remove segment row %d: %w", seg.ID, err)
	}
	return freed, nil
}

func (j *Janitor) recordSweep(ctx context.Context, result SweepResult) {
	if result.SegmentsPruned == 0 && result.EventsPruned == 0 && result.AlertsPruned == 0 &&
		result.AnalyticsRows == 0 && result.MetricRows == 0 && result.PressureDeletes == 0 {
		return
	}
	detail, err := json.Marshal(map[string]any{
		"segments":         result.SegmentsPruned,
		"bytes":            result.BytesFreed,
		"events":           result.EventsPruned,
		"alerts":           result.AlertsPruned,
		"analytics":        result.AnalyticsRows,
		"metrics":          result.MetricRows,
		"pressure_deletes": result.PressureDeletes,
	})
	if err != nil {
		return
	}
	if err := j.store.RecordAnalytics(ctx, "retention_pruned", "", string(detail)); err != nil {
		j.logger.Warn("analytics write failed", logging.Args(logging.Error(err))...)
	}
}
