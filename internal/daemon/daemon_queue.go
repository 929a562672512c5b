package daemon

import (
	"context"
	"errors"

	"argus/internal/fileutil"
	"argus/internal/logging"
	"argus/internal/store"
)

var errStoreUnavailable = errors.New("segment store unavailable")

// ListSegments returns segments filtered by optional statuses.
func (d *Daemon) ListSegments(ctx context.Context, filter store.SegmentFilter) ([]*store.Segment, error) {
	if d.store == nil {
		return nil, errStoreUnavailable
	}
	return d.store.ListSegments(ctx, filter)
}

// GetSegment returns a single segment by id, or nil when absent.
func (d *Daemon) GetSegment(ctx context.Context, id int64) (*store.Segment, error) {
	if d.store == nil {
		return nil, errStoreUnavailable
	}
	return d.store.SegmentByID(ctx, id)
}

// ClearQueue removes all segment rows and their recording files.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errStoreUnavailable
	}
	d.removeSegmentFiles(ctx, store.AllStatuses()...)
	return d.store.ClearSegments(ctx)
}

// ClearCompleted removes only completed segments and their files.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errStoreUnavailable
	}
	d.removeSegmentFiles(ctx, store.StatusCompleted)
	return d.store.ClearCompletedSegments(ctx)
}

// ClearFailed removes only failed segments and their files.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errStoreUnavailable
	}
	d.removeSegmentFiles(ctx, store.StatusFailed)
	return d.store.ClearFailedSegments(ctx)
}

// removeSegmentFiles deletes recording files ahead of a row clear. Removal
// is best effort; a row without a file is harmless while a file without a
// row would leak disk until the janitor's watermark sweep.
func (d *Daemon) removeSegmentFiles(ctx context.Context, statuses ...store.Status) {
	segments, err := d.store.ListSegments(ctx, store.SegmentFilter{Statuses: statuses})
	if err != nil {
		d.logger.Warn("listing segments for file cleanup failed", logging.Error(err))
		return
	}
	for _, seg := range segments {
		if seg.Path == "" {
			continue
		}
		if _, err := fileutil.RemoveFile(seg.Path); err != nil {
			d.logger.Debug("segment file removal failed",
				logging.Int64(logging.FieldSegmentID, seg.ID),
				logging.Error(err))
		}
	}
}

// ResetStuck transitions in-flight segments back to their stage start.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errStoreUnavailable
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed segments (optionally a subset) back to recorded.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errStoreUnavailable
	}
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (store.HealthSummary, error) {
	if d.store == nil {
		return store.HealthSummary{}, errStoreUnavailable
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	if d.store == nil {
		return store.DatabaseHealth{}, errStoreUnavailable
	}
	return d.store.CheckHealth(ctx)
}

// QueryMetrics runs a bucketed aggregation over the metrics timeseries.
func (d *Daemon) QueryMetrics(ctx context.Context, q store.MetricQuery) ([]store.MetricBucket, error) {
	if d.store == nil {
		return nil, errStoreUnavailable
	}
	return d.store.QueryMetrics(ctx, q)
}
