package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"argus/internal/logging"
	"argus/internal/store"
)

// loggerAware is implemented by stage handlers that accept a scoped logger
// before execution.
type loggerAware interface {
	SetLogger(*slog.Logger)
}

// transitionToProcessing claims a segment for its stage: the status moves
// to the stage's processing value, progress resets, and the heartbeat
// starts ticking from now.
func (m *Manager) transitionToProcessing(ctx context.Context, ps pipelineStage, seg *store.Segment) error {
	now := time.Now().UTC()
	seg.Status = ps.processingStatus
	seg.SetProgress(deriveStageLabel(ps.processingStatus), "", 0)
	seg.ErrorMessage = ""
	seg.LastHeartbeat = &now
	return m.store.UpdateSegment(ctx, seg)
}

// executeStage runs a claimed segment through its stage handler and
// advances it to the stage's done status. Failures and interruptions are
// routed to the failure handlers.
func (m *Manager) executeStage(ctx context.Context, lane *laneState, ps pipelineStage, seg *store.Segment) {
	ctx = m.withStageContext(ctx, lane, ps, seg)
	logger := m.stageLogger(ctx, ps)
	if aware, ok := ps.handler.(loggerAware); ok {
		aware.SetLogger(logger)
	}

	started := time.Now()
	logger.Info("stage started", logging.Args(logging.String("status", string(seg.Status)))...)

	if err := ps.handler.Prepare(ctx, seg); err != nil {
		m.handleStageFailure(ctx, ps, seg, logger, err)
		return
	}
	if err := m.store.UpdateSegment(ctx, seg); err != nil {
		m.handleStageFailure(ctx, ps, seg, logger, err)
		return
	}

	execErr := m.executeWithHeartbeat(ctx, ps, seg, logger)
	if execErr != nil {
		if interrupted(ctx, execErr) {
			m.rollbackInterrupted(ctx, ps, seg, logger)
			return
		}
		m.handleStageFailure(ctx, ps, seg, logger, execErr)
		return
	}

	seg.Status = ps.doneStatus
	seg.SetProgress(deriveStageLabel(ps.doneStatus), "", 100)
	seg.LastHeartbeat = nil
	if err := m.store.UpdateSegment(ctx, seg); err != nil {
		m.handleStageFailure(ctx, ps, seg, logger, err)
		return
	}

	logger.Info("stage complete",
		logging.Args(
			logging.String("status", string(seg.Status)),
			logging.Duration("stage_duration", time.Since(started)),
		)...)
	m.setLastSegment(seg)
}

// executeWithHeartbeat runs the stage handler while refreshing the
// segment's heartbeat every monitor interval. It returns the handler's
// error, or the context error when cancellation beat the handler to it.
func (m *Manager) executeWithHeartbeat(ctx context.Context, ps pipelineStage, seg *store.Segment, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() {
		done <- ps.handler.Execute(ctx, seg)
	}()

	ticker := time.NewTicker(m.heartbeat.Interval())
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, seg.ID); err != nil && ctx.Err() == nil {
				logger.Warn("heartbeat update failed", logging.Args(logging.Error(err))...)
			}
		case <-ctx.Done():
			// The handler shares this context; wait for it to unwind.
			err := <-done
			if err == nil {
				err = ctx.Err()
			}
			return err
		}
	}
}

// quarantineUnroutable parks a segment no registered stage can claim. This
// guards against a claim/registration mismatch turning into a hot loop.
func (m *Manager) quarantineUnroutable(ctx context.Context, seg *store.Segment, logger *slog.Logger) {
	reason := "no stage registered for status " + string(seg.Status)
	seg.Status = store.StatusReview
	seg.NeedsReview = true
	seg.ReviewReason = reason
	seg.SetProgress("Review", seg.ReviewReason, 0)
	seg.LastHeartbeat = nil
	if err := m.store.UpdateSegment(context.WithoutCancel(ctx), seg); err != nil {
		logger.Error("quarantine update failed", logging.Args(logging.Error(err))...)
		return
	}
	logger.Warn("segment routed to review",
		logging.Args(
			logging.Int64(logging.FieldSegmentID, seg.ID),
			logging.String("reason", seg.ReviewReason),
		)...)
}

// interrupted reports whether the stage error is cancellation fallout
// rather than a real failure.
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
