package workflow

import (
	"context"
	"log/slog"
	"strings"

	"argus/internal/logging"
	"argus/internal/services"
	"argus/internal/store"
)

// handleStageFailure records a stage error on the segment. Validation,
// configuration, and not-found errors park the segment for manual review;
// everything else marks it failed so a retry can pick it up. Store writes
// here survive shutdown cancellation so the failure is never lost.
func (m *Manager) handleStageFailure(ctx context.Context, ps pipelineStage, seg *store.Segment, logger *slog.Logger, execErr error) {
	message := failureMessage(execErr)
	status := services.FailureStatus(execErr)

	if status == store.StatusReview {
		seg.Status = store.StatusReview
		seg.NeedsReview = true
		seg.ReviewReason = message
		seg.ErrorMessage = message
		seg.SetProgress("Review", message, 0)
		seg.LastHeartbeat = nil
	} else {
		seg.SetFailed(message)
	}

	writeCtx := context.WithoutCancel(ctx)
	if err := m.store.UpdateSegment(writeCtx, seg); err != nil {
		logger.Error("failure update failed",
			logging.Args(
				logging.Error(err),
				logging.String("original_error", message),
			)...)
	}

	m.setLastError(execErr)
	hint := "retry with 'argus queue retry'"
	if status == store.StatusReview {
		hint = "inspect the segment, then retry or clear it"
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_error",
		logging.Error(execErr),
		logging.String("status", string(seg.Status)),
		logging.String(logging.FieldErrorHint, hint),
	)
	m.notifyStageError(writeCtx, ps, seg, execErr)
}

// rollbackInterrupted returns a segment to the start of its stage after a
// shutdown interrupted execution. The segment is re-claimed on the next
// daemon run.
func (m *Manager) rollbackInterrupted(ctx context.Context, ps pipelineStage, seg *store.Segment, logger *slog.Logger) {
	seg.Status = ps.startStatus
	seg.SetProgress(deriveStageLabel(ps.startStatus), "Interrupted by shutdown", 0)
	seg.ErrorMessage = ""
	seg.LastHeartbeat = nil
	if err := m.store.UpdateSegment(context.WithoutCancel(ctx), seg); err != nil {
		logger.Error("interrupt rollback failed", logging.Args(logging.Error(err))...)
		return
	}
	logger.Info("stage interrupted",
		logging.Args(logging.String("status", string(seg.Status)))...)
}

func failureMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "unknown error"
	}
	return message
}
