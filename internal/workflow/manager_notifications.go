package workflow

import (
	"context"

	"argus/internal/logging"
	"argus/internal/store"
)

// notifyStageError pushes a stage failure to the operator channel. Queue
// state already records the failure, so delivery errors only warn.
func (m *Manager) notifyStageError(ctx context.Context, ps pipelineStage, seg *store.Segment, execErr error) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyStageError(ctx, ps.name, seg.ID, seg.CameraID, execErr); err != nil {
		m.logger.Warn("stage error notification failed",
			logging.Args(
				logging.Error(err),
				logging.String(logging.FieldStage, ps.name),
			)...)
	}
	if seg.Status == store.StatusReview {
		if err := m.notifier.NotifyReviewRequired(ctx, seg.UID, seg.CameraID, seg.ReviewReason); err != nil {
			m.logger.Warn("review notification failed", logging.Args(logging.Error(err))...)
		}
	}
}
