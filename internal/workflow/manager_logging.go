package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"argus/internal/logging"
	"argus/internal/services"
	"argus/internal/store"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	component := "workflow-" + string(lane.kind) + "-runner"
	return m.logger.With(logging.Args(logging.String(logging.FieldComponent, component))...)
}

// stageLogger scopes the manager logger to one stage execution: the stage
// name becomes the component, the context fields identify the segment, and
// configured per-stage level overrides apply.
func (m *Manager) stageLogger(ctx context.Context, ps pipelineStage) *slog.Logger {
	logger := m.logger.With(logging.Args(logging.String(logging.FieldComponent, ps.name))...)
	logger = logging.WithContext(ctx, logger)
	if level, ok := m.stageOverrideLevel(ps.name); ok {
		logger = logging.WithLevelOverride(logger, level)
	}
	return logger
}

func (m *Manager) stageOverrideLevel(name string) (slog.Level, bool) {
	if m.cfg == nil || len(m.cfg.Logging.StageOverrides) == 0 {
		return 0, false
	}
	raw, ok := m.cfg.Logging.StageOverrides[name]
	if !ok {
		return 0, false
	}
	return logging.ParseLevel(raw), true
}

// withStageContext stamps the execution context with the identifiers every
// downstream log line and service call carries.
func (m *Manager) withStageContext(ctx context.Context, lane *laneState, ps pipelineStage, seg *store.Segment) context.Context {
	ctx = services.WithSegmentID(ctx, seg.ID)
	ctx = services.WithCameraID(ctx, seg.CameraID)
	ctx = services.WithStage(ctx, ps.name)
	ctx = services.WithLane(ctx, string(lane.kind))
	return services.WithRequestID(ctx, uuid.NewString())
}

// deriveStageLabel turns a status into the label shown in progress output.
func deriveStageLabel(status store.Status) string {
	s := string(status)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
