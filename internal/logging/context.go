package logging

import (
	"context"
	"log/slog"

	"argus/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSegmentID is the standardized structured logging key for video segment identifiers.
	FieldSegmentID = "segment_id"
	// FieldCameraID is the standardized structured logging key for camera identifiers.
	FieldCameraID = "camera_id"
	// FieldStage is the standardized structured logging key for workflow stage names.
	FieldStage = "stage"
	// FieldLane is the standardized structured logging key for workflow lane names.
	FieldLane = "lane"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType is the standardized key for machine-readable event classification.
	FieldEventType = "event_type"
	// FieldErrorCode is the standardized key for stable error identifiers.
	FieldErrorCode = "error_code"
	// FieldErrorHint is the standardized key for operator-facing remediation hints.
	FieldErrorHint = "error_hint"
	// FieldDecisionType is the standardized key for rule and scaling decision classification.
	FieldDecisionType = "decision_type"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.SegmentIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldSegmentID, id))
	}
	if camera, ok := services.CameraIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCameraID, camera))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if lane, ok := services.LaneFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLane, lane))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
