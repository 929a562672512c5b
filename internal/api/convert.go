package api

import (
	"encoding/json"
	"slices"
	"time"

	"argus/internal/deps"
	"argus/internal/ingest"
	"argus/internal/logging"
	"argus/internal/store"
	"argus/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromSegment converts a segment record to its API representation.
func FromSegment(seg *store.Segment) Segment {
	if seg == nil {
		return Segment{}
	}
	dto := Segment{
		ID:             seg.ID,
		UID:            seg.UID,
		CameraID:       seg.CameraID,
		Path:           seg.Path,
		Status:         string(seg.Status),
		ProcessingLane: string(store.LaneForSegment(seg)),
		Progress: SegmentProgress{
			Stage:   seg.ProgressStage,
			Percent: seg.ProgressPercent,
			Message: seg.ProgressMessage,
		},
		ErrorMessage:    seg.ErrorMessage,
		StartedAt:       formatTime(seg.StartedAt),
		EndedAt:         formatTime(seg.EndedAt),
		DurationSeconds: seg.Duration().Seconds(),
		FrameCount:      seg.FrameCount,
		ByteSize:        seg.ByteSize,
		Width:           seg.Width,
		Height:          seg.Height,
		NeedsReview:     seg.NeedsReview,
		ReviewReason:    seg.ReviewReason,
		CreatedAt:       formatTime(seg.CreatedAt),
		UpdatedAt:       formatTime(seg.UpdatedAt),
	}
	if raw := seg.AnalysisJSON; raw != "" {
		dto.Analysis = json.RawMessage(raw)
	}
	return dto
}

// FromSegments converts a slice of segment records into API DTOs.
func FromSegments(segments []*store.Segment) []Segment {
	if len(segments) == 0 {
		return nil
	}
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, FromSegment(seg))
	}
	return out
}

// FromCamera converts a camera record to its API representation.
func FromCamera(cam *store.Camera) Camera {
	if cam == nil {
		return Camera{}
	}
	return Camera{
		ID:            cam.ID,
		Name:          cam.Name,
		Location:      cam.Location,
		StreamURL:     cam.StreamURL,
		Enabled:       cam.Enabled,
		RetentionDays: cam.RetentionDays,
		State:         string(cam.State),
		StateDetail:   cam.StateDetail,
		LastSeenAt:    formatTimePtr(cam.LastSeenAt),
		CreatedAt:     formatTime(cam.CreatedAt),
		UpdatedAt:     formatTime(cam.UpdatedAt),
	}
}

// FromCameras converts a slice of camera records into API DTOs.
func FromCameras(cameras []*store.Camera) []Camera {
	if len(cameras) == 0 {
		return nil
	}
	out := make([]Camera, 0, len(cameras))
	for _, cam := range cameras {
		out = append(out, FromCamera(cam))
	}
	return out
}

// FromEvent converts an event record, including any attached objects.
func FromEvent(event *store.Event) Event {
	if event == nil {
		return Event{}
	}
	dto := Event{
		ID:         event.ID,
		UID:        event.UID,
		CameraID:   event.CameraID,
		Type:       string(event.Type),
		Label:      event.Label,
		Score:      event.Score,
		FrameIndex: event.FrameIndex,
		OccurredAt: formatTime(event.OccurredAt),
		CreatedAt:  formatTime(event.CreatedAt),
	}
	if event.SegmentID != nil {
		dto.SegmentID = *event.SegmentID
	}
	if raw := event.MetadataJSON; raw != "" {
		dto.Metadata = json.RawMessage(raw)
	}
	if len(event.Objects) > 0 {
		dto.Objects = make([]EventObject, 0, len(event.Objects))
		for _, obj := range event.Objects {
			dto.Objects = append(dto.Objects, EventObject{
				Label: obj.Label,
				Score: obj.Score,
				X:     obj.X,
				Y:     obj.Y,
				W:     obj.W,
				H:     obj.H,
			})
		}
	}
	return dto
}

// FromEvents converts a slice of event records into API DTOs.
func FromEvents(events []*store.Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(events))
	for _, event := range events {
		out = append(out, FromEvent(event))
	}
	return out
}

// FromAlert converts an alert record to its API representation.
func FromAlert(alert *store.Alert) Alert {
	if alert == nil {
		return Alert{}
	}
	dto := Alert{
		ID:             alert.ID,
		UID:            alert.UID,
		CameraID:       alert.CameraID,
		Severity:       string(alert.Severity),
		Status:         string(alert.Status),
		Title:          alert.Title,
		Message:        alert.Message,
		DedupKey:       alert.DedupKey,
		DispatchedAt:   formatTimePtr(alert.DispatchedAt),
		AcknowledgedAt: formatTimePtr(alert.AcknowledgedAt),
		AcknowledgedBy: alert.AcknowledgedBy,
		DeliveryError:  alert.DeliveryError,
		CreatedAt:      formatTime(alert.CreatedAt),
		UpdatedAt:      formatTime(alert.UpdatedAt),
	}
	if alert.RuleID != nil {
		dto.RuleID = *alert.RuleID
	}
	if alert.EventID != nil {
		dto.EventID = *alert.EventID
	}
	if raw := alert.ChannelsJSON; raw != "" {
		dto.Channels = json.RawMessage(raw)
	}
	return dto
}

// FromAlerts converts a slice of alert records into API DTOs.
func FromAlerts(alerts []*store.Alert) []Alert {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]Alert, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, FromAlert(alert))
	}
	return out
}

// FromRule converts a rule record to its API representation.
func FromRule(rule *store.Rule) Rule {
	if rule == nil {
		return Rule{}
	}
	dto := Rule{
		ID:              rule.ID,
		Name:            rule.Name,
		Enabled:         rule.Enabled,
		Priority:        rule.Priority,
		CameraID:        rule.CameraID,
		EventType:       rule.EventType,
		MinScore:        rule.MinScore,
		Severity:        string(rule.Severity),
		ThrottleSeconds: rule.ThrottleSeconds,
		QuietFrom:       rule.QuietFrom,
		QuietTo:         rule.QuietTo,
		CreatedAt:       formatTime(rule.CreatedAt),
		UpdatedAt:       formatTime(rule.UpdatedAt),
	}
	if raw := rule.ConditionsJSON; raw != "" {
		dto.Conditions = json.RawMessage(raw)
	}
	if raw := rule.ChannelsJSON; raw != "" {
		dto.Channels = json.RawMessage(raw)
	}
	return dto
}

// FromRules converts a slice of rule records into API DTOs.
func FromRules(rules []*store.Rule) []Rule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, FromRule(rule))
	}
	return out
}

// FromMetricBuckets converts aggregation buckets into API DTOs.
func FromMetricBuckets(buckets []store.MetricBucket) []MetricBucket {
	if len(buckets) == 0 {
		return nil
	}
	out := make([]MetricBucket, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, MetricBucket{
			Start: formatTime(bucket.Start),
			Min:   bucket.Min,
			Max:   bucket.Max,
			Avg:   bucket.Avg,
			Count: bucket.Count,
		})
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		QueueStats:  stats,
		StageHealth: StageHealthSlice(summary),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastSegment != nil {
		last := FromSegment(summary.LastSegment)
		wf.LastSegment = &last
	}
	return wf
}

// StageHealthSlice flattens the stage health map into deterministic order.
func StageHealthSlice(summary workflow.StatusSummary) []StageHealth {
	names := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		names = append(names, name)
	}
	slices.Sort(names)

	health := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := summary.StageHealth[name]
		health = append(health, StageHealth{
			Name:   name,
			Ready:  h.Ready,
			Detail: h.Detail,
		})
	}
	return health
}

// FromDependencyStatuses converts dependency check results into API DTOs.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FromIngestStats converts per-camera capture counters into API DTOs.
func FromIngestStats(stats []ingest.CameraStats) []IngestStatus {
	if len(stats) == 0 {
		return nil
	}
	out := make([]IngestStatus, 0, len(stats))
	for _, cs := range stats {
		out = append(out, IngestStatus{
			CameraID:      cs.CameraID,
			CameraName:    cs.CameraName,
			FramesWritten: cs.FramesWritten,
			FramesDropped: cs.FramesDropped,
			Segments:      cs.Segments,
		})
	}
	return out
}

// FromLogEvents converts hub log events into API DTOs.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		details := make([]DetailField, 0, len(evt.Details))
		for _, detail := range evt.Details {
			details = append(details, DetailField{
				Label: detail.Label,
				Value: detail.Value,
			})
		}
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: formatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Stage:     evt.Stage,
			SegmentID: evt.SegmentID,
			CameraID:  evt.CameraID,
			Lane:      evt.Lane,
			Fields:    evt.Fields,
			Details:   details,
		})
	}
	return out
}

// MergeQueueStats normalizes status keys so every known status is present.
func MergeQueueStats(stats map[store.Status]int) map[string]int {
	merged := make(map[string]int, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}
