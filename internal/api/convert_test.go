package api

import (
	"testing"
	"time"

	"argus/internal/stage"
	"argus/internal/store"
	"argus/internal/workflow"
)

func TestFromSegmentPopulatesTransportFields(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seg := &store.Segment{
		ID:              7,
		UID:             "seg-7",
		CameraID:        "cam-1",
		Path:            "/data/segments/front/seg.mjpeg",
		Status:          store.StatusRecorded,
		StartedAt:       started,
		EndedAt:         started.Add(time.Minute),
		FrameCount:      300,
		ByteSize:        1 << 20,
		ProgressStage:   "Recorded",
		ProgressPercent: 0,
		AnalysisJSON:    `{"motion":{"frames":3}}`,
		CreatedAt:       started,
		UpdatedAt:       started,
	}

	dto := FromSegment(seg)
	if dto.ID != 7 || dto.UID != "seg-7" {
		t.Fatalf("unexpected identity fields: %+v", dto)
	}
	if dto.Status != "recorded" {
		t.Errorf("Status = %q", dto.Status)
	}
	if dto.ProcessingLane != string(store.LaneAnalysis) {
		t.Errorf("ProcessingLane = %q", dto.ProcessingLane)
	}
	if dto.DurationSeconds != 60 {
		t.Errorf("DurationSeconds = %v", dto.DurationSeconds)
	}
	if string(dto.Analysis) != `{"motion":{"frames":3}}` {
		t.Errorf("Analysis = %s", dto.Analysis)
	}
	if dto.StartedAt == "" || dto.CreatedAt == "" {
		t.Errorf("expected formatted timestamps, got %+v", dto)
	}
}

func TestFromSegmentNilInput(t *testing.T) {
	if dto := FromSegment(nil); dto.ID != 0 || dto.Status != "" {
		t.Fatalf("expected zero DTO, got %+v", dto)
	}
}

func TestFromEventDereferencesOptionalIDs(t *testing.T) {
	segID := int64(42)
	event := &store.Event{
		ID:         3,
		UID:        "evt-3",
		CameraID:   "cam-1",
		SegmentID:  &segID,
		Type:       store.EventObjectDetected,
		Label:      "person",
		Score:      0.91,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC),
		Objects: []store.EventObject{
			{Label: "person", Score: 0.91, X: 0.1, Y: 0.2, W: 0.3, H: 0.4},
		},
	}

	dto := FromEvent(event)
	if dto.SegmentID != 42 {
		t.Errorf("SegmentID = %d", dto.SegmentID)
	}
	if dto.Type != "object" {
		t.Errorf("Type = %q", dto.Type)
	}
	if len(dto.Objects) != 1 || dto.Objects[0].W != 0.3 {
		t.Errorf("Objects = %+v", dto.Objects)
	}
}

func TestFromAlertOmitsUnsetPointers(t *testing.T) {
	alert := &store.Alert{
		ID:       5,
		UID:      "alert-5",
		CameraID: "cam-1",
		Severity: store.SeverityCritical,
		Status:   store.AlertPending,
		Title:    "Person detected",
	}

	dto := FromAlert(alert)
	if dto.RuleID != 0 || dto.EventID != 0 {
		t.Errorf("expected zero optional ids, got %+v", dto)
	}
	if dto.DispatchedAt != "" {
		t.Errorf("DispatchedAt = %q", dto.DispatchedAt)
	}

	ruleID := int64(9)
	dispatched := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	alert.RuleID = &ruleID
	alert.DispatchedAt = &dispatched
	dto = FromAlert(alert)
	if dto.RuleID != 9 || dto.DispatchedAt == "" {
		t.Errorf("expected populated pointers, got %+v", dto)
	}
}

func TestFromStatusSummaryOrdersStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running: true,
		Workers: 3,
		QueueStats: map[store.Status]int{
			store.StatusRecorded: 2,
		},
		StageHealth: map[string]stage.Health{
			"dispatcher": {Name: "dispatcher", Ready: true},
			"analyzer":   {Name: "analyzer", Ready: false, Detail: "model missing"},
		},
		LastSegment: &store.Segment{ID: 11, Status: store.StatusCompleted},
	}

	wf := FromStatusSummary(summary)
	if !wf.Running || wf.Workers != 3 {
		t.Fatalf("unexpected workflow status: %+v", wf)
	}
	if wf.QueueStats["recorded"] != 2 {
		t.Errorf("QueueStats = %v", wf.QueueStats)
	}
	if len(wf.StageHealth) != 2 || wf.StageHealth[0].Name != "analyzer" {
		t.Errorf("StageHealth = %+v", wf.StageHealth)
	}
	if wf.LastSegment == nil || wf.LastSegment.ID != 11 {
		t.Errorf("LastSegment = %+v", wf.LastSegment)
	}
}

func TestMergeQueueStatsFillsKnownStatuses(t *testing.T) {
	merged := MergeQueueStats(map[store.Status]int{store.StatusFailed: 4})
	if merged["failed"] != 4 {
		t.Errorf("failed = %d", merged["failed"])
	}
	if _, ok := merged["recorded"]; !ok {
		t.Errorf("expected recorded key, got %v", merged)
	}
	if len(merged) != len(store.AllStatuses()) {
		t.Errorf("expected %d keys, got %d", len(store.AllStatuses()), len(merged))
	}
}

func TestSortSegmentsNewestFirst(t *testing.T) {
	segments := []Segment{
		{ID: 1, CreatedAt: "2026-03-01T10:00:00.000Z"},
		{ID: 3, CreatedAt: "2026-03-01T12:00:00.000Z"},
		{ID: 2, CreatedAt: "2026-03-01T12:00:00.000Z"},
	}
	sorted := SortSegmentsNewestFirst(segments)
	if sorted[0].ID != 3 || sorted[1].ID != 2 || sorted[2].ID != 1 {
		t.Fatalf("unexpected order: %+v", sorted)
	}
}
