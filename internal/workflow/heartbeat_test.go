package workflow_test

import (
	"context"
	"testing"
	"time"

	"argus/internal/logging"
	"argus/internal/store"
	"argus/internal/testsupport"
	"argus/internal/workflow"
)

func setHeartbeat(t *testing.T, st *store.Store, seg *store.Segment, status store.Status, at time.Time) {
	t.Helper()
	seg.Status = status
	seg.LastHeartbeat = &at
	if err := st.UpdateSegment(context.Background(), seg); err != nil {
		t.Fatalf("UpdateSegment: %v", err)
	}
}

func TestHeartbeatMonitorReclaimsStaleSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "yard", "rtsp://127.0.0.1/yard")

	stale := testsupport.NewSegment(t, st, cam.ID, "/tmp/yard-0001.mjpeg")
	setHeartbeat(t, st, stale, store.StatusAnalyzing, time.Now().UTC().Add(-10*time.Minute))

	fresh := testsupport.NewSegment(t, st, cam.ID, "/tmp/yard-0002.mjpeg")
	setHeartbeat(t, st, fresh, store.StatusEvaluating, time.Now().UTC())

	monitor := workflow.NewHeartbeatMonitor(st, logging.NewNop(), time.Second, time.Minute)
	reclaimed, err := monitor.ReclaimStaleSegments(context.Background())
	if err != nil {
		t.Fatalf("ReclaimStaleSegments: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	got, err := st.SegmentByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("SegmentByID: %v", err)
	}
	if got.Status != store.StatusRecorded {
		t.Errorf("stale segment status = %q, want recorded", got.Status)
	}
	if got.LastHeartbeat != nil {
		t.Errorf("stale segment heartbeat = %v, want cleared", got.LastHeartbeat)
	}

	untouched, err := st.SegmentByID(context.Background(), fresh.ID)
	if err != nil {
		t.Fatalf("SegmentByID: %v", err)
	}
	if untouched.Status != store.StatusEvaluating {
		t.Errorf("fresh segment status = %q, want evaluating", untouched.Status)
	}
}

func TestHeartbeatMonitorRollsBackToStageStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "gate", "rtsp://127.0.0.1/gate")

	old := time.Now().UTC().Add(-time.Hour)
	cases := map[store.Status]store.Status{
		store.StatusAnalyzing:   store.StatusRecorded,
		store.StatusEvaluating:  store.StatusAnalyzed,
		store.StatusDispatching: store.StatusEvaluated,
	}
	ids := make(map[store.Status]int64, len(cases))
	for processing := range cases {
		seg := testsupport.NewSegment(t, st, cam.ID, "/tmp/gate.mjpeg")
		setHeartbeat(t, st, seg, processing, old)
		ids[processing] = seg.ID
	}

	monitor := workflow.NewHeartbeatMonitor(st, logging.NewNop(), time.Second, time.Minute)
	reclaimed, err := monitor.ReclaimStaleSegments(context.Background())
	if err != nil {
		t.Fatalf("ReclaimStaleSegments: %v", err)
	}
	if reclaimed != int64(len(cases)) {
		t.Fatalf("reclaimed = %d, want %d", reclaimed, len(cases))
	}

	for processing, want := range cases {
		seg, err := st.SegmentByID(context.Background(), ids[processing])
		if err != nil {
			t.Fatalf("SegmentByID: %v", err)
		}
		if seg.Status != want {
			t.Errorf("%s rolled back to %q, want %q", processing, seg.Status, want)
		}
	}
}

func TestNewHeartbeatMonitorStretchesShortTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	monitor := workflow.NewHeartbeatMonitor(st, logging.NewNop(), 30*time.Second, 10*time.Second)
	if got := monitor.Timeout(); got != 2*time.Minute {
		t.Errorf("Timeout = %v, want interval*4", got)
	}
	if got := monitor.Interval(); got != 30*time.Second {
		t.Errorf("Interval = %v", got)
	}

	defaulted := workflow.NewHeartbeatMonitor(st, logging.NewNop(), 0, 0)
	if got := defaulted.Interval(); got != 30*time.Second {
		t.Errorf("default Interval = %v, want 30s", got)
	}
	if got := defaulted.Timeout(); got != 2*time.Minute {
		t.Errorf("default Timeout = %v, want 2m", got)
	}
}
