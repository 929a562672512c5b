package metrics

import (
	"context"
	"testing"

	"argus/internal/store"
	"argus/internal/testsupport"
)

func TestSampleOnceWritesQueueGauges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "front", "rtsp://example/front")
	testsupport.NewSegment(t, st, cam.ID, "/tmp/a.mjpeg")
	testsupport.NewSegment(t, st, cam.ID, "/tmp/b.mjpeg")

	sampler := NewSampler(cfg, st, nil, nil)
	if err := sampler.SampleOnce(context.Background()); err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}

	point, err := st.LatestMetric(context.Background(), "queue_recorded")
	if err != nil {
		t.Fatalf("LatestMetric: %v", err)
	}
	if point == nil || point.Value != 2 {
		t.Fatalf("queue_recorded = %+v, want value 2", point)
	}
}

func TestSampleOnceIncludesRegisteredSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	sampler := NewSampler(cfg, st, nil, nil)
	sampler.Register(SourceFunc(func(context.Context) []store.MetricPoint {
		return []store.MetricPoint{{Name: "analysis_workers", Value: 3}}
	}))
	if err := sampler.SampleOnce(context.Background()); err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}

	point, err := st.LatestMetric(context.Background(), "analysis_workers")
	if err != nil {
		t.Fatalf("LatestMetric: %v", err)
	}
	if point == nil || point.Value != 3 {
		t.Fatalf("analysis_workers = %+v, want value 3", point)
	}
}

func TestSampleOnceWritesAlertGauges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "back", "rtsp://example/back")

	ctx := context.Background()
	if _, err := st.InsertAlert(ctx, &store.Alert{
		CameraID: cam.ID,
		Severity: store.SeverityWarning,
		Status:   store.AlertPending,
		Title:    "Person on Back",
	}); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	sampler := NewSampler(cfg, st, nil, nil)
	if err := sampler.SampleOnce(ctx); err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}

	point, err := st.LatestMetric(ctx, "alerts_pending")
	if err != nil {
		t.Fatalf("LatestMetric: %v", err)
	}
	if point == nil || point.Value != 1 {
		t.Fatalf("alerts_pending = %+v, want value 1", point)
	}
}
