package store_test

import (
	"context"
	"testing"
	"time"

	"argus/internal/store"
	"argus/internal/testsupport"
)

func TestQueryMetricsBuckets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Minute)
	points := []store.MetricPoint{
		{Name: "queue_backlog", Value: 2, RecordedAt: base.Add(10 * time.Second)},
		{Name: "queue_backlog", Value: 6, RecordedAt: base.Add(40 * time.Second)},
		{Name: "queue_backlog", Value: 4, RecordedAt: base.Add(70 * time.Second)},
		{Name: "other", Value: 99, RecordedAt: base.Add(15 * time.Second)},
	}
	if err := st.RecordMetrics(ctx, points); err != nil {
		t.Fatalf("RecordMetrics failed: %v", err)
	}

	buckets, err := st.QueryMetrics(ctx, store.MetricQuery{
		Name: "queue_backlog",
		From: base,
		To:   base.Add(2 * time.Minute),
		Step: time.Minute,
	})
	if err != nil {
		t.Fatalf("QueryMetrics failed: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}

	first := buckets[0]
	if first.Count != 2 || first.Min != 2 || first.Max != 6 || first.Avg != 4 {
		t.Fatalf("unexpected first bucket: %#v", first)
	}
	second := buckets[1]
	if second.Count != 1 || second.Min != 4 || second.Max != 4 {
		t.Fatalf("unexpected second bucket: %#v", second)
	}
	if !second.Start.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected bucket start %v, got %v", base.Add(time.Minute), second.Start)
	}
}

func TestLatestMetric(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	if err := st.RecordMetric(ctx, store.MetricPoint{Name: "workers", Value: 1, RecordedAt: base}); err != nil {
		t.Fatalf("RecordMetric failed: %v", err)
	}
	if err := st.RecordMetric(ctx, store.MetricPoint{Name: "workers", Value: 3, RecordedAt: base.Add(30 * time.Second)}); err != nil {
		t.Fatalf("RecordMetric failed: %v", err)
	}

	latest, err := st.LatestMetric(ctx, "workers")
	if err != nil {
		t.Fatalf("LatestMetric failed: %v", err)
	}
	if latest == nil || latest.Value != 3 {
		t.Fatalf("expected latest value 3, got %#v", latest)
	}

	missing, err := st.LatestMetric(ctx, "unknown")
	if err != nil {
		t.Fatalf("LatestMetric failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown metric, got %#v", missing)
	}
}

func TestPruneMetricsBefore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := st.RecordMetric(ctx, store.MetricPoint{Name: "events_total", Value: 1, RecordedAt: time.Now().UTC().Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("RecordMetric failed: %v", err)
	}
	if err := st.RecordMetric(ctx, store.MetricPoint{Name: "events_total", Value: 2}); err != nil {
		t.Fatalf("RecordMetric failed: %v", err)
	}

	pruned, err := st.PruneMetricsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneMetricsBefore failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 sample pruned, got %d", pruned)
	}

	latest, err := st.LatestMetric(ctx, "events_total")
	if err != nil {
		t.Fatalf("LatestMetric failed: %v", err)
	}
	if latest == nil || latest.Value != 2 {
		t.Fatalf("expected recent sample kept, got %#v", latest)
	}
}

func TestRecordAnalyticsAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cam := testsupport.SeedCamera(t, st, "porch", "rtsp://example/porch")
	if err := st.RecordAnalytics(ctx, "camera_degraded", cam.ID, `{"reason":"connect refused"}`); err != nil {
		t.Fatalf("RecordAnalytics failed: %v", err)
	}
	if err := st.RecordAnalytics(ctx, "workers_resized", "", `{"from":1,"to":2}`); err != nil {
		t.Fatalf("RecordAnalytics failed: %v", err)
	}

	all, err := st.ListAnalytics(ctx, store.AnalyticsFilter{})
	if err != nil {
		t.Fatalf("ListAnalytics failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}

	byKind, err := st.ListAnalytics(ctx, store.AnalyticsFilter{Kind: "camera_degraded"})
	if err != nil {
		t.Fatalf("ListAnalytics failed: %v", err)
	}
	if len(byKind) != 1 || byKind[0].CameraID != cam.ID {
		t.Fatalf("unexpected filtered entries: %#v", byKind)
	}
}
