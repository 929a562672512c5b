package rules

import (
	"context"
	"testing"
	"time"

	"argus/internal/store"
	"argus/internal/testsupport"
)

func seedRule(t *testing.T, st *store.Store, rule store.Rule) *store.Rule {
	t.Helper()
	if rule.Severity == "" {
		rule.Severity = store.SeverityInfo
	}
	rule.Enabled = true
	saved, err := st.AddRule(context.Background(), &rule)
	if err != nil {
		t.Fatalf("AddRule %q failed: %v", rule.Name, err)
	}
	return saved
}

func seedEvent(t *testing.T, st *store.Store, seg *store.Segment, label string, score float64) *store.Event {
	t.Helper()
	event, err := st.InsertEvent(context.Background(), &store.Event{
		CameraID:  seg.CameraID,
		SegmentID: &seg.ID,
		Type:      store.EventObjectDetected,
		Label:     label,
		Score:     score,
	})
	if err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	return event
}

func TestEvaluatorFirstMatchWinsByPriority(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cam := testsupport.SeedCamera(t, st, "gate", "rtsp://example/gate")
	seg := testsupport.NewSegment(t, st, cam.ID, "/tmp/gate.mjpeg")
	seedEvent(t, st, seg, "person", 0.9)

	seedRule(t, st, store.Rule{Name: "catch-all", Priority: 1, Severity: store.SeverityInfo})
	high := seedRule(t, st, store.Rule{Name: "person-critical", Priority: 10, Severity: store.SeverityCritical,
		ConditionsJSON: `[{"path":"label","op":"eq","value":"person"}]`})

	ev := NewEvaluator(cfg, st, nil)
	if err := ev.Execute(ctx, seg); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	alerts, err := st.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert (first match wins), got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.RuleID == nil || *alert.RuleID != high.ID {
		t.Fatalf("expected the high-priority rule to win, got rule %v", alert.RuleID)
	}
	if alert.Severity != store.SeverityCritical {
		t.Fatalf("expected critical severity from the winning rule, got %s", alert.Severity)
	}
	if alert.Status != store.AlertPending {
		t.Fatalf("expected pending alert, got %s", alert.Status)
	}
	if alert.Title != "Person on gate" {
		t.Fatalf("unexpected alert title %q", alert.Title)
	}
	if alert.DedupKey != DedupKey(high.ID, cam.ID) {
		t.Fatalf("unexpected dedup key %q", alert.DedupKey)
	}
}

func TestEvaluatorThrottleSuppressesRepeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cam := testsupport.SeedCamera(t, st, "drive", "rtsp://example/drive")
	rule := seedRule(t, st, store.Rule{Name: "any-person", Severity: store.SeverityWarning, ThrottleSeconds: 600,
		ConditionsJSON: `[{"path":"label","op":"eq","value":"person"}]`})

	segA := testsupport.NewSegment(t, st, cam.ID, "/tmp/a.mjpeg")
	seedEvent(t, st, segA, "person", 0.9)
	segB := testsupport.NewSegment(t, st, cam.ID, "/tmp/b.mjpeg")
	seedEvent(t, st, segB, "person", 0.95)

	ev := NewEvaluator(cfg, st, nil)
	if err := ev.Execute(ctx, segA); err != nil {
		t.Fatalf("Execute segA failed: %v", err)
	}
	if err := ev.Execute(ctx, segB); err != nil {
		t.Fatalf("Execute segB failed: %v", err)
	}

	alerts, err := st.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected the second match throttled, got %d alerts", len(alerts))
	}

	audit, err := st.ListAnalytics(ctx, store.AnalyticsFilter{Kind: "rule_throttled"})
	if err != nil {
		t.Fatalf("ListAnalytics failed: %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("expected one rule_throttled audit row, got %d", len(audit))
	}

	// Outside the throttle window the rule fires again.
	ev.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	segC := testsupport.NewSegment(t, st, cam.ID, "/tmp/c.mjpeg")
	seedEvent(t, st, segC, "person", 0.9)
	if err := ev.Execute(ctx, segC); err != nil {
		t.Fatalf("Execute segC failed: %v", err)
	}
	alerts, err = st.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected a fresh alert after the window, got %d", len(alerts))
	}
	if alerts[0].RuleID == nil || *alerts[0].RuleID != rule.ID {
		t.Fatalf("unexpected rule on fresh alert: %v", alerts[0].RuleID)
	}
}

func TestEvaluatorNoEventsPassesThrough(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	cam := testsupport.SeedCamera(t, st, "idle", "rtsp://example/idle")
	seg := testsupport.NewSegment(t, st, cam.ID, "/tmp/idle.mjpeg")

	ev := NewEvaluator(cfg, st, nil)
	if err := ev.Execute(context.Background(), seg); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if seg.ProgressMessage != "no events" {
		t.Fatalf("expected pass-through progress, got %q", seg.ProgressMessage)
	}
}

func TestEvaluatorHealthFlagsBrokenRules(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seedRule(t, st, store.Rule{Name: "fine", Severity: store.SeverityInfo})
	broken := seedRule(t, st, store.Rule{Name: "broken", Severity: store.SeverityInfo})
	broken.ConditionsJSON = `[{"op":"eq"}]`
	if err := st.UpdateRule(ctx, broken); err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}

	health := NewEvaluator(cfg, st, nil).HealthCheck(ctx)
	if !health.Ready {
		t.Fatal("expected evaluator to remain ready")
	}
	if health.Detail == "" {
		t.Fatal("expected degraded detail naming broken rules")
	}
}
