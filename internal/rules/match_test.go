package rules

import (
	"testing"
	"time"

	"argus/internal/store"
)

func clock(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func TestInQuietHours(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		now      time.Time
		want     bool
	}{
		{"inside simple window", "08:00", "18:00", clock(12, 0), true},
		{"start inclusive", "08:00", "18:00", clock(8, 0), true},
		{"end exclusive", "08:00", "18:00", clock(18, 0), false},
		{"outside simple window", "08:00", "18:00", clock(19, 30), false},
		{"midnight wrap late evening", "22:00", "06:00", clock(23, 15), true},
		{"midnight wrap early morning", "22:00", "06:00", clock(5, 59), true},
		{"midnight wrap daytime", "22:00", "06:00", clock(12, 0), false},
		{"no window", "", "", clock(12, 0), false},
		{"degenerate window", "09:00", "09:00", clock(9, 0), false},
		{"unparseable", "soon", "later", clock(12, 0), false},
	}
	for _, tc := range cases {
		if got := inQuietHours(tc.from, tc.to, tc.now); got != tc.want {
			t.Errorf("%s: inQuietHours(%q, %q) = %v, want %v", tc.name, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEvaluateCriteria(t *testing.T) {
	event := &store.Event{
		CameraID: "cam-1",
		Type:     store.EventObjectDetected,
		Label:    "person",
		Score:    0.8,
	}
	document, err := EventDocument(event)
	if err != nil {
		t.Fatalf("EventDocument failed: %v", err)
	}
	base := store.Rule{
		Name:     "persons",
		Enabled:  true,
		Severity: store.SeverityWarning,
		MinScore: 0.5,
	}

	cases := []struct {
		name   string
		mutate func(*store.Rule)
		want   bool
	}{
		{"matches", func(r *store.Rule) {}, true},
		{"disabled", func(r *store.Rule) { r.Enabled = false }, false},
		{"other camera", func(r *store.Rule) { r.CameraID = "cam-2" }, false},
		{"same camera", func(r *store.Rule) { r.CameraID = "cam-1" }, true},
		{"other type", func(r *store.Rule) { r.EventType = "motion" }, false},
		{"score too low", func(r *store.Rule) { r.MinScore = 0.9 }, false},
		{"condition holds", func(r *store.Rule) {
			r.ConditionsJSON = `[{"path":"label","op":"eq","value":"person"}]`
		}, true},
		{"condition fails", func(r *store.Rule) {
			r.ConditionsJSON = `[{"path":"label","op":"eq","value":"car"}]`
		}, false},
		{"quiet hours", func(r *store.Rule) { r.QuietFrom = "00:00"; r.QuietTo = "23:59" }, false},
	}
	for _, tc := range cases {
		rule := base
		tc.mutate(&rule)
		match, err := Evaluate(&rule, event, document, clock(12, 0))
		if err != nil {
			t.Errorf("%s: Evaluate failed: %v", tc.name, err)
			continue
		}
		if match.Matched != tc.want {
			t.Errorf("%s: matched = %v (reason %q), want %v", tc.name, match.Matched, match.Reason, tc.want)
		}
	}
}

func TestEvaluatePropagatesBadConditions(t *testing.T) {
	event := &store.Event{Type: store.EventMotion, Label: "motion", Score: 1}
	document, _ := EventDocument(event)
	rule := &store.Rule{Name: "broken", Enabled: true, ConditionsJSON: `[{"op":"eq"}]`}
	if _, err := Evaluate(rule, event, document, clock(12, 0)); err == nil {
		t.Fatal("expected error for unparseable conditions")
	}
}
