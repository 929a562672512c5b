package rules

import (
	"strings"
	"testing"

	"argus/internal/store"
)

func TestParseConditionsValidation(t *testing.T) {
	if conds, err := ParseConditions(""); err != nil || conds != nil {
		t.Fatalf("empty document should yield no conditions, got %#v, %v", conds, err)
	}
	if _, err := ParseConditions(`[{"path":"","op":"eq","value":1}]`); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := ParseConditions(`[{"path":"score","op":"matches","value":1}]`); err == nil {
		t.Fatal("expected error for unknown op")
	}
	conds, err := ParseConditions(`[{"path":"score","op":"GTE","value":0.5}]`)
	if err != nil {
		t.Fatalf("ParseConditions failed: %v", err)
	}
	if conds[0].Op != "gte" {
		t.Fatalf("expected op normalized to lowercase, got %q", conds[0].Op)
	}
}

func TestParseChannels(t *testing.T) {
	channels, err := ParseChannels(`["NTFY","webhook"]`)
	if err != nil {
		t.Fatalf("ParseChannels failed: %v", err)
	}
	if len(channels) != 2 || channels[0] != "ntfy" || channels[1] != "webhook" {
		t.Fatalf("unexpected channels: %#v", channels)
	}
	if _, err := ParseChannels(`["sms"]`); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestEventDocumentInjectsTopLevelFields(t *testing.T) {
	event := &store.Event{
		CameraID:     "cam-1",
		Type:         store.EventObjectDetected,
		Label:        "person",
		Score:        0.91,
		MetadataJSON: `{"scene":{"label":"street","score":0.8},"motionRatio":0.1}`,
	}
	doc, err := EventDocument(event)
	if err != nil {
		t.Fatalf("EventDocument failed: %v", err)
	}
	for _, cond := range []Condition{
		{Path: "type", Op: "eq", Value: "object"},
		{Path: "label", Op: "eq", Value: "person"},
		{Path: "score", Op: "gte", Value: 0.9},
		{Path: "camera_id", Op: "eq", Value: "cam-1"},
		{Path: "scene.label", Op: "eq", Value: "street"},
		{Path: "motionRatio", Op: "lt", Value: 0.5},
	} {
		if !cond.evaluate(doc) {
			t.Errorf("condition %s %s %v should hold on %s", cond.Path, cond.Op, cond.Value, doc)
		}
	}
}

func TestConditionOps(t *testing.T) {
	doc := `{"score":0.7,"label":"delivery truck","tags":["alpha","beta"],"nested":{"flag":true}}`
	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq number", Condition{Path: "score", Op: "eq", Value: 0.7}, true},
		{"ne number", Condition{Path: "score", Op: "ne", Value: 0.5}, true},
		{"ne missing path", Condition{Path: "absent", Op: "ne", Value: 1.0}, false},
		{"gt false", Condition{Path: "score", Op: "gt", Value: 0.7}, false},
		{"gte true", Condition{Path: "score", Op: "gte", Value: 0.7}, true},
		{"lt true", Condition{Path: "score", Op: "lt", Value: 0.8}, true},
		{"lte false", Condition{Path: "score", Op: "lte", Value: 0.6}, false},
		{"contains substring", Condition{Path: "label", Op: "contains", Value: "truck"}, true},
		{"contains array member", Condition{Path: "tags", Op: "contains", Value: "beta"}, true},
		{"contains array miss", Condition{Path: "tags", Op: "contains", Value: "gamma"}, false},
		{"exists true", Condition{Path: "nested.flag", Op: "exists"}, true},
		{"exists negated", Condition{Path: "absent", Op: "exists", Value: false}, true},
		{"eq bool", Condition{Path: "nested.flag", Op: "eq", Value: true}, true},
		{"ordered on string", Condition{Path: "label", Op: "gt", Value: 1.0}, false},
	}
	for _, tc := range cases {
		if got := tc.cond.evaluate(doc); got != tc.want {
			t.Errorf("%s: evaluate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidateRule(t *testing.T) {
	good := &store.Rule{
		Name:           "night person",
		Severity:       store.SeverityWarning,
		EventType:      "object",
		MinScore:       0.6,
		ConditionsJSON: `[{"path":"label","op":"eq","value":"person"}]`,
		ChannelsJSON:   `["ntfy"]`,
		QuietFrom:      "08:00",
		QuietTo:        "18:00",
	}
	if err := ValidateRule(good); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}

	bad := []struct {
		name   string
		mutate func(*store.Rule)
		want   string
	}{
		{"empty name", func(r *store.Rule) { r.Name = " " }, "name"},
		{"bad event type", func(r *store.Rule) { r.EventType = "sound" }, "event type"},
		{"bad severity", func(r *store.Rule) { r.Severity = "urgent" }, "severity"},
		{"score range", func(r *store.Rule) { r.MinScore = 1.5 }, "min_score"},
		{"negative throttle", func(r *store.Rule) { r.ThrottleSeconds = -1 }, "throttle"},
		{"half quiet window", func(r *store.Rule) { r.QuietTo = "" }, "quiet"},
		{"bad clock", func(r *store.Rule) { r.QuietFrom = "25:00" }, "quiet_from"},
		{"bad conditions", func(r *store.Rule) { r.ConditionsJSON = `[{"op":"eq"}]` }, "path"},
		{"bad channels", func(r *store.Rule) { r.ChannelsJSON = `["pager"]` }, "channel"},
	}
	for _, tc := range bad {
		rule := *good
		tc.mutate(&rule)
		err := ValidateRule(&rule)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}
