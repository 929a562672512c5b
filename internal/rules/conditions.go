package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"argus/internal/store"
)

// Condition is one predicate evaluated against an event document. Path is
// a gjson path; Value is compared according to Op.
type Condition struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

var knownOps = map[string]struct{}{
	"eq":       {},
	"ne":       {},
	"gt":       {},
	"gte":      {},
	"lt":       {},
	"lte":      {},
	"contains": {},
	"exists":   {},
}

// ParseConditions decodes and validates a rule's conditions document. An
// empty document yields no conditions, which matches every event.
func ParseConditions(raw string) ([]Condition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}
	var conditions []Condition
	if err := json.Unmarshal([]byte(raw), &conditions); err != nil {
		return nil, fmt.Errorf("parse conditions: %w", err)
	}
	for i, cond := range conditions {
		if strings.TrimSpace(cond.Path) == "" {
			return nil, fmt.Errorf("condition %d: path is required", i)
		}
		op := strings.ToLower(strings.TrimSpace(cond.Op))
		if _, ok := knownOps[op]; !ok {
			return nil, fmt.Errorf("condition %d: unknown op %q", i, cond.Op)
		}
		conditions[i].Op = op
	}
	return conditions, nil
}

// ParseChannels decodes and validates a rule's delivery channel list.
func ParseChannels(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}
	var channels []string
	if err := json.Unmarshal([]byte(raw), &channels); err != nil {
		return nil, fmt.Errorf("parse channels: %w", err)
	}
	for i, channel := range channels {
		channel = strings.ToLower(strings.TrimSpace(channel))
		switch channel {
		case "ntfy", "webhook":
			channels[i] = channel
		default:
			return nil, fmt.Errorf("channel %d: unknown channel %q", i, channels[i])
		}
	}
	return channels, nil
}

// EventDocument composes the JSON document conditions evaluate against:
// the event's metadata with the event's own fields injected at the top
// level so rules can match on type, label, score, and camera without
// knowing the metadata layout.
func EventDocument(event *store.Event) (string, error) {
	doc := map[string]any{}
	if raw := strings.TrimSpace(event.MetadataJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return "", fmt.Errorf("parse event metadata: %w", err)
		}
	}
	doc["type"] = string(event.Type)
	doc["label"] = event.Label
	doc["score"] = event.Score
	doc["camera_id"] = event.CameraID

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("compose event document: %w", err)
	}
	return string(data), nil
}

// evaluate reports whether a single condition holds for the document.
func (c Condition) evaluate(document string) bool {
	result := gjson.Get(document, c.Path)
	switch c.Op {
	case "exists":
		want := true
		if b, ok := c.Value.(bool); ok {
			want = b
		}
		return result.Exists() == want
	case "eq":
		return compareEqual(result, c.Value)
	case "ne":
		return result.Exists() && !compareEqual(result, c.Value)
	case "gt", "gte", "lt", "lte":
		return compareOrdered(result, c.Value, c.Op)
	case "contains":
		needle, ok := c.Value.(string)
		if !ok || !result.Exists() {
			return false
		}
		if result.IsArray() {
			for _, item := range result.Array() {
				if item.String() == needle {
					return true
				}
			}
			return false
		}
		return strings.Contains(result.String(), needle)
	default:
		return false
	}
}

func compareEqual(result gjson.Result, value any) bool {
	if !result.Exists() {
		return false
	}
	switch v := value.(type) {
	case nil:
		return result.Type == gjson.Null
	case bool:
		return result.IsBool() && result.Bool() == v
	case float64:
		return result.Type == gjson.Number && result.Float() == v
	case string:
		return result.String() == v
	default:
		return result.String() == fmt.Sprint(v)
	}
}

func compareOrdered(result gjson.Result, value any, op string) bool {
	if result.Type != gjson.Number {
		return false
	}
	want, ok := toFloat(value)
	if !ok {
		return false
	}
	got := result.Float()
	switch op {
	case "gt":
		return got > want
	case "gte":
		return got >= want
	case "lt":
		return got < want
	case "lte":
		return got <= want
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
