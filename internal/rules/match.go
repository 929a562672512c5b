package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"argus/internal/store"
)

// Match explains why a rule did or did not fire for an event.
type Match struct {
	Matched bool
	Reason  string
}

func miss(format string, args ...any) Match {
	return Match{Reason: fmt.Sprintf(format, args...)}
}

// Evaluate checks every matching criterion of a rule against an event and
// its composed document. All criteria must hold: enablement, camera
// scope, event type, minimum score, every condition, and the clock being
// outside the rule's quiet hours.
func Evaluate(rule *store.Rule, event *store.Event, document string, now time.Time) (Match, error) {
	if !rule.Enabled {
		return miss("rule disabled"), nil
	}
	if rule.CameraID != "" && rule.CameraID != event.CameraID {
		return miss("camera %s out of scope", event.CameraID), nil
	}
	if rule.EventType != "" && rule.EventType != string(event.Type) {
		return miss("event type %s out of scope", event.Type), nil
	}
	if event.Score < rule.MinScore {
		return miss("score %.2f below minimum %.2f", event.Score, rule.MinScore), nil
	}

	conditions, err := ParseConditions(rule.ConditionsJSON)
	if err != nil {
		return Match{}, fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	for _, cond := range conditions {
		if !cond.evaluate(document) {
			return miss("condition %s %s failed", cond.Path, cond.Op), nil
		}
	}

	if inQuietHours(rule.QuietFrom, rule.QuietTo, now) {
		return miss("inside quiet hours %s-%s", rule.QuietFrom, rule.QuietTo), nil
	}
	return Match{Matched: true}, nil
}

// inQuietHours reports whether now falls inside the rule's quiet window.
// Both bounds must be set for a window to exist; a window whose end
// precedes its start wraps midnight (22:00-06:00). The start is
// inclusive, the end exclusive.
func inQuietHours(from, to string, now time.Time) bool {
	start, okFrom := parseClock(from)
	end, okTo := parseClock(to)
	if !okFrom || !okTo || start == end {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	// Wraps midnight.
	return minute >= start || minute < end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// ValidateRule checks the free-form fields of a rule before it is stored,
// so broken conditions surface at write time instead of in the evaluator.
func ValidateRule(rule *store.Rule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if rule.EventType != "" {
		if _, ok := store.ParseEventType(rule.EventType); !ok {
			return fmt.Errorf("unknown event type %q", rule.EventType)
		}
	}
	if _, ok := store.ParseSeverity(string(rule.Severity)); !ok {
		return fmt.Errorf("unknown severity %q", rule.Severity)
	}
	if rule.MinScore < 0 || rule.MinScore > 1 {
		return fmt.Errorf("min_score %v outside 0..1", rule.MinScore)
	}
	if rule.ThrottleSeconds < 0 {
		return fmt.Errorf("throttle_seconds must not be negative")
	}
	if _, err := ParseConditions(rule.ConditionsJSON); err != nil {
		return err
	}
	if _, err := ParseChannels(rule.ChannelsJSON); err != nil {
		return err
	}
	if (rule.QuietFrom == "") != (rule.QuietTo == "") {
		return fmt.Errorf("quiet hours need both quiet_from and quiet_to")
	}
	if rule.QuietFrom != "" {
		if _, ok := parseClock(rule.QuietFrom); !ok {
			return fmt.Errorf("quiet_from %q is not HH:MM", rule.QuietFrom)
		}
		if _, ok := parseClock(rule.QuietTo); !ok {
			return fmt.Errorf("quiet_to %q is not HH:MM", rule.QuietTo)
		}
	}
	return nil
}

// DedupKey derives the alert dedup key for a rule firing on a camera.
func DedupKey(ruleID int64, cameraID string) string {
	return fmt.Sprintf("rule:%d:camera:%s", ruleID, cameraID)
}
