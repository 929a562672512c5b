package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/services"
	"argus/internal/stage"
	"argus/internal/store"
	"argus/internal/textutil"
)

// Evaluator runs the rules engine pipeline stage: every event of an
// analyzed segment is checked against the enabled rules in evaluation
// order, and the first matching rule raises one pending alert. A rule
// that already alerted for the same camera inside its throttle window
// suppresses the new alert instead.
type Evaluator struct {
	cfg   *config.Config
	store *store.Store

	mu     sync.Mutex
	logger *slog.Logger

	now func() time.Time
}

// NewEvaluator builds the evaluator stage handler.
func NewEvaluator(cfg *config.Config, st *store.Store, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Evaluator{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "rules"),
		now:    time.Now,
	}
}

// SetLogger installs the workflow manager's stage-scoped logger.
func (e *Evaluator) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	e.mu.Lock()
	e.logger = logger
	e.mu.Unlock()
}

func (e *Evaluator) log() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logger
}

// Prepare resets the segment's progress for the evaluation stage.
func (e *Evaluator) Prepare(ctx context.Context, seg *store.Segment) error {
	seg.SetProgress("Evaluating", "", 0)
	return nil
}

// Execute evaluates the segment's events against the rule set. A segment
// with no events or no enabled rules passes straight through.
func (e *Evaluator) Execute(ctx context.Context, seg *store.Segment) error {
	events, err := e.store.EventsForSegment(ctx, seg.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "rules", "load", "load segment events", err)
	}
	if len(events) == 0 {
		seg.SetProgress("Evaluating", "no events", 100)
		return nil
	}

	ruleSet, err := e.store.EnabledRules(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "rules", "load", "load rules", err)
	}

	cameraName := seg.CameraID
	if cam, err := e.store.CameraByID(ctx, seg.CameraID); err == nil && cam != nil {
		cameraName = cam.Name
	}

	alerts := 0
	throttled := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		raised, wasThrottled, err := e.evaluateEvent(ctx, event, ruleSet, cameraName)
		if err != nil {
			return err
		}
		if raised {
			alerts++
		}
		if wasThrottled {
			throttled++
		}
	}

	seg.SetProgress("Evaluating", fmt.Sprintf("%d alert(s)", alerts), 100)
	e.log().Info("segment evaluated",
		logging.Args(
			logging.Int64(logging.FieldSegmentID, seg.ID),
			logging.Int("events", len(events)),
			logging.Int("rules", len(ruleSet)),
			logging.Int("alerts", alerts),
			logging.Int("throttled", throttled),
		)...)
	return nil
}

// evaluateEvent finds the first matching rule for one event and raises
// its alert. Rules whose stored conditions fail to parse are skipped;
// write-time validation makes that unreachable short of manual database
// edits.
func (e *Evaluator) evaluateEvent(ctx context.Context, event *store.Event, ruleSet []*store.Rule, cameraName string) (raised, throttled bool, err error) {
	document, err := EventDocument(event)
	if err != nil {
		return false, false, services.Wrap(services.ErrValidation, "rules", "document",
			fmt.Sprintf("event %s metadata", event.UID), err)
	}

	now := e.now().UTC()
	for _, rule := range ruleSet {
		match, err := Evaluate(rule, event, document, now)
		if err != nil {
			e.log().Warn("skipping rule with invalid conditions",
				logging.Args(
					logging.String("rule", rule.Name),
					logging.Error(err),
				)...)
			continue
		}
		if !match.Matched {
			continue
		}

		dedupKey := DedupKey(rule.ID, event.CameraID)
		if rule.ThrottleSeconds > 0 {
			cutoff := now.Add(-time.Duration(rule.ThrottleSeconds) * time.Second)
			recent, err := e.store.LastAlertForDedup(ctx, dedupKey, cutoff)
			if err != nil {
				return false, false, services.Wrap(services.ErrTransient, "rules", "throttle", "dedup lookup", err)
			}
			if recent != nil {
				e.recordAnalytics(ctx, "rule_throttled", event.CameraID, map[string]any{
					"rule":      rule.Name,
					"event_uid": event.UID,
				})
				return false, true, nil
			}
		}

		if err := e.raiseAlert(ctx, rule, event, cameraName, dedupKey); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	return false, false, nil
}

func (e *Evaluator) raiseAlert(ctx context.Context, rule *store.Rule, event *store.Event, cameraName, dedupKey string) error {
	ruleID := rule.ID
	eventID := event.ID
	alert := &store.Alert{
		RuleID:   &ruleID,
		CameraID: event.CameraID,
		EventID:  &eventID,
		Severity: rule.Severity,
		Status:   store.AlertPending,
		Title:    fmt.Sprintf("%s on %s", textutil.TitleCase(event.Label), cameraName),
		Message: fmt.Sprintf("Rule %q matched a %s event (%s, score %.2f) on camera %s.",
			rule.Name, event.Type, event.Label, event.Score, cameraName),
		DedupKey: dedupKey,
	}
	if _, err := e.store.InsertAlert(ctx, alert); err != nil {
		return services.Wrap(services.ErrTransient, "rules", "alert", "persist alert", err)
	}

	e.recordAnalytics(ctx, "rule_matched", event.CameraID, map[string]any{
		"rule":      rule.Name,
		"event_uid": event.UID,
		"severity":  string(rule.Severity),
	})
	e.log().Info("rule matched",
		logging.Args(
			logging.String("rule", rule.Name),
			logging.String("camera", cameraName),
			logging.String("event_label", event.Label),
			logging.String("severity", string(rule.Severity)),
		)...)
	return nil
}

func (e *Evaluator) recordAnalytics(ctx context.Context, kind, cameraID string, detail map[string]any) {
	detailJSON, err := encodeDetail(detail)
	if err != nil {
		return
	}
	if err := e.store.RecordAnalytics(ctx, kind, cameraID, detailJSON); err != nil {
		e.log().Warn("analytics write failed",
			logging.Args(
				logging.String("kind", kind),
				logging.Error(err),
			)...)
	}
}

// HealthCheck verifies the rule set loads and every stored rule still
// parses. Broken rules degrade the stage rather than failing it: the
// evaluator skips them at run time.
func (e *Evaluator) HealthCheck(ctx context.Context) stage.Health {
	ruleSet, err := e.store.ListRules(ctx)
	if err != nil {
		return stage.Unhealthy("evaluator", "rules unreadable: "+err.Error())
	}
	broken := 0
	for _, rule := range ruleSet {
		if ValidateRule(rule) != nil {
			broken++
		}
	}
	if broken > 0 {
		return stage.Degraded("evaluator", fmt.Sprintf("%d rule(s) with invalid definitions", broken))
	}
	return stage.Healthy("evaluator")
}
