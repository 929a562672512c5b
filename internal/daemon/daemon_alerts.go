package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"argus/internal/logging"
	"argus/internal/rules"
	"argus/internal/services"
	"argus/internal/store"
)

// ListEvents returns events matching the filter, newest-first.
func (d *Daemon) ListEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error) {
	return d.store.ListEvents(ctx, filter)
}

// GetEventByUID fetches an event with its objects, preferring the hot cache.
func (d *Daemon) GetEventByUID(ctx context.Context, uid string) (*store.Event, error) {
	event, err := d.store.EventByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if event != nil && d.caches != nil {
		d.caches.PutEvent(event)
	}
	return event, nil
}

// ListAlerts returns alerts matching the filter, newest-first.
func (d *Daemon) ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*store.Alert, error) {
	return d.store.ListAlerts(ctx, filter)
}

// AcknowledgeAlert marks an alert acknowledged by the named operator.
func (d *Daemon) AcknowledgeAlert(ctx context.Context, uid, by string) (*store.Alert, error) {
	alert, err := d.store.AcknowledgeAlert(ctx, uid, by)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, services.Wrap(services.ErrNotFound, "alert", "ack", fmt.Sprintf("alert %s not found", uid), nil)
	}
	d.logger.Info("alert acknowledged",
		logging.String(logging.FieldEventType, "alert_acknowledged"),
		logging.String("alert_uid", uid),
		logging.String("acknowledged_by", by))
	return alert, nil
}

// ManualAlertParams carries the fields for an operator-raised alert.
type ManualAlertParams struct {
	CameraID string
	Severity string
	Title    string
	Message  string
	Channels []string
}

// CreateManualAlert inserts a pending alert raised by an operator or an
// external system. The dispatcher delivers it on its next pass.
func (d *Daemon) CreateManualAlert(ctx context.Context, params ManualAlertParams) (*store.Alert, error) {
	severity, ok := store.ParseSeverity(params.Severity)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "alert", "create", fmt.Sprintf("unknown severity %q", params.Severity), nil)
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "alert", "create", "alert title is required", nil)
	}
	cameraID := strings.TrimSpace(params.CameraID)
	if cameraID != "" {
		cam, err := d.store.CameraByID(ctx, cameraID)
		if err != nil {
			return nil, err
		}
		if cam == nil {
			return nil, services.Wrap(services.ErrValidation, "alert", "create", fmt.Sprintf("camera %s not found", cameraID), nil)
		}
	}

	alert := &store.Alert{
		CameraID: cameraID,
		Severity: severity,
		Status:   store.AlertPending,
		Title:    title,
		Message:  strings.TrimSpace(params.Message),
	}
	// An explicit channel list pins delivery; without one the dispatcher
	// delivers over every configured channel.
	if len(params.Channels) > 0 {
		encoded, err := json.Marshal(params.Channels)
		if err != nil {
			return nil, fmt.Errorf("encode channels: %w", err)
		}
		normalized, err := rules.ParseChannels(string(encoded))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "alert", "create", err.Error(), nil)
		}
		reencoded, err := json.Marshal(normalized)
		if err != nil {
			return nil, fmt.Errorf("encode channels: %w", err)
		}
		alert.ChannelsJSON = string(reencoded)
	}

	stored, err := d.store.InsertAlert(ctx, alert)
	if err != nil {
		return nil, err
	}
	d.logger.Info("manual alert raised",
		logging.String(logging.FieldEventType, "manual_alert_raised"),
		logging.String("alert_uid", stored.UID),
		logging.String("severity", string(stored.Severity)))
	return stored, nil
}

// RedeliverFailedAlerts flips failed alerts back to pending for another
// dispatch attempt.
func (d *Daemon) RedeliverFailedAlerts(ctx context.Context) (int64, error) {
	return d.store.RetryFailedAlerts(ctx)
}

// TestNotification sends a test message over the configured ntfy channel.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", services.ErrConfiguration
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if d.notifier == nil {
		return false, "notifier unavailable", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// ListRules returns every rule ordered by priority.
func (d *Daemon) ListRules(ctx context.Context) ([]*store.Rule, error) {
	return d.store.ListRules(ctx)
}

// GetRule fetches a rule by id, or nil when absent.
func (d *Daemon) GetRule(ctx context.Context, id int64) (*store.Rule, error) {
	return d.store.RuleByID(ctx, id)
}

// AddRule validates and persists a new rule.
func (d *Daemon) AddRule(ctx context.Context, rule *store.Rule) (*store.Rule, error) {
	if rule == nil {
		return nil, services.Wrap(services.ErrValidation, "rule", "add", "rule is required", nil)
	}
	if rule.Severity == "" {
		rule.Severity = store.SeverityInfo
	}
	if err := rules.ValidateRule(rule); err != nil {
		return nil, services.Wrap(services.ErrValidation, "rule", "add", err.Error(), nil)
	}
	stored, err := d.store.AddRule(ctx, rule)
	if err != nil {
		return nil, err
	}
	d.logger.Info("rule added",
		logging.String(logging.FieldEventType, "rule_added"),
		logging.Int64("rule_id", stored.ID),
		logging.String("rule_name", stored.Name))
	return stored, nil
}

// UpdateRule validates and persists changes to an existing rule.
func (d *Daemon) UpdateRule(ctx context.Context, rule *store.Rule) (*store.Rule, error) {
	if rule == nil {
		return nil, services.Wrap(services.ErrValidation, "rule", "update", "rule is required", nil)
	}
	existing, err := d.store.RuleByID(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, services.Wrap(services.ErrNotFound, "rule", "update", fmt.Sprintf("rule %d not found", rule.ID), nil)
	}
	if err := rules.ValidateRule(rule); err != nil {
		return nil, services.Wrap(services.ErrValidation, "rule", "update", err.Error(), nil)
	}
	if err := d.store.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return d.store.RuleByID(ctx, rule.ID)
}

// RemoveRule deletes a rule. Alerts raised by it keep their rule reference.
func (d *Daemon) RemoveRule(ctx context.Context, id int64) (bool, error) {
	return d.store.RemoveRule(ctx, id)
}

// SetRuleEnabled flips a rule on or off without touching its definition.
func (d *Daemon) SetRuleEnabled(ctx context.Context, id int64, enabled bool) (*store.Rule, error) {
	existing, err := d.store.RuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, services.Wrap(services.ErrNotFound, "rule", "enable", fmt.Sprintf("rule %d not found", id), nil)
	}
	if err := d.store.SetRuleEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	return d.store.RuleByID(ctx, id)
}
