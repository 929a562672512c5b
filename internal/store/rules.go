package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRuleExists reports an insert that collides with an existing rule name.
var ErrRuleExists = errors.New("rule already exists")

const ruleColumns = "id, name, enabled, priority, camera_id, event_type, min_score, conditions_json, severity, channels_json, throttle_seconds, quiet_from, quiet_to, created_at, updated_at"

// AddRule stores a new alerting rule.
func (s *Store) AddRule(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, errors.New("rule is nil")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return nil, errors.New("rule name is required")
	}
	if rule.Severity == "" {
		rule.Severity = SeverityInfo
	}
	now := time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO rules (name, enabled, priority, camera_id, event_type, min_score, conditions_json, severity, channels_json, throttle_seconds, quiet_from, quiet_to, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name,
		boolToInt(rule.Enabled),
		rule.Priority,
		nullableString(rule.CameraID),
		nullableString(rule.EventType),
		rule.MinScore,
		nullableString(rule.ConditionsJSON),
		rule.Severity,
		nullableString(rule.ChannelsJSON),
		rule.ThrottleSeconds,
		nullableString(rule.QuietFrom),
		nullableString(rule.QuietTo),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrRuleExists, rule.Name)
		}
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("rule insert id: %w", err)
	}
	return s.RuleByID(ctx, id)
}

// RuleByID fetches a rule by identifier.
func (s *Store) RuleByID(ctx context.Context, id int64) (*Rule, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// RuleByName fetches a rule by its unique name.
func (s *Store) RuleByName(ctx context.Context, name string) (*Rule, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+ruleColumns+` FROM rules WHERE name = ?`, name)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule by name: %w", err)
	}
	return rule, nil
}

// ListRules returns every rule in evaluation order: priority descending,
// then identifier ascending so older rules win ties.
func (s *Store) ListRules(ctx context.Context) ([]*Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY priority DESC, id ASC`)
}

// EnabledRules returns only enabled rules in evaluation order.
func (s *Store) EnabledRules(ctx context.Context) ([]*Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE enabled = 1 ORDER BY priority DESC, id ASC`)
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpdateRule persists changes to an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return errors.New("rule is nil")
	}
	rule.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE rules
         SET name = ?, enabled = ?, priority = ?, camera_id = ?, event_type = ?,
             min_score = ?, conditions_json = ?, severity = ?, channels_json = ?,
             throttle_seconds = ?, quiet_from = ?, quiet_to = ?, updated_at = ?
         WHERE id = ?`,
		rule.Name,
		boolToInt(rule.Enabled),
		rule.Priority,
		nullableString(rule.CameraID),
		nullableString(rule.EventType),
		rule.MinScore,
		nullableString(rule.ConditionsJSON),
		rule.Severity,
		nullableString(rule.ChannelsJSON),
		rule.ThrottleSeconds,
		nullableString(rule.QuietFrom),
		nullableString(rule.QuietTo),
		timestamp(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrRuleExists, rule.Name)
		}
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// RemoveRule deletes a rule. Alerts it produced keep their rule id value.
func (s *Store) RemoveRule(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetRuleEnabled toggles rule evaluation without editing the rule body.
func (s *Store) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set rule enabled: %w", err)
	}
	return nil
}

func scanRule(sc scanner) (*Rule, error) {
	var (
		id              int64
		name            string
		enabled         sql.NullInt64
		priority        sql.NullInt64
		cameraID        sql.NullString
		eventType       sql.NullString
		minScore        sql.NullFloat64
		conditionsJSON  sql.NullString
		severityStr     string
		channelsJSON    sql.NullString
		throttleSeconds sql.NullInt64
		quietFrom       sql.NullString
		quietTo         sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := sc.Scan(
		&id,
		&name,
		&enabled,
		&priority,
		&cameraID,
		&eventType,
		&minScore,
		&conditionsJSON,
		&severityStr,
		&channelsJSON,
		&throttleSeconds,
		&quietFrom,
		&quietTo,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rule := &Rule{
		ID:              id,
		Name:            name,
		Priority:        int(priority.Int64),
		CameraID:        cameraID.String,
		EventType:       eventType.String,
		MinScore:        minScore.Float64,
		ConditionsJSON:  conditionsJSON.String,
		Severity:        Severity(severityStr),
		ChannelsJSON:    channelsJSON.String,
		ThrottleSeconds: int(throttleSeconds.Int64),
		QuietFrom:       quietFrom.String,
		QuietTo:         quietTo.String,
	}
	if enabled.Valid {
		rule.Enabled = enabled.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rule.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rule.UpdatedAt = updated
	}
	return rule, nil
}
