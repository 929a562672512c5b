package daemon

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"argus/internal/api"
	"argus/internal/store"
)

type rulePayload struct {
	Name            *string         `json:"name"`
	Enabled         *bool           `json:"enabled"`
	Priority        *int            `json:"priority"`
	CameraID        *string         `json:"camera_id"`
	EventType       *string         `json:"event_type"`
	MinScore        *float64        `json:"min_score"`
	Conditions      json.RawMessage `json:"conditions"`
	Severity        *string         `json:"severity"`
	Channels        json.RawMessage `json:"channels"`
	ThrottleSeconds *int            `json:"throttle_seconds"`
	QuietFrom       *string         `json:"quiet_from"`
	QuietTo         *string         `json:"quiet_to"`
}

// apply copies the provided fields onto the rule, leaving absent ones alone.
func (p rulePayload) apply(rule *store.Rule) {
	if p.Name != nil {
		rule.Name = strings.TrimSpace(*p.Name)
	}
	if p.Enabled != nil {
		rule.Enabled = *p.Enabled
	}
	if p.Priority != nil {
		rule.Priority = *p.Priority
	}
	if p.CameraID != nil {
		rule.CameraID = strings.TrimSpace(*p.CameraID)
	}
	if p.EventType != nil {
		rule.EventType = strings.TrimSpace(*p.EventType)
	}
	if p.MinScore != nil {
		rule.MinScore = *p.MinScore
	}
	if len(p.Conditions) > 0 {
		rule.ConditionsJSON = string(p.Conditions)
	}
	if p.Severity != nil {
		rule.Severity = store.Severity(strings.TrimSpace(*p.Severity))
	}
	if len(p.Channels) > 0 {
		rule.ChannelsJSON = string(p.Channels)
	}
	if p.ThrottleSeconds != nil {
		rule.ThrottleSeconds = *p.ThrottleSeconds
	}
	if p.QuietFrom != nil {
		rule.QuietFrom = strings.TrimSpace(*p.QuietFrom)
	}
	if p.QuietTo != nil {
		rule.QuietTo = strings.TrimSpace(*p.QuietTo)
	}
}

func (s *apiServer) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := s.daemon.ListRules(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.RuleListResponse{Rules: api.FromRules(rules)})
	case http.MethodPost:
		var payload rulePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rule := &store.Rule{Enabled: true}
		payload.apply(rule)
		stored, err := s.daemon.AddRule(r.Context(), rule)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.RuleResponse{Rule: api.FromRule(stored)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleRuleItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/rules/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.daemon.GetRule(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if rule == nil {
			s.writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.RuleResponse{Rule: api.FromRule(rule)})
	case http.MethodPatch:
		var payload rulePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rule, err := s.daemon.GetRule(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if rule == nil {
			s.writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		payload.apply(rule)
		updated, err := s.daemon.UpdateRule(r.Context(), rule)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.RuleResponse{Rule: api.FromRule(updated)})
	case http.MethodDelete:
		removed, err := s.daemon.RemoveRule(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if !removed {
			s.writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
