package daemon

import (
	"encoding/json"
	"net/http"
	"strings"

	"argus/internal/api"
	"argus/internal/store"
)

type manualAlertPayload struct {
	CameraID string   `json:"camera_id"`
	Severity string   `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Channels []string `json:"channels"`
}

type ackPayload struct {
	By string `json:"by"`
}

func (s *apiServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		limit, beforeID, err := parseListWindow(query)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter := store.AlertFilter{
			CameraID: strings.TrimSpace(query.Get("camera_id")),
			Limit:    limit,
			BeforeID: beforeID,
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			parsed, ok := store.ParseAlertStatus(raw)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown alert status "+raw)
				return
			}
			filter.Status = parsed
		}
		if raw := strings.TrimSpace(query.Get("severity")); raw != "" {
			parsed, ok := store.ParseSeverity(raw)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown severity "+raw)
				return
			}
			filter.Severity = parsed
		}
		if filter.Since, err = parseTimeParam(query.Get("since")); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		alerts, err := s.daemon.ListAlerts(r.Context(), filter)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.AlertListResponse{Alerts: api.FromAlerts(alerts)})
	case http.MethodPost:
		var payload manualAlertPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		alert, err := s.daemon.CreateManualAlert(r.Context(), ManualAlertParams{
			CameraID: payload.CameraID,
			Severity: payload.Severity,
			Title:    payload.Title,
			Message:  payload.Message,
			Channels: payload.Channels,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.AlertResponse{Alert: api.FromAlert(alert)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleAlertItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	uid, isAck := strings.CutSuffix(rest, "/ack")
	if uid == "" || strings.Contains(uid, "/") {
		s.writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	if isAck {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var payload ackPayload
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&payload)
		}
		alert, err := s.daemon.AcknowledgeAlert(r.Context(), uid, strings.TrimSpace(payload.By))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.AlertResponse{Alert: api.FromAlert(alert)})
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	alert, err := s.daemon.store.AlertByUID(r.Context(), uid)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if alert == nil {
		s.writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AlertResponse{Alert: api.FromAlert(alert)})
}
