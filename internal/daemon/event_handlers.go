package daemon

import (
	"net/http"
	"strings"

	"argus/internal/api"
	"argus/internal/store"
)

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, beforeID, err := parseListWindow(query)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.EventFilter{
		CameraID: strings.TrimSpace(query.Get("camera_id")),
		Label:    strings.TrimSpace(query.Get("label")),
		Limit:    limit,
		BeforeID: beforeID,
	}
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		parsed, ok := store.ParseEventType(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown event type "+raw)
			return
		}
		filter.Type = parsed
	}
	if filter.Since, err = parseTimeParam(query.Get("since")); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Until, err = parseTimeParam(query.Get("until")); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.daemon.ListEvents(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: api.FromEvents(events)})
}

func (s *apiServer) handleEventItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	uid := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")
	if uid == "" || strings.Contains(uid, "/") {
		s.writeError(w, http.StatusNotFound, "event not found")
		return
	}
	event, err := s.daemon.GetEventByUID(r.Context(), uid)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if event == nil {
		s.writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventResponse{Event: api.FromEvent(event)})
}
