package daemon

import (
	"net/http"
	"strconv"
	"strings"

	"argus/internal/api"
	"argus/internal/store"
)

func (s *apiServer) handleSegments(w http.ResponseWriter, r *http.Request) {
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
	filter := store.SegmentFilter{
		CameraID: strings.TrimSpace(query.Get("camera_id")),
		Limit:    limit,
		BeforeID: beforeID,
	}
	for _, raw := range query["status"] {
		parsed, ok := store.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+raw)
			return
		}
		filter.Statuses = append(filter.Statuses, parsed)
	}

	segments, err := s.daemon.ListSegments(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SegmentListResponse{Segments: api.FromSegments(segments)})
}

func (s *apiServer) handleSegmentItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/segments/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid segment id")
		return
	}
	seg, err := s.daemon.GetSegment(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if seg == nil {
		s.writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.SegmentResponse{Segment: api.FromSegment(seg)})
}
