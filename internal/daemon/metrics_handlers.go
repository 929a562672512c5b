package daemon

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"argus/internal/api"
	"argus/internal/store"
)

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	name := strings.TrimSpace(query.Get("name"))
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "metric name is required")
		return
	}

	q := store.MetricQuery{
		Name:     name,
		CameraID: strings.TrimSpace(query.Get("camera_id")),
	}
	var err error
	if q.From, err = parseTimeParam(query.Get("since")); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.To, err = parseTimeParam(query.Get("until")); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(query.Get("step_seconds")); raw != "" {
		step, perr := strconv.Atoi(raw)
		if perr != nil || step <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid step_seconds "+raw)
			return
		}
		q.Step = time.Duration(step) * time.Second
	}

	buckets, err := s.daemon.QueryMetrics(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MetricQueryResponse{
		Name:     q.Name,
		CameraID: q.CameraID,
		Buckets:  api.FromMetricBuckets(buckets),
	})
}
