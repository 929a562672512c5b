package daemon

import (
	"encoding/json"
	"net/http"
	"strings"

	"argus/internal/api"
	"argus/internal/store"
)

type cameraPayload struct {
	Name          *string `json:"name"`
	StreamURL     *string `json:"stream_url"`
	Location      *string `json:"location"`
	Enabled       *bool   `json:"enabled"`
	RetentionDays *int    `json:"retention_days"`
}

func (p cameraPayload) params() CameraParams {
	return CameraParams{
		Name:          p.Name,
		StreamURL:     p.StreamURL,
		Location:      p.Location,
		Enabled:       p.Enabled,
		RetentionDays: p.RetentionDays,
	}
}

func (s *apiServer) handleCameras(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cameras, err := s.daemon.ListCameras(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if state := strings.TrimSpace(r.URL.Query().Get("state")); state != "" {
			parsed, ok := store.ParseCameraState(state)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown camera state "+state)
				return
			}
			filtered := make([]*store.Camera, 0, len(cameras))
			for _, cam := range cameras {
				if cam.State == parsed {
					filtered = append(filtered, cam)
				}
			}
			cameras = filtered
		}
		s.writeJSON(w, http.StatusOK, api.CameraListResponse{Cameras: api.FromCameras(cameras)})
	case http.MethodPost:
		var payload cameraPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		cam, err := s.daemon.AddCamera(r.Context(), payload.params())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.CameraResponse{Camera: api.FromCamera(cam)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCameraItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/cameras/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "camera not found")
		return
	}
	if id, ok := strings.CutSuffix(rest, "/snapshot"); ok {
		s.handleCameraSnapshot(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		cam, err := s.daemon.GetCamera(r.Context(), rest)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if cam == nil {
			s.writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.CameraResponse{Camera: api.FromCamera(cam)})
	case http.MethodPatch:
		var payload cameraPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		cam, err := s.daemon.UpdateCamera(r.Context(), rest, payload.params())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.CameraResponse{Camera: api.FromCamera(cam)})
	case http.MethodDelete:
		removed, err := s.daemon.RemoveCamera(r.Context(), rest)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if !removed {
			s.writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCameraSnapshot(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, ok := s.daemon.Snapshot(id)
	if !ok || len(snap.Data) == 0 {
		s.writeError(w, http.StatusNotFound, "no snapshot cached")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Captured-At", snap.CapturedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Data)
}
