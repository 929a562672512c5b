package daemon

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"argus/internal/logging"
	"argus/internal/services"
	"argus/internal/store"
)

// CameraParams carries the mutable camera fields for registration and
// updates. Pointer fields distinguish "leave unchanged" from zero values
// on partial updates.
type CameraParams struct {
	Name          *string
	StreamURL     *string
	Location      *string
	Enabled       *bool
	RetentionDays *int
}

func validateStreamURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return services.Wrap(services.ErrValidation, "camera", "validate", fmt.Sprintf("invalid stream url %q", raw), nil)
	}
	switch parsed.Scheme {
	case "rtsp", "http", "https", "file":
		return nil
	default:
		return services.Wrap(services.ErrValidation, "camera", "validate", fmt.Sprintf("unsupported stream scheme %q", parsed.Scheme), nil)
	}
}

// ListCameras returns every registered camera, served from the read cache
// when it is fresh.
func (d *Daemon) ListCameras(ctx context.Context) ([]*store.Camera, error) {
	if d.caches != nil {
		if cached, ok := d.caches.CameraList(); ok {
			return cached, nil
		}
		gen := d.caches.CameraGeneration()
		cameras, err := d.store.ListCameras(ctx)
		if err != nil {
			return nil, err
		}
		d.caches.StoreCameraList(cameras, gen)
		return cameras, nil
	}
	return d.store.ListCameras(ctx)
}

// GetCamera fetches a camera by identifier, or nil when absent.
func (d *Daemon) GetCamera(ctx context.Context, id string) (*store.Camera, error) {
	return d.store.CameraByID(ctx, id)
}

// AddCamera registers a camera and, when the daemon is running and the
// camera is enabled, begins capturing from it immediately.
func (d *Daemon) AddCamera(ctx context.Context, params CameraParams) (*store.Camera, error) {
	name := ""
	if params.Name != nil {
		name = strings.TrimSpace(*params.Name)
	}
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "camera", "add", "camera name is required", nil)
	}
	streamURL := ""
	if params.StreamURL != nil {
		streamURL = strings.TrimSpace(*params.StreamURL)
	}
	if streamURL == "" {
		return nil, services.Wrap(services.ErrValidation, "camera", "add", "stream url is required", nil)
	}
	if err := validateStreamURL(streamURL); err != nil {
		return nil, err
	}

	cam := &store.Camera{Name: name, StreamURL: streamURL, Enabled: true}
	if params.Location != nil {
		cam.Location = strings.TrimSpace(*params.Location)
	}
	if params.Enabled != nil {
		cam.Enabled = *params.Enabled
	}
	if params.RetentionDays != nil {
		cam.RetentionDays = *params.RetentionDays
	}

	stored, err := d.store.AddCamera(ctx, cam)
	if err != nil {
		return nil, err
	}
	d.invalidateCameras()
	d.logger.Info("camera registered",
		logging.String(logging.FieldEventType, "camera_registered"),
		logging.String(logging.FieldCameraID, stored.ID),
		logging.String("camera_name", stored.Name))

	if stored.Enabled && d.running.Load() && d.ingest != nil {
		if err := d.ingest.StartCamera(stored); err != nil {
			d.logger.Warn("camera ingest start failed",
				logging.Error(err),
				logging.String(logging.FieldCameraID, stored.ID))
		}
	}
	return stored, nil
}

// UpdateCamera applies a partial update and restarts ingest when the
// stream URL or enabled flag changed.
func (d *Daemon) UpdateCamera(ctx context.Context, id string, params CameraParams) (*store.Camera, error) {
	cam, err := d.store.CameraByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, services.Wrap(services.ErrNotFound, "camera", "update", fmt.Sprintf("camera %s not found", id), nil)
	}

	restart := false
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, services.Wrap(services.ErrValidation, "camera", "update", "camera name cannot be empty", nil)
		}
		cam.Name = name
	}
	if params.StreamURL != nil {
		streamURL := strings.TrimSpace(*params.StreamURL)
		if err := validateStreamURL(streamURL); err != nil {
			return nil, err
		}
		if streamURL != cam.StreamURL {
			restart = true
		}
		cam.StreamURL = streamURL
	}
	if params.Location != nil {
		cam.Location = strings.TrimSpace(*params.Location)
	}
	if params.RetentionDays != nil {
		cam.RetentionDays = *params.RetentionDays
	}
	if params.Enabled != nil && *params.Enabled != cam.Enabled {
		cam.Enabled = *params.Enabled
		restart = true
	}

	if err := d.store.UpdateCamera(ctx, cam); err != nil {
		return nil, err
	}
	d.invalidateCameras()

	if restart && d.running.Load() && d.ingest != nil {
		d.ingest.StopCamera(cam.ID)
		if cam.Enabled {
			if err := d.ingest.StartCamera(cam); err != nil {
				d.logger.Warn("camera ingest restart failed",
					logging.Error(err),
					logging.String(logging.FieldCameraID, cam.ID))
			}
		}
	}
	return d.store.CameraByID(ctx, cam.ID)
}

// RemoveCamera stops ingest for a camera and deletes its registration.
// Historical segments, events, and alerts remain until retention prunes them.
func (d *Daemon) RemoveCamera(ctx context.Context, id string) (bool, error) {
	if d.ingest != nil {
		d.ingest.StopCamera(id)
	}
	removed, err := d.store.RemoveCamera(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		d.invalidateCameras()
		d.logger.Info("camera removed",
			logging.String(logging.FieldEventType, "camera_removed"),
			logging.String(logging.FieldCameraID, id))
	}
	return removed, nil
}

// SetCameraEnabled flips capture for a camera on or off.
func (d *Daemon) SetCameraEnabled(ctx context.Context, id string, enabled bool) (*store.Camera, error) {
	cam, err := d.store.CameraByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, services.Wrap(services.ErrNotFound, "camera", "enable", fmt.Sprintf("camera %s not found", id), nil)
	}
	if cam.Enabled == enabled {
		return cam, nil
	}

	if err := d.store.SetCameraEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	d.invalidateCameras()

	if d.running.Load() && d.ingest != nil {
		if enabled {
			cam.Enabled = true
			if err := d.ingest.StartCamera(cam); err != nil {
				d.logger.Warn("camera ingest start failed",
					logging.Error(err),
					logging.String(logging.FieldCameraID, id))
			}
		} else {
			d.ingest.StopCamera(id)
			_ = d.store.SetCameraState(ctx, id, store.CameraDisabled, "disabled by operator")
		}
	}
	return d.store.CameraByID(ctx, id)
}

func (d *Daemon) invalidateCameras() {
	if d.caches != nil {
		d.caches.InvalidateCameras()
	}
}
