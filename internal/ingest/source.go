package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"argus/internal/config"
	"argus/internal/store"
)

// Frame is one captured JPEG frame.
type Frame struct {
	Sequence  uint64
	Timestamp time.Time
	Data      []byte
	KeyFrame  bool
}

// Source yields frames from a camera stream. The channel closes when the
// stream ends or errors; Err reports why after the channel closes.
type Source interface {
	Frames(ctx context.Context) (<-chan Frame, error)
	Err() error
}

// NewSource selects a source implementation from the camera's stream URL.
// file:// URLs replay JPEG files from a directory; everything else is
// handed to ffmpeg.
func NewSource(cfg *config.Config, cam *store.Camera) (Source, error) {
	raw := strings.TrimSpace(cam.StreamURL)
	if raw == "" {
		return nil, fmt.Errorf("camera %s has no stream url", cam.Name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("camera %s stream url: %w", cam.Name, err)
	}
	if parsed.Scheme == "file" {
		return newFileSource(parsed.Path, cfg.Ingest.FrameRate), nil
	}
	return newFFmpegSource(cfg, raw), nil
}
