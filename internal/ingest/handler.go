package ingest

import (
	"context"
	"log/slog"
	"time"

	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/notify"
	"argus/internal/store"
)

// sourceFactory builds a fresh source per connection round so a broken
// stream gets a clean process or file handle on reconnect.
type sourceFactory func(cfg *config.Config, cam *store.Camera) (Source, error)

// handler owns one camera: it connects the source, feeds frames to the
// segment writer and snapshot cache, and applies the reconnect policy
// when the stream dies.
type handler struct {
	cfg      *config.Config
	store    *store.Store
	caches   *cache.Caches
	notifier notify.Service
	logger   *slog.Logger
	camera   *store.Camera
	writer   *segmentWriter

	newSource sourceFactory
	sleep     func(ctx context.Context, d time.Duration) bool
}

func newHandler(cfg *config.Config, st *store.Store, caches *cache.Caches, notifier notify.Service, logger *slog.Logger, cam *store.Camera, writer *segmentWriter) *handler {
	return &handler{
		cfg:       cfg,
		store:     st,
		caches:    caches,
		notifier:  notifier,
		logger:    logger,
		camera:    cam,
		writer:    writer,
		newSource: NewSource,
		sleep:     sleepCtx,
	}
}

// run captures until the context ends. Stream failures reconnect with
// exponential backoff; after max_retries consecutive failures the camera
// is marked degraded and the handler parks for the cooldown before a new
// round.
func (h *handler) run(ctx context.Context) {
	h.setState(ctx, store.CameraConnecting, "")
	h.recordAnalytics(ctx, "ingest_started", nil)

	attempts := 0
	degraded := false
	for {
		if ctx.Err() != nil {
			break
		}
		streamed := h.streamOnce(ctx, &degraded, &attempts)
		if ctx.Err() != nil {
			break
		}
		if streamed {
			continue
		}

		attempts++
		if maxRetries := h.cfg.Ingest.MaxRetries; maxRetries > 0 && attempts >= maxRetries {
			h.markDegraded(ctx, attempts)
			degraded = true
			attempts = 0
			if !h.sleep(ctx, h.cooldown()) {
				break
			}
			continue
		}
		if !h.sleep(ctx, backoffDelay(h.cfg, attempts)) {
			break
		}
	}

	h.setState(context.WithoutCancel(ctx), store.CameraOffline, "")
	h.recordAnalytics(context.WithoutCancel(ctx), "ingest_stopped", nil)
}

// streamOnce runs one connection round. It reports whether any frame
// arrived; the first frame of a round resets the failure counter.
func (h *handler) streamOnce(ctx context.Context, degraded *bool, attempts *int) bool {
	src, err := h.newSource(h.cfg, h.camera)
	if err == nil {
		var frames <-chan Frame
		frames, err = src.Frames(ctx)
		if err == nil {
			streaming := false
			for frame := range frames {
				if !streaming {
					streaming = true
					*attempts = 0
					h.setState(ctx, store.CameraStreaming, "")
					if *degraded {
						*degraded = false
						h.recordAnalytics(ctx, "camera_recovered", nil)
						if err := h.notifier.NotifyCameraRecovered(ctx, h.camera.Name); err != nil {
							h.logger.Warn("recovery notification failed", logging.Args(logging.Error(err))...)
						}
					}
				}
				h.caches.PutSnapshot(h.camera.ID, frame.Data, frame.Timestamp)
				h.writer.Offer(frame)
			}
			err = src.Err()
			if err == nil {
				// Clean close: context cancel.
				return streaming
			}
			if streaming {
				h.logger.Warn("camera stream lost",
					logging.Args(
						logging.String(logging.FieldCameraID, h.camera.ID),
						logging.Error(err),
					)...)
				return true
			}
		}
	}

	h.logger.Warn("camera connect failed",
		logging.Args(
			logging.String(logging.FieldCameraID, h.camera.ID),
			logging.Error(err),
		)...)
	return false
}

func (h *handler) markDegraded(ctx context.Context, attempts int) {
	h.setState(ctx, store.CameraDegraded, "stream unreachable")
	h.recordAnalytics(ctx, "camera_degraded", map[string]any{"attempts": attempts})
	if err := h.notifier.NotifyCameraDegraded(ctx, h.camera.Name, attempts); err != nil {
		h.logger.Warn("degraded notification failed", logging.Args(logging.Error(err))...)
	}
	logging.WarnWithContext(h.logger, "camera degraded", "camera_degraded",
		logging.String(logging.FieldCameraID, h.camera.ID),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldErrorHint, "check the stream url and network path"),
		logging.String(logging.FieldImpact, "no recording until the stream recovers"),
	)
}

func (h *handler) setState(ctx context.Context, state store.CameraState, detail string) {
	if err := h.store.SetCameraState(ctx, h.camera.ID, state, detail); err != nil {
		h.logger.Warn("camera state update failed", logging.Args(logging.Error(err))...)
	}
}

func (h *handler) recordAnalytics(ctx context.Context, kind string, detail map[string]any) {
	detailJSON := "{}"
	if len(detail) > 0 {
		encoded, err := encodeDetail(detail)
		if err != nil {
			return
		}
		detailJSON = encoded
	}
	if err := h.store.RecordAnalytics(ctx, kind, h.camera.ID, detailJSON); err != nil {
		h.logger.Warn("analytics write failed", logging.Args(logging.Error(err))...)
	}
}

func (h *handler) cooldown() time.Duration {
	seconds := h.cfg.Ingest.CooldownSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

// backoffDelay computes the reconnect delay for the nth consecutive
// failure: retry_delay doubled per attempt, capped at max_retry_delay.
func backoffDelay(cfg *config.Config, attempt int) time.Duration {
	base := time.Duration(cfg.Ingest.RetryDelaySeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	max := time.Duration(cfg.Ingest.MaxRetryDelaySeconds) * time.Second
	if max <= 0 {
		max = 60 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// sleepCtx waits for the duration unless the context ends first, in
// which case it reports false.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
