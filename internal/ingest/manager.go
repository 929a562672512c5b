package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/notify"
	"argus/internal/store"
)

// CameraStats is a point-in-time view of one capture handler.
type CameraStats struct {
	CameraID      string
	CameraName    string
	FramesWritten uint64
	FramesDropped uint64
	Segments      uint64
}

// Manager runs one capture handler per enabled camera and follows
// runtime enable and disable changes.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	caches   *cache.Caches
	notifier notify.Service
	logger   *slog.Logger

	mu       sync.Mutex
	ctx      context.Context
	handlers map[string]*runningHandler
}

type runningHandler struct {
	camera *store.Camera
	writer *segmentWriter
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds the ingest manager.
func NewManager(cfg *config.Config, st *store.Store, caches *cache.Caches, notifier notify.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		caches:   caches,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		handlers: make(map[string]*runningHandler),
	}
}

// Start launches a handler for every enabled camera. The context bounds
// all handlers; Stop waits for them.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	cameras, err := m.store.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	started := 0
	for _, cam := range cameras {
		if !cam.Enabled {
			continue
		}
		if err := m.StartCamera(cam); err != nil {
			m.logger.Error("camera start failed",
				logging.Args(
					logging.String(logging.FieldCameraID, cam.ID),
					logging.Error(err),
				)...)
			continue
		}
		started++
	}
	m.logger.Info("ingest started", logging.Args(logging.Int("cameras", started))...)
	return nil
}

// StartCamera launches the capture handler for one camera. Idempotent
// per camera: a second start while running is a no-op.
func (m *Manager) StartCamera(cam *store.Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return fmt.Errorf("ingest manager not started")
	}
	if _, running := m.handlers[cam.ID]; running {
		return nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	writer := newSegmentWriter(m.cfg, m.store, cam, m.logger)
	h := newHandler(m.cfg, m.store, m.caches, m.notifier, m.logger, cam, writer)

	running := &runningHandler{
		camera: cam,
		writer: writer,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.handlers[cam.ID] = running

	go func() {
		defer close(running.done)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			writer.Run(ctx)
		}()
		h.run(ctx)
		cancel()
		wg.Wait()
	}()
	return nil
}

// StopCamera cancels one camera's handler and waits for its partial
// segment to finalize.
func (m *Manager) StopCamera(cameraID string) {
	m.mu.Lock()
	running, ok := m.handlers[cameraID]
	if ok {
		delete(m.handlers, cameraID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	running.cancel()
	<-running.done
}

// Stop cancels every handler and waits for all of them.
func (m *Manager) Stop() {
	m.mu.Lock()
	handlers := make([]*runningHandler, 0, len(m.handlers))
	for id, running := range m.handlers {
		handlers = append(handlers, running)
		delete(m.handlers, id)
	}
	m.mu.Unlock()

	for _, running := range handlers {
		running.cancel()
	}
	for _, running := range handlers {
		<-running.done
	}
	m.logger.Info("ingest stopped")
}

// Running reports whether a camera currently has a capture handler.
func (m *Manager) Running(cameraID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[cameraID]
	return ok
}

// Stats snapshots every running handler's counters.
func (m *Manager) Stats() []CameraStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make([]CameraStats, 0, len(m.handlers))
	for _, running := range m.handlers {
		stats = append(stats, CameraStats{
			CameraID:      running.camera.ID,
			CameraName:    running.camera.Name,
			FramesWritten: running.writer.written.Load(),
			FramesDropped: running.writer.dropped.Load(),
			Segments:      running.writer.segments.Load(),
		})
	}
	return stats
}

// Sample contributes per-camera capture gauges to the metrics timeseries.
func (m *Manager) Sample(ctx context.Context) []store.MetricPoint {
	var points []store.MetricPoint
	for _, stats := range m.Stats() {
		points = append(points,
			store.MetricPoint{Name: "ingest_frames", CameraID: stats.CameraID, Value: float64(stats.FramesWritten)},
			store.MetricPoint{Name: "ingest_dropped", CameraID: stats.CameraID, Value: float64(stats.FramesDropped)},
			store.MetricPoint{Name: "ingest_segments", CameraID: stats.CameraID, Value: float64(stats.Segments)},
		)
	}
	return points
}
