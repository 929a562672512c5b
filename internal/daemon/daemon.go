package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/deps"
	"argus/internal/ingest"
	"argus/internal/logging"
	"argus/internal/metrics"
	"argus/internal/notify"
	"argus/internal/preflight"
	"argus/internal/retention"
	"argus/internal/scale"
	"argus/internal/store"
	"argus/internal/workflow"
)

// Components bundles the services the daemon owns. Store and Workflow are
// required; the rest are optional and skipped when nil so tests can wire a
// minimal daemon.
type Components struct {
	Store      *store.Store
	Workflow   *workflow.Manager
	Ingest     *ingest.Manager
	Caches     *cache.Caches
	Notifier   notify.Service
	Scaler     *scale.Scaler
	Janitor    *retention.Janitor
	Sampler    *metrics.Sampler
	LogHub     *logging.StreamHub
	LogArchive *logging.EventArchive
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	ingest   *ingest.Manager
	caches   *cache.Caches
	notifier notify.Service
	scaler   *scale.Scaler
	janitor  *retention.Janitor
	sampler  *metrics.Sampler
	hub      *logging.StreamHub
	archive  *logging.EventArchive

	apiSrv *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Ingest       []ingest.CameraStats
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, comps Components) (*Daemon, error) {
	if cfg == nil || comps.Store == nil || comps.Workflow == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "argusd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    comps.Store,
		workflow: comps.Workflow,
		ingest:   comps.Ingest,
		caches:   comps.Caches,
		notifier: comps.Notifier,
		scaler:   comps.Scaler,
		janitor:  comps.Janitor,
		sampler:  comps.Sampler,
		hub:      comps.LogHub,
		archive:  comps.LogArchive,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches every wired service.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another argus daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// A crash can leave segments parked mid-stage; roll them back to the
	// start of their stage before the workflow begins claiming.
	reclaimed, err := d.store.ResetStuckProcessing(d.ctx)
	if err != nil {
		d.releaseStartup()
		return fmt.Errorf("reset stuck segments: %w", err)
	}
	if reclaimed > 0 {
		d.logger.Info("stuck segments reset",
			logging.Int64("segments", reclaimed),
			logging.String(logging.FieldEventType, "stuck_segments_reset"))
	}

	seeded, err := d.seedCameras(d.ctx)
	if err != nil {
		d.releaseStartup()
		return fmt.Errorf("seed cameras: %w", err)
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.releaseStartup()
		return fmt.Errorf("start workflow: %w", err)
	}

	if d.ingest != nil {
		if err := d.ingest.Start(d.ctx); err != nil {
			_ = d.workflow.Stop(context.Background())
			d.releaseStartup()
			return fmt.Errorf("start ingest: %w", err)
		}
		if d.sampler != nil {
			d.sampler.Register(d.ingest)
		}
	}
	if d.scaler != nil {
		d.scaler.Run(d.ctx, &d.wg)
	}
	if d.janitor != nil {
		d.janitor.Run(d.ctx, &d.wg)
	}
	if d.sampler != nil {
		d.sampler.Run(d.ctx, &d.wg)
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.logger.Warn("api server unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_server_init_failed"),
			logging.String(logging.FieldImpact, "HTTP API disabled for this run"))
	} else if srv != nil {
		if err := srv.start(d.ctx); err != nil {
			d.stopServices()
			d.releaseStartup()
			return err
		}
		d.apiSrv = srv
	}

	d.running.Store(true)
	d.logger.Info("argus daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("cameras", seeded))
	if d.notifier != nil {
		if err := d.notifier.NotifyDaemonStarted(d.ctx, seeded); err != nil {
			d.logger.Debug("startup notification failed", logging.Error(err))
		}
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.stopServices()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("argus daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"))
	if d.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.notifier.NotifyDaemonStopped(ctx, "shutdown"); err != nil {
			d.logger.Debug("shutdown notification failed", logging.Error(err))
		}
	}
}

func (d *Daemon) stopServices() {
	if d.apiSrv != nil {
		d.apiSrv.stop()
		d.apiSrv = nil
	}
	if d.ingest != nil {
		d.ingest.Stop()
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.workflow.Stop(stopCtx); err != nil {
		d.logger.Warn("workflow stop incomplete", logging.Error(err))
	}
	d.wg.Wait()
}

func (d *Daemon) releaseStartup() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.archive != nil {
		_ = d.archive.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// seedCameras upserts configured cameras so operators can declare their
// fleet in the config file. Returns the count of enabled cameras.
func (d *Daemon) seedCameras(ctx context.Context) (int, error) {
	enabled := 0
	for _, declared := range d.cfg.Cameras {
		cam := &store.Camera{
			Name:          declared.Name,
			StreamURL:     declared.StreamURL,
			Location:      declared.Location,
			Enabled:       declared.Enabled,
			RetentionDays: declared.RetentionDays,
		}
		stored, err := d.store.UpsertCameraByName(ctx, cam)
		if err != nil {
			return enabled, fmt.Errorf("seed camera %q: %w", declared.Name, err)
		}
		if stored.Enabled {
			enabled++
		}
	}
	if d.caches != nil && len(d.cfg.Cameras) > 0 {
		d.caches.InvalidateCameras()
	}
	return enabled, nil
}

// LogStream returns the in-memory log hub, when wired.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.hub
}

// LogArchive returns the on-disk log journal, when wired.
func (d *Daemon) LogArchive() *logging.EventArchive {
	return d.archive
}

// Snapshot returns the freshest cached frame for a camera.
func (d *Daemon) Snapshot(cameraID string) (cache.Snapshot, bool) {
	if d.caches == nil {
		return cache.Snapshot{}, false
	}
	return d.caches.Snapshot(cameraID)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
	if d.ingest != nil {
		status.Ingest = d.ingest.Stats()
	}
	return status
}
