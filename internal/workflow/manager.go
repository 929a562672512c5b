package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/notify"
	"argus/internal/store"
)

// Pool bounds concurrent analysis stage executions. Acquire blocks until a
// slot is free or the context ends; every successful Acquire is paired with
// a Release. Implementations may resize the bound while the manager runs.
type Pool interface {
	Acquire(ctx context.Context) error
	Release()
	Size() int
}

// Manager drives segments through the pipeline lanes.
type Manager struct {
	store     *store.Store
	cfg       *config.Config
	logger    *slog.Logger
	notifier  notify.Service
	heartbeat *HeartbeatMonitor
	pool      Pool

	lanes              map[laneKind]*laneState
	pollInterval       time.Duration
	errorRetryInterval time.Duration

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastSegment *store.Segment
}

// Options adjusts manager construction beyond the defaults derived from
// configuration.
type Options struct {
	// Pool bounds concurrent analysis stage executions. When nil the
	// analysis lane processes one segment at a time.
	Pool Pool
	// Heartbeat overrides the monitor built from config. Tests use this
	// to shrink intervals.
	Heartbeat *HeartbeatMonitor
}

// NewManager builds a manager with defaults from configuration.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notify.Service) *Manager {
	return NewManagerWithOptions(cfg, st, logger, notifier, Options{})
}

// NewManagerWithOptions builds a manager with explicit overrides.
func NewManagerWithOptions(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notify.Service, opts Options) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:    st,
		cfg:      cfg,
		logger:   logger,
		notifier: notifier,
		pool:     opts.Pool,
		lanes: map[laneKind]*laneState{
			laneAnalysis: {kind: laneAnalysis},
			lanePost:     {kind: lanePost},
		},
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 5 * time.Second
	}
	if m.errorRetryInterval <= 0 {
		m.errorRetryInterval = m.pollInterval
	}
	m.heartbeat = opts.Heartbeat
	if m.heartbeat == nil {
		m.heartbeat = NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		)
	}
	return m
}

// Heartbeat exposes the monitor for status reporting and tests.
func (m *Manager) Heartbeat() *HeartbeatMonitor {
	return m.heartbeat
}

// Running reports whether lane runners are active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
