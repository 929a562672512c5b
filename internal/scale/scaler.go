package scale

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/store"
)

// Scaler is the control loop over the analysis worker pool. Every
// interval it samples the backlog of recorded segments and resizes the
// pool by a single worker when a watermark has been breached for enough
// consecutive samples. After any resize a cooldown window ignores
// breaches, so the loop converges instead of oscillating when the
// backlog hovers near a watermark.
type Scaler struct {
	cfg    *config.Config
	store  *store.Store
	pool   *Pool
	logger *slog.Logger

	now func() time.Time

	highStreak    int
	lowStreak     int
	cooldownUntil time.Time
}

// NewScaler builds the control loop around an existing pool.
func NewScaler(cfg *config.Config, st *store.Store, pool *Pool, logger *slog.Logger) *Scaler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scaler{
		cfg:    cfg,
		store:  st,
		pool:   pool,
		logger: logging.NewComponentLogger(logger, "scaling"),
		now:    time.Now,
	}
}

// Run samples on the configured interval until the context ends.
func (s *Scaler) Run(ctx context.Context, wg *sync.WaitGroup) {
	interval := time.Duration(s.cfg.Scaling.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("scaling loop started",
			logging.Args(
				logging.Int("min_workers", s.cfg.Scaling.MinWorkers),
				logging.Int("max_workers", s.cfg.Scaling.MaxWorkers),
				logging.Duration("interval", interval),
			)...)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.step(ctx)
			}
		}
	}()
}

// step runs one control cycle. Backlog is measured from the store rather
// than goroutine counts so externally inserted segments count too.
func (s *Scaler) step(ctx context.Context) {
	backlog, err := s.store.CountByStatus(ctx, store.StatusRecorded)
	if err != nil {
		s.logger.Warn("backlog sample failed", logging.Args(logging.Error(err))...)
		return
	}

	if s.now().Before(s.cooldownUntil) {
		return
	}

	switch {
	case backlog > s.cfg.Scaling.HighWatermark:
		s.highStreak++
		s.lowStreak = 0
	case backlog < s.cfg.Scaling.LowWatermark:
		s.lowStreak++
		s.highStreak = 0
	default:
		s.highStreak = 0
		s.lowStreak = 0
	}

	cycles := s.cfg.Scaling.BreachCycles
	if cycles < 1 {
		cycles = 1
	}
	size := s.pool.Size()
	switch {
	case s.highStreak >= cycles && size < s.cfg.Scaling.MaxWorkers:
		s.resize(ctx, size+1, backlog, "scale_up")
	case s.lowStreak >= cycles && size > s.cfg.Scaling.MinWorkers:
		s.resize(ctx, size-1, backlog, "scale_down")
	}
}

// resize applies a single-step pool change and arms the cooldown.
func (s *Scaler) resize(ctx context.Context, workers, backlog int, kind string) {
	s.pool.Resize(workers)
	s.highStreak = 0
	s.lowStreak = 0
	s.cooldownUntil = s.now().Add(time.Duration(s.cfg.Scaling.CooldownSeconds) * time.Second)

	logging.WarnWithContext(s.logger, "analysis pool resized", kind,
		logging.Int("workers", workers),
		logging.Int("backlog", backlog),
		logging.String(logging.FieldDecisionType, "scaling"),
	)
	detail, err := json.Marshal(map[string]any{"workers": workers, "backlog": backlog})
	if err == nil {
		if err := s.store.RecordAnalytics(ctx, kind, "", string(detail)); err != nil {
			s.logger.Warn("analytics write failed", logging.Args(logging.Error(err))...)
		}
	}
	if err := s.store.RecordMetric(ctx, store.MetricPoint{
		Name:       "analysis_workers",
		Value:      float64(workers),
		RecordedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("metric write failed", logging.Args(logging.Error(err))...)
	}
}
