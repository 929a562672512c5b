package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/store"
)

// Source contributes samples to one sampler tick. Components register a
// Source instead of writing to the timeseries directly so every series
// shares a timestamp per tick.
type Source interface {
	Sample(ctx context.Context) []store.MetricPoint
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) []store.MetricPoint

func (f SourceFunc) Sample(ctx context.Context) []store.MetricPoint { return f(ctx) }

// Sampler periodically writes operational gauges to the metrics
// timeseries: queue depth per status, alert counts, cache hit rates,
// and whatever registered sources contribute.
type Sampler struct {
	cfg    *config.Config
	store  *store.Store
	caches *cache.Caches
	logger *slog.Logger

	mu      sync.Mutex
	sources []Source
}

// NewSampler builds the sampler. The cache argument may be nil.
func NewSampler(cfg *config.Config, st *store.Store, caches *cache.Caches, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sampler{
		cfg:    cfg,
		store:  st,
		caches: caches,
		logger: logging.NewComponentLogger(logger, "metrics"),
	}
}

// Register adds a source to future ticks. Safe to call while running.
func (s *Sampler) Register(src Source) {
	if src == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
}

// Run samples on the configured interval until the context ends.
func (s *Sampler) Run(ctx context.Context, wg *sync.WaitGroup) {
	if !s.cfg.Metrics.Enabled {
		s.logger.Debug("metrics sampler disabled")
		return
	}
	interval := time.Duration(s.cfg.Metrics.SampleIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("metrics sampler started",
			logging.Args(logging.Duration("sample_interval", interval))...)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SampleOnce(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("metrics sample failed", logging.Args(logging.Error(err))...)
				}
			}
		}
	}()
}

// SampleOnce collects every gauge and writes the batch in one
// transaction. All points in the batch share a timestamp.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	now := time.Now().UTC()
	points, err := s.collect(ctx, now)
	if err != nil {
		return err
	}
	return s.store.RecordMetrics(ctx, points)
}

func (s *Sampler) collect(ctx context.Context, now time.Time) ([]store.MetricPoint, error) {
	var points []store.MetricPoint
	add := func(name string, value float64) {
		points = append(points, store.MetricPoint{Name: name, Value: value, RecordedAt: now})
	}

	for _, status := range store.AllStatuses() {
		count, err := s.store.CountByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		add("queue_"+string(status), float64(count))
	}

	alertStats, err := s.store.AlertStats(ctx)
	if err != nil {
		return nil, err
	}
	add("alerts_pending", float64(alertStats[store.AlertPending]))
	add("alerts_dispatched", float64(alertStats[store.AlertDispatched]))
	add("alerts_failed", float64(alertStats[store.AlertFailed]))

	if s.caches != nil {
		for name, stats := range s.caches.Stats() {
			add("cache_"+name+"_hits", float64(stats.Hits))
			add("cache_"+name+"_misses", float64(stats.Misses))
		}
	}

	s.mu.Lock()
	sources := make([]Source, len(s.sources))
	copy(sources, s.sources)
	s.mu.Unlock()
	for _, src := range sources {
		for _, point := range src.Sample(ctx) {
			if point.RecordedAt.IsZero() {
				point.RecordedAt = now
			}
			points = append(points, point)
		}
	}
	return points, nil
}
