package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"argus/internal/logging"
	"argus/internal/store"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 120 * time.Second
)

// HeartbeatMonitor returns segments whose heartbeat has gone stale back to
// the start of their stage so another worker can claim them. Stage
// execution refreshes the heartbeat on every interval tick, so a stale
// heartbeat means the owning worker died mid-stage.
type HeartbeatMonitor struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor builds a monitor. Non-positive durations fall back to
// defaults, and the timeout is stretched when it does not exceed the
// interval so a single missed tick never reclaims live work.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	if timeout <= interval {
		timeout = interval * 4
	}
	return &HeartbeatMonitor{
		store:    st,
		logger:   logger.With(logging.Args(logging.String(logging.FieldComponent, "heartbeat"))...),
		interval: interval,
		timeout:  timeout,
	}
}

// Interval returns how often in-flight segments refresh their heartbeat.
func (h *HeartbeatMonitor) Interval() time.Duration {
	return h.interval
}

// Timeout returns how long a heartbeat may age before the segment is
// reclaimed.
func (h *HeartbeatMonitor) Timeout() time.Duration {
	return h.timeout
}

// ReclaimStaleSegments rolls segments with expired heartbeats back to the
// start of their stage and reports how many were reclaimed.
func (h *HeartbeatMonitor) ReclaimStaleSegments(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-h.timeout)
	return h.store.ReclaimStaleProcessing(ctx, cutoff)
}

// StartLoop runs reclaim sweeps on the monitor interval until the context
// ends. The caller's wait group tracks the loop goroutine.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reclaimed, err := h.ReclaimStaleSegments(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Warn("heartbeat reclaim failed", logging.Args(logging.Error(err))...)
					continue
				}
				if reclaimed > 0 {
					h.logger.Info("reclaimed stale segments",
						logging.Args(
							logging.Int64("count", reclaimed),
							logging.Duration("timeout", h.timeout),
						)...)
				}
			}
		}
	}()
}
