package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"argus/internal/logging"
)

// Start launches the lane runners and the heartbeat reclaim loop. It
// returns an error when stages are missing or the manager already runs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("workflow: manager already running")
	}
	if !m.stagesConfigured() {
		m.mu.Unlock()
		return fmt.Errorf("workflow: stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.heartbeat.StartLoop(runCtx, &m.wg)
	for _, lane := range m.lanes {
		m.wg.Add(1)
		go m.runLane(runCtx, lane)
	}

	m.logger.Info("workflow started",
		logging.Args(
			logging.Duration("poll_interval", m.pollInterval),
			logging.Duration("heartbeat_timeout", m.heartbeat.Timeout()),
		)...)
	return nil
}

// Stop cancels the lane runners and waits for in-flight stages to settle.
// The context bounds how long the wait may take.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("workflow: shutdown wait: %w", ctx.Err())
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	if err == nil {
		m.logger.Info("workflow stopped")
	}
	return err
}

// runLane claims and executes segments for one lane until the context
// ends. The analysis lane fans work out through the pool when one is
// configured; the post lane always runs serially.
func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	logger := m.laneLogger(lane)
	logger.Info("lane runner started", logging.Args(logging.Int("stages", len(lane.stages)))...)
	defer logger.Info("lane runner stopped")

	pooled := lane.kind == laneAnalysis && m.pool != nil
	for {
		if ctx.Err() != nil {
			return
		}
		var again bool
		if pooled {
			again = m.runPooledCycle(ctx, lane, logger)
		} else {
			again = m.runSerialCycle(ctx, lane, logger)
		}
		if !again {
			return
		}
	}
}

// runSerialCycle claims the next eligible segment and executes its stage
// inline. It returns false when the lane should stop.
func (m *Manager) runSerialCycle(ctx context.Context, lane *laneState, logger *slog.Logger) bool {
	seg, err := m.store.NextForStatuses(ctx, lane.claimStatuses...)
	if err != nil {
		return m.handleQueueError(ctx, logger, err)
	}
	if seg == nil {
		return m.waitForSegment(ctx)
	}

	ps, ok := lane.stageForStatus(seg.Status)
	if !ok {
		m.quarantineUnroutable(ctx, seg, logger)
		return true
	}
	if err := m.transitionToProcessing(ctx, ps, seg); err != nil {
		return m.handleQueueError(ctx, logger, err)
	}
	m.executeStage(ctx, lane, ps, seg)
	return true
}

// runPooledCycle claims the next segment while holding a pool slot and
// hands stage execution to a worker goroutine. The claim happens before
// the worker starts so the next cycle never sees the same segment.
func (m *Manager) runPooledCycle(ctx context.Context, lane *laneState, logger *slog.Logger) bool {
	if err := m.pool.Acquire(ctx); err != nil {
		return false
	}

	seg, err := m.store.NextForStatuses(ctx, lane.claimStatuses...)
	if err != nil {
		m.pool.Release()
		return m.handleQueueError(ctx, logger, err)
	}
	if seg == nil {
		m.pool.Release()
		return m.waitForSegment(ctx)
	}

	ps, ok := lane.stageForStatus(seg.Status)
	if !ok {
		m.pool.Release()
		m.quarantineUnroutable(ctx, seg, logger)
		return true
	}
	if err := m.transitionToProcessing(ctx, ps, seg); err != nil {
		m.pool.Release()
		return m.handleQueueError(ctx, logger, err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.pool.Release()
		m.executeStage(ctx, lane, ps, seg)
	}()
	return true
}

// handleQueueError records the failure and backs off before the next
// cycle. It returns false when the context ended during the backoff.
func (m *Manager) handleQueueError(ctx context.Context, logger *slog.Logger, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	m.setLastError(err)
	logger.Error("queue poll failed",
		logging.Args(
			logging.Error(err),
			logging.Duration("retry_in", m.errorRetryInterval),
		)...)
	return sleepContext(ctx, m.errorRetryInterval)
}

// waitForSegment idles until the next poll. It returns false when the
// context ended while waiting.
func (m *Manager) waitForSegment(ctx context.Context) bool {
	return sleepContext(ctx, m.pollInterval)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
