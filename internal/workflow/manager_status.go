package workflow

import (
	"context"

	"argus/internal/stage"
	"argus/internal/store"
)

// StatusSummary reports the manager's runtime state for the status API
// and CLI.
type StatusSummary struct {
	Running     bool
	Workers     int
	LastError   string
	LastSegment *store.Segment
	QueueStats  map[store.Status]int
	StageHealth map[string]stage.Health
}

// Status gathers queue counts and per-stage health alongside the
// manager's own runtime state.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{
		Running:     m.running,
		LastSegment: m.lastSegment.Clone(),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()

	if m.pool != nil {
		summary.Workers = m.pool.Size()
	} else {
		summary.Workers = 1
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.setLastError(err)
	} else {
		summary.QueueStats = stats
	}
	summary.StageHealth = m.StageHealth(ctx)
	return summary
}

// StageHealth runs every registered handler's health check.
func (m *Manager) StageHealth(ctx context.Context) map[string]stage.Health {
	health := make(map[string]stage.Health)
	for _, lane := range m.lanes {
		for _, ps := range lane.stages {
			if ps.handler == nil {
				continue
			}
			health[ps.name] = ps.handler.HealthCheck(ctx)
		}
	}
	return health
}

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastSegment(seg *store.Segment) {
	m.mu.Lock()
	m.lastSegment = seg.Clone()
	m.mu.Unlock()
}
