package workflow

import (
	"fmt"

	"argus/internal/store"
)

// ConfigureStages registers the stage handlers and fixes the status
// transitions each lane owns. Must be called before Start.
func (m *Manager) ConfigureStages(stages StageSet) error {
	if stages.Analyzer == nil {
		return fmt.Errorf("workflow: analyzer stage is required")
	}
	if stages.Evaluator == nil {
		return fmt.Errorf("workflow: evaluator stage is required")
	}
	if stages.Dispatcher == nil {
		return fmt.Errorf("workflow: dispatcher stage is required")
	}

	analysis := m.lanes[laneAnalysis]
	analysis.stages = []pipelineStage{
		{
			name:             "analyzer",
			startStatus:      store.StatusRecorded,
			processingStatus: store.StatusAnalyzing,
			doneStatus:       store.StatusAnalyzed,
			handler:          stages.Analyzer,
		},
	}
	analysis.finalize()

	post := m.lanes[lanePost]
	post.stages = []pipelineStage{
		{
			name:             "evaluator",
			startStatus:      store.StatusAnalyzed,
			processingStatus: store.StatusEvaluating,
			doneStatus:       store.StatusEvaluated,
			handler:          stages.Evaluator,
		},
		{
			name:             "dispatcher",
			startStatus:      store.StatusEvaluated,
			processingStatus: store.StatusDispatching,
			doneStatus:       store.StatusCompleted,
			handler:          stages.Dispatcher,
		},
	}
	post.finalize()
	return nil
}

// stagesConfigured reports whether every lane has at least one stage.
func (m *Manager) stagesConfigured() bool {
	for _, lane := range m.lanes {
		if len(lane.stages) == 0 {
			return false
		}
	}
	return true
}
