package workflow

import (
	"argus/internal/stage"
	"argus/internal/store"
)

// StageSet bundles the pipeline stage handlers the manager executes.
// All three must be registered before Start.
type StageSet struct {
	Analyzer   stage.Handler
	Evaluator  stage.Handler
	Dispatcher stage.Handler
}

// pipelineStage binds a handler to the status transition it owns.
type pipelineStage struct {
	name             string
	startStatus      store.Status
	processingStatus store.Status
	doneStatus       store.Status
	handler          stage.Handler
}

type laneKind string

const (
	laneAnalysis = laneKind(store.LaneAnalysis)
	lanePost     = laneKind(store.LanePost)
)

// laneState tracks the stages a lane executes and the status lookups the
// run loop needs. The analysis lane fans segments out to a worker pool;
// the post lane runs its stages strictly in order, one segment at a time.
type laneState struct {
	kind   laneKind
	stages []pipelineStage

	stageByStart  map[store.Status]pipelineStage
	claimStatuses []store.Status
	processing    map[store.Status]store.Status
}

// finalize derives the lookup tables once stages are registered.
func (l *laneState) finalize() {
	l.stageByStart = make(map[store.Status]pipelineStage, len(l.stages))
	l.claimStatuses = make([]store.Status, 0, len(l.stages))
	l.processing = make(map[store.Status]store.Status, len(l.stages))
	for _, ps := range l.stages {
		l.stageByStart[ps.startStatus] = ps
		l.claimStatuses = append(l.claimStatuses, ps.startStatus)
		l.processing[ps.processingStatus] = ps.startStatus
	}
}

func (l *laneState) stageForStatus(status store.Status) (pipelineStage, bool) {
	ps, ok := l.stageByStart[status]
	return ps, ok
}
