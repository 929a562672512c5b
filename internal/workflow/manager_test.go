package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus/internal/logging"
	"argus/internal/services"
	"argus/internal/store"
	"argus/internal/testsupport"
	"argus/internal/workflow"
)

func TestManagerRunsSegmentThroughPipeline(t *testing.T) {
	fx := newPipelineFixture(t, workflow.Options{})
	fx.analyzer.onExecute = func(seg *store.Segment) {
		seg.AnalysisJSON = `{"objects":[]}`
	}
	seg := testsupport.NewSegment(t, fx.store, fx.camera.ID, "/tmp/porch-0001.mjpeg")

	fx.start(t)

	final := waitForStatus(t, fx.store, seg.ID, store.StatusCompleted, 15*time.Second)
	if final.ProgressStage != "Completed" {
		t.Errorf("ProgressStage = %q, want Completed", final.ProgressStage)
	}
	if final.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", final.ProgressPercent)
	}
	if final.LastHeartbeat != nil {
		t.Errorf("LastHeartbeat = %v, want nil after completion", final.LastHeartbeat)
	}
	if final.AnalysisJSON == "" {
		t.Error("analyzer mutation was not persisted")
	}
	for _, st := range []*stubStage{fx.analyzer, fx.evaluator, fx.dispatcher} {
		if got := st.executedCount(); got != 1 {
			t.Errorf("stage %s executed %d times, want 1", st.name, got)
		}
	}
}

func TestManagerMarksPlainFailureFailed(t *testing.T) {
	fx := newPipelineFixture(t, workflow.Options{})
	fx.analyzer.executeErr = errors.New("decoder crashed")
	seg := testsupport.NewSegment(t, fx.store, fx.camera.ID, "/tmp/porch-0002.mjpeg")

	fx.start(t)

	final := waitForStatus(t, fx.store, seg.ID, store.StatusFailed, 15*time.Second)
	if final.ErrorMessage != "decoder crashed" {
		t.Errorf("ErrorMessage = %q", final.ErrorMessage)
	}
	if final.ProgressStage != "Failed" {
		t.Errorf("ProgressStage = %q, want Failed", final.ProgressStage)
	}
	if fx.evaluator.executedCount() != 0 {
		t.Error("evaluator ran after analyzer failure")
	}
}

func TestManagerRoutesValidationFailureToReview(t *testing.T) {
	fx := newPipelineFixture(t, workflow.Options{})
	fx.evaluator.executeErr = services.Wrap(
		services.ErrValidation, "evaluator", "parse", "analysis payload is malformed", nil,
	)
	seg := testsupport.NewSegment(t, fx.store, fx.camera.ID, "/tmp/porch-0003.mjpeg")

	fx.start(t)

	final := waitForStatus(t, fx.store, seg.ID, store.StatusReview, 15*time.Second)
	if !final.NeedsReview {
		t.Error("NeedsReview not set")
	}
	if final.ReviewReason == "" {
		t.Error("ReviewReason is empty")
	}
	if fx.dispatcher.executedCount() != 0 {
		t.Error("dispatcher ran after evaluator parked the segment")
	}
}

func TestManagerPrepareFailureIsRecorded(t *testing.T) {
	fx := newPipelineFixture(t, workflow.Options{})
	fx.analyzer.prepareErr = errors.New("segment file missing")
	seg := testsupport.NewSegment(t, fx.store, fx.camera.ID, "/tmp/porch-0004.mjpeg")

	fx.start(t)

	final := waitForStatus(t, fx.store, seg.ID, store.StatusFailed, 15*time.Second)
	if final.ErrorMessage == "" {
		t.Error("ErrorMessage is empty after prepare failure")
	}
	if fx.analyzer.executedCount() != 0 {
		t.Error("Execute ran despite Prepare failure")
	}
}

func TestManagerPooledAnalysisFansOut(t *testing.T) {
	pool := newTestPool(2)
	fx := newPipelineFixture(t, workflow.Options{Pool: pool})
	fx.analyzer.delay = 500 * time.Millisecond

	segments := make([]*store.Segment, 0, 3)
	for i := 0; i < 3; i++ {
		segments = append(segments, testsupport.NewSegment(t, fx.store, fx.camera.ID, "/tmp/pool.mjpeg"))
	}

	fx.start(t)

	for _, seg := range segments {
		waitForStatus(t, fx.store, seg.ID, store.StatusCompleted, 20*time.Second)
	}
	if peak := fx.analyzer.peakConcurrency(); peak != 2 {
		t.Errorf("peak analyzer concurrency = %d, want 2", peak)
	}
	acquires, releases := pool.counts()
	if acquires != releases {
		t.Errorf("pool acquires %d != releases %d", acquires, releases)
	}
	if acquires < 3 {
		t.Errorf("pool acquires = %d, want at least one per segment", acquires)
	}
}

func TestManagerRollsBackInterruptedStage(t *testing.T) {
	fx := newPipelineFixture(t, workflow.Options{})
	fx.analyzer.blockOnCtx = true
	seg := testsupport.NewSegment(t, fx.store, fx.camera.ID, "/tmp/porch-0005.mjpeg")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fx.manager.Start(ctx); err != nil {
		t.Fatalf("manager.Start: %v", err)
	}

	waitForStatus(t, fx.store, seg.ID, store.StatusAnalyzing, 15*time.Second)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := fx.manager.Stop(stopCtx); err != nil {
		t.Fatalf("manager.Stop: %v", err)
	}

	final, err := fx.store.SegmentByID(context.Background(), seg.ID)
	if err != nil {
		t.Fatalf("SegmentByID: %v", err)
	}
	if final.Status != store.StatusRecorded {
		t.Fatalf("status after interrupt = %q, want recorded", final.Status)
	}
	if final.ProgressMessage != "Interrupted by shutdown" {
		t.Errorf("ProgressMessage = %q", final.ProgressMessage)
	}
	if final.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", final.ErrorMessage)
	}
}

func TestConfigureStagesRequiresAllHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, st, logging.NewNop(), nil)

	err := mgr.ConfigureStages(workflow.StageSet{Analyzer: &stubStage{name: "analyzer"}})
	if err == nil {
		t.Fatal("ConfigureStages accepted missing handlers")
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded without configured stages")
	}
}

func TestManagerStatusReportsState(t *testing.T) {
	fx := newPipelineFixture(t, workflow.Options{})
	ctx := context.Background()

	if summary := fx.manager.Status(ctx); summary.Running {
		t.Error("Running = true before Start")
	}

	fx.start(t)

	summary := fx.manager.Status(ctx)
	if !summary.Running {
		t.Error("Running = false after Start")
	}
	if summary.Workers != 1 {
		t.Errorf("Workers = %d, want 1 without a pool", summary.Workers)
	}
	for _, name := range []string{"analyzer", "evaluator", "dispatcher"} {
		health, ok := summary.StageHealth[name]
		if !ok {
			t.Errorf("StageHealth missing %q", name)
			continue
		}
		if !health.Ready {
			t.Errorf("stage %q reported not ready: %s", name, health.Detail)
		}
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, st, logging.NewNop(), nil)
	if err := mgr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}
