package workflow_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/stage"
	"argus/internal/store"
	"argus/internal/testsupport"
	"argus/internal/workflow"
)

// stubStage is a scriptable stage handler. Execute can fail, block until
// cancellation, or mutate the segment before returning.
type stubStage struct {
	name       string
	prepareErr error
	executeErr error
	blockOnCtx bool
	onExecute  func(*store.Segment)
	delay      time.Duration

	mu          sync.Mutex
	executed    []int64
	inFlight    int
	maxInFlight int
}

func (s *stubStage) Prepare(ctx context.Context, seg *store.Segment) error {
	return s.prepareErr
}

func (s *stubStage) Execute(ctx context.Context, seg *store.Segment) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.blockOnCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.executeErr != nil {
		return s.executeErr
	}
	if s.onExecute != nil {
		s.onExecute(seg)
	}
	s.mu.Lock()
	s.executed = append(s.executed, seg.ID)
	s.mu.Unlock()
	return nil
}

func (s *stubStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubStage) SetLogger(*slog.Logger) {}

func (s *stubStage) executedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executed)
}

func (s *stubStage) peakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// testPool is a fixed-size semaphore implementing workflow.Pool.
type testPool struct {
	sem chan struct{}

	mu       sync.Mutex
	acquires int
	releases int
}

func newTestPool(size int) *testPool {
	return &testPool{sem: make(chan struct{}, size)}
}

func (p *testPool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		p.mu.Lock()
		p.acquires++
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *testPool) Release() {
	<-p.sem
	p.mu.Lock()
	p.releases++
	p.mu.Unlock()
}

func (p *testPool) Size() int { return cap(p.sem) }

func (p *testPool) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires, p.releases
}

type pipelineFixture struct {
	cfg        *config.Config
	store      *store.Store
	camera     *store.Camera
	analyzer   *stubStage
	evaluator  *stubStage
	dispatcher *stubStage
	manager    *workflow.Manager
}

func newPipelineFixture(t *testing.T, opts workflow.Options) *pipelineFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "porch", "rtsp://127.0.0.1/porch")

	fx := &pipelineFixture{
		cfg:        cfg,
		store:      st,
		camera:     cam,
		analyzer:   &stubStage{name: "analyzer"},
		evaluator:  &stubStage{name: "evaluator"},
		dispatcher: &stubStage{name: "dispatcher"},
	}
	fx.manager = workflow.NewManagerWithOptions(cfg, st, logging.NewNop(), nil, opts)
	if err := fx.manager.ConfigureStages(workflow.StageSet{
		Analyzer:   fx.analyzer,
		Evaluator:  fx.evaluator,
		Dispatcher: fx.dispatcher,
	}); err != nil {
		t.Fatalf("ConfigureStages: %v", err)
	}
	return fx
}

func (fx *pipelineFixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := fx.manager.Start(ctx); err != nil {
		cancel()
		t.Fatalf("manager.Start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := fx.manager.Stop(stopCtx); err != nil {
			t.Errorf("manager.Stop: %v", err)
		}
		cancel()
	})
}

func waitForStatus(t *testing.T, st *store.Store, id int64, want store.Status, timeout time.Duration) *store.Segment {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		seg, err := st.SegmentByID(context.Background(), id)
		if err != nil {
			t.Fatalf("SegmentByID: %v", err)
		}
		if seg.Status == want {
			return seg
		}
		if time.Now().After(deadline) {
			t.Fatalf("segment %d stuck in %q, want %q (error=%q)", id, seg.Status, want, seg.ErrorMessage)
		}
		time.Sleep(25 * time.Millisecond)
	}
}
