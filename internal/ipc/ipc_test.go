package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"argus/internal/daemon"
	"argus/internal/ipc"
	"argus/internal/logging"
	"argus/internal/stage"
	"argus/internal/store"
	"argus/internal/testsupport"
	"argus/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *store.Segment) error { return nil }
func (noopStage) Execute(context.Context, *store.Segment) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	hub := logging.NewStreamHub(128)

	mgr := workflow.NewManager(cfg, st, logger, nil)
	mgr.ConfigureStages(workflow.StageSet{
		Analyzer:   noopStage{},
		Evaluator:  noopStage{},
		Dispatcher: noopStage{},
	})
	d, err := daemon.New(cfg, logger, daemon.Components{Store: st, Workflow: mgr, LogHub: hub})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "argusd.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if !strings.HasSuffix(status.DatabasePath, "argus.db") {
		t.Fatalf("unexpected database path: %s", status.DatabasePath)
	}

	addResp, err := client.CameraAdd(ipc.CameraAddRequest{
		Name:      "gate",
		StreamURL: "rtsp://cam.local/gate",
		Location:  "north fence",
	})
	if err != nil {
		t.Fatalf("CameraAdd failed: %v", err)
	}
	if addResp.Camera.ID == "" || !addResp.Camera.Enabled {
		t.Fatalf("unexpected added camera: %+v", addResp.Camera)
	}

	camList, err := client.CameraList()
	if err != nil {
		t.Fatalf("CameraList failed: %v", err)
	}
	if len(camList.Cameras) != 1 {
		t.Fatalf("expected 1 camera, got %d", len(camList.Cameras))
	}

	disabledResp, err := client.CameraSetEnabled(addResp.Camera.ID, false)
	if err != nil {
		t.Fatalf("CameraSetEnabled failed: %v", err)
	}
	if disabledResp.Camera.Enabled {
		t.Fatal("expected camera to be disabled")
	}

	notifyResp, err := client.AlertTest()
	if err != nil {
		t.Fatalf("AlertTest failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message == "" {
		t.Fatalf("expected unsent test with message, got %#v", notifyResp)
	}

	removeResp, err := client.CameraRemove(addResp.Camera.ID)
	if err != nil {
		t.Fatalf("CameraRemove failed: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected camera to be removed")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	// Queue inspection works against the store even while stopped.
	cam := testsupport.SeedCamera(t, st, "lot", "rtsp://cam.local/lot")
	segA := testsupport.NewSegment(t, st, cam.ID, filepath.Join(cfg.SegmentDir(), "lot-a.mjs"))
	segB := testsupport.NewSegment(t, st, cam.ID, filepath.Join(cfg.SegmentDir(), "lot-b.mjs"))
	segC := testsupport.NewSegment(t, st, cam.ID, filepath.Join(cfg.SegmentDir(), "lot-c.mjs"))
	segB.Status = store.StatusFailed
	if err := st.UpdateSegment(ctx, segB); err != nil {
		t.Fatalf("UpdateSegment segB: %v", err)
	}
	segC.Status = store.StatusAnalyzing
	if err := st.UpdateSegment(ctx, segC); err != nil {
		t.Fatalf("UpdateSegment segC: %v", err)
	}

	listResp, err := client.QueueList(ipc.QueueListRequest{})
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(listResp.Segments))
	}

	failedResp, err := client.QueueList(ipc.QueueListRequest{Statuses: []string{string(store.StatusFailed)}})
	if err != nil {
		t.Fatalf("QueueList failed filter: %v", err)
	}
	if len(failedResp.Segments) != 1 || failedResp.Segments[0].ID != segB.ID {
		t.Fatalf("expected failed segment %d, got %#v", segB.ID, failedResp.Segments)
	}

	describeResp, err := client.QueueDescribe(segA.ID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if describeResp.Segment.CameraID != cam.ID {
		t.Fatalf("unexpected described segment: %+v", describeResp.Segment)
	}

	resetResp, err := client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset failed: %v", err)
	}
	if resetResp.Updated != 1 {
		t.Fatalf("expected 1 segment reset, got %d", resetResp.Updated)
	}
	updatedC, err := st.SegmentByID(ctx, segC.ID)
	if err != nil {
		t.Fatalf("SegmentByID segC: %v", err)
	}
	if updatedC.Status != store.StatusRecorded {
		t.Fatalf("expected segC back at recorded after reset, got %s", updatedC.Status)
	}

	retryResp, err := client.QueueRetry(nil)
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 1 {
		t.Fatalf("expected 1 retried segment, got %d", retryResp.Updated)
	}
	segB.Status = store.StatusFailed
	if err := st.UpdateSegment(ctx, segB); err != nil {
		t.Fatalf("re-fail segB: %v", err)
	}

	clearFailedResp, err := client.QueueClearFailed()
	if err != nil {
		t.Fatalf("QueueClearFailed failed: %v", err)
	}
	if clearFailedResp.Removed != 1 {
		t.Fatalf("expected 1 failed segment removed, got %d", clearFailedResp.Removed)
	}

	segA.Status = store.StatusCompleted
	if err := st.UpdateSegment(ctx, segA); err != nil {
		t.Fatalf("complete segA: %v", err)
	}
	clearCompletedResp, err := client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted failed: %v", err)
	}
	if clearCompletedResp.Removed != 1 {
		t.Fatalf("expected 1 completed segment removed, got %d", clearCompletedResp.Removed)
	}

	healthResp, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if healthResp.Total != 1 || healthResp.Recorded != 1 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "argus.db") || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected db health: %#v", dbHealth)
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 segment cleared, got %d", clearResp.Removed)
	}

	status2, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status2.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestIPCAlertAndRuleCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	mgr := workflow.NewManager(cfg, st, logger, nil)
	mgr.ConfigureStages(workflow.StageSet{
		Analyzer:   noopStage{},
		Evaluator:  noopStage{},
		Dispatcher: noopStage{},
	})
	d, err := daemon.New(cfg, logger, daemon.Components{Store: st, Workflow: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "argusd.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})
	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	cam := testsupport.SeedCamera(t, st, "dock", "rtsp://cam.local/dock")
	alert, err := st.InsertAlert(ctx, &store.Alert{
		CameraID: cam.ID,
		Severity: store.SeverityCritical,
		Status:   store.AlertPending,
		Title:    "perimeter breach",
	})
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	listResp, err := client.AlertList(ipc.AlertListRequest{Status: string(store.AlertPending)})
	if err != nil {
		t.Fatalf("AlertList failed: %v", err)
	}
	if len(listResp.Alerts) != 1 || listResp.Alerts[0].UID != alert.UID {
		t.Fatalf("expected pending alert %s, got %#v", alert.UID, listResp.Alerts)
	}

	ackResp, err := client.AlertAck(alert.UID, "night shift")
	if err != nil {
		t.Fatalf("AlertAck failed: %v", err)
	}
	if ackResp.Alert.Status != string(store.AlertAcknowledged) {
		t.Fatalf("expected acknowledged alert, got %q", ackResp.Alert.Status)
	}

	if _, err := client.AlertAck("missing-uid", ""); err == nil {
		t.Fatal("expected error for unknown alert uid")
	}

	redeliverResp, err := client.AlertRedeliver()
	if err != nil {
		t.Fatalf("AlertRedeliver failed: %v", err)
	}
	if redeliverResp.Updated != 0 {
		t.Fatalf("expected no failed alerts to requeue, got %d", redeliverResp.Updated)
	}

	if _, err := st.AddRule(ctx, &store.Rule{
		Name:     "motion overnight",
		Enabled:  true,
		Severity: store.SeverityWarning,
	}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	ruleResp, err := client.RuleList()
	if err != nil {
		t.Fatalf("RuleList failed: %v", err)
	}
	if len(ruleResp.Rules) != 1 || ruleResp.Rules[0].Name != "motion overnight" {
		t.Fatalf("unexpected rules: %#v", ruleResp.Rules)
	}
}

func TestIPCLogTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	hub := logging.NewStreamHub(64)

	mgr := workflow.NewManager(cfg, st, logger, nil)
	mgr.ConfigureStages(workflow.StageSet{
		Analyzer:   noopStage{},
		Evaluator:  noopStage{},
		Dispatcher: noopStage{},
	})
	d, err := daemon.New(cfg, logger, daemon.Components{Store: st, Workflow: mgr, LogHub: hub})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "argusd.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})
	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	hub.Publish(logging.LogEvent{Level: "INFO", Message: "first"})
	hub.Publish(logging.LogEvent{Level: "INFO", Message: "second"})
	hub.Publish(logging.LogEvent{Level: "WARN", Message: "third"})

	resp, err := client.LogTail(ipc.LogTailRequest{Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp.Events))
	}
	if resp.Events[0].Message != "first" || resp.Events[1].Message != "second" {
		t.Fatalf("unexpected events: %#v", resp.Events)
	}

	followDone := make(chan struct{})
	go func(since uint64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Since: since, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Events) < 1 || resp.Events[len(resp.Events)-1].Message != "fourth" {
			t.Errorf("unexpected follow events: %#v", resp.Events)
		}
		close(followDone)
	}(resp.Next)

	time.Sleep(100 * time.Millisecond)
	hub.Publish(logging.LogEvent{Level: "INFO", Message: "fourth"})

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}
}
