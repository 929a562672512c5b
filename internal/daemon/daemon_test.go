package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus/internal/daemon"
	"argus/internal/logging"
	"argus/internal/services"
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

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, st, logging.NewNop(), nil)
	mgr.ConfigureStages(workflow.StageSet{
		Analyzer:   noopStage{},
		Evaluator:  noopStage{},
		Dispatcher: noopStage{},
	})
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Components{Store: st, Workflow: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, st
}

func TestDaemonStartStop(t *testing.T) {
	d, st := newTestDaemon(t, testsupport.WithCamera("porch", "rtsp://cam.local/porch"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", status.PID)
	}

	cameras, err := st.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras: %v", err)
	}
	if len(cameras) != 1 || cameras[0].Name != "porch" {
		t.Fatalf("expected seeded camera porch, got %+v", cameras)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)

	newManaged := func() *daemon.Daemon {
		mgr := workflow.NewManager(cfg, st, logging.NewNop(), nil)
		mgr.ConfigureStages(workflow.StageSet{
			Analyzer:   noopStage{},
			Evaluator:  noopStage{},
			Dispatcher: noopStage{},
		})
		d, err := daemon.New(cfg, logging.NewNop(), daemon.Components{Store: st, Workflow: mgr})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		t.Cleanup(func() {
			d.Stop()
		})
		return d
	}

	first := newManaged()
	second := newManaged()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to be locked out")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("expected second instance to start after first stopped: %v", err)
	}
}

func TestDaemonCameraLifecycle(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	strptr := func(s string) *string { return &s }
	boolptr := func(b bool) *bool { return &b }

	if _, err := d.AddCamera(ctx, daemon.CameraParams{Name: strptr("driveway")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing stream url, got %v", err)
	}
	if _, err := d.AddCamera(ctx, daemon.CameraParams{
		Name:      strptr("driveway"),
		StreamURL: strptr("ftp://cam.local/driveway"),
	}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unsupported scheme, got %v", err)
	}

	cam, err := d.AddCamera(ctx, daemon.CameraParams{
		Name:      strptr("driveway"),
		StreamURL: strptr("rtsp://cam.local/driveway"),
		Location:  strptr("front"),
	})
	if err != nil {
		t.Fatalf("AddCamera: %v", err)
	}
	if cam.ID == "" || !cam.Enabled {
		t.Fatalf("expected enabled camera with id, got %+v", cam)
	}

	if _, err := d.AddCamera(ctx, daemon.CameraParams{
		Name:      strptr("driveway"),
		StreamURL: strptr("rtsp://cam.local/other"),
	}); !errors.Is(err, store.ErrCameraExists) {
		t.Fatalf("expected duplicate name conflict, got %v", err)
	}

	updated, err := d.UpdateCamera(ctx, cam.ID, daemon.CameraParams{Location: strptr("side gate")})
	if err != nil {
		t.Fatalf("UpdateCamera: %v", err)
	}
	if updated.Location != "side gate" {
		t.Fatalf("expected updated location, got %q", updated.Location)
	}
	if updated.StreamURL != cam.StreamURL {
		t.Fatalf("partial update should not touch stream url, got %q", updated.StreamURL)
	}

	disabled, err := d.SetCameraEnabled(ctx, cam.ID, false)
	if err != nil {
		t.Fatalf("SetCameraEnabled: %v", err)
	}
	if disabled.Enabled {
		t.Fatal("expected camera to be disabled")
	}

	if _, err := d.SetCameraEnabled(ctx, "no-such-camera", true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	if _, err := d.UpdateCamera(ctx, cam.ID, daemon.CameraParams{Enabled: boolptr(true), Name: strptr("")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}

	removed, err := d.RemoveCamera(ctx, cam.ID)
	if err != nil {
		t.Fatalf("RemoveCamera: %v", err)
	}
	if !removed {
		t.Fatal("expected camera to be removed")
	}
	removed, err = d.RemoveCamera(ctx, cam.ID)
	if err != nil {
		t.Fatalf("RemoveCamera second call: %v", err)
	}
	if removed {
		t.Fatal("expected second remove to report missing camera")
	}
}

func TestDaemonStartResetsStuckSegments(t *testing.T) {
	d, st := newTestDaemon(t)
	ctx := context.Background()

	cam := testsupport.SeedCamera(t, st, "drive", "rtsp://cam.local/drive")
	seg := testsupport.NewSegment(t, st, cam.ID, "/tmp/drive-0001.mjpeg")
	seg.Status = store.StatusAnalyzing
	if err := st.UpdateSegment(ctx, seg); err != nil {
		t.Fatalf("UpdateSegment: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Without the boot reset the segment has no heartbeat to expire and
	// would sit in analyzing forever. After the rollback the workflow
	// claims it from recorded and the noop stages run it to completion.
	deadline := time.Now().Add(15 * time.Second)
	for {
		updated, err := st.SegmentByID(ctx, seg.ID)
		if err != nil {
			t.Fatalf("SegmentByID: %v", err)
		}
		if updated.Status == store.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("segment status = %s, want completed", updated.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestDaemonManualAlert(t *testing.T) {
	d, st := newTestDaemon(t)
	ctx := context.Background()

	if _, err := d.CreateManualAlert(ctx, daemon.ManualAlertParams{Severity: "loud", Title: "noise"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown severity, got %v", err)
	}
	if _, err := d.CreateManualAlert(ctx, daemon.ManualAlertParams{Severity: "warning"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing title, got %v", err)
	}
	if _, err := d.CreateManualAlert(ctx, daemon.ManualAlertParams{
		Severity: "warning",
		Title:    "gate left open",
		Channels: []string{"pager"},
	}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown channel, got %v", err)
	}

	cam := testsupport.SeedCamera(t, st, "yard", "rtsp://cam.local/yard")
	alert, err := d.CreateManualAlert(ctx, daemon.ManualAlertParams{
		CameraID: cam.ID,
		Severity: "warning",
		Title:    "gate left open",
		Message:  "checked by operator",
		Channels: []string{"ntfy"},
	})
	if err != nil {
		t.Fatalf("CreateManualAlert: %v", err)
	}
	if alert.UID == "" || alert.Status != store.AlertPending {
		t.Fatalf("expected pending alert with uid, got %+v", alert)
	}
	if alert.ChannelsJSON != `["ntfy"]` {
		t.Fatalf("ChannelsJSON = %q, want [\"ntfy\"] pinned for dispatch", alert.ChannelsJSON)
	}

	acked, err := d.AcknowledgeAlert(ctx, alert.UID, "operator")
	if err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	if acked.Status != store.AlertAcknowledged {
		t.Fatalf("expected acknowledged status, got %s", acked.Status)
	}
	if _, err := d.AcknowledgeAlert(ctx, "missing-uid", "operator"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown alert, got %v", err)
	}
}
