package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/notify"
	"argus/internal/store"
	"argus/internal/testsupport"
)

func TestBackoffDelaySchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.RetryDelaySeconds = 2
	cfg.Ingest.MaxRetryDelaySeconds = 30

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, expected := range want {
		if got := backoffDelay(&cfg, i+1); got != expected {
			t.Fatalf("attempt %d: delay = %s, want %s", i+1, got, expected)
		}
	}
}

func writeFrameDir(t *testing.T, count int) string {
	t.Helper()

	dir := t.TempDir()
	frames := testsupport.EncodeJPEGFrames(t, count, 64, 48)
	for i, frame := range frames {
		path := filepath.Join(dir, string(rune('a'+i))+".jpg")
		if err := os.WriteFile(path, frame, 0o644); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	return dir
}

func TestFileSourceReplaysDirectory(t *testing.T) {
	dir := writeFrameDir(t, 2)
	src := newFileSource(dir, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, err := src.Frames(ctx)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}

	var got []Frame
	for frame := range frames {
		got = append(got, frame)
		if len(got) == 5 {
			cancel()
		}
	}
	if len(got) < 5 {
		t.Fatalf("frames = %d, want at least 5 from looping replay", len(got))
	}
	if got[0].Sequence != 1 || got[4].Sequence != 5 {
		t.Fatalf("sequences = %d..%d, want 1..5", got[0].Sequence, got[4].Sequence)
	}
	if src.Err() != nil {
		t.Fatalf("Err = %v, want nil after cancel", src.Err())
	}
}

func TestFileSourceEmptyDirectory(t *testing.T) {
	src := newFileSource(t.TempDir(), 5)
	if _, err := src.Frames(context.Background()); err == nil {
		t.Fatal("Frames succeeded on empty directory")
	}
}

func TestSegmentWriterRollsOnByteLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.SegmentMaxBytes = 1
	cfg.Ingest.SegmentSeconds = 3600
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "front", "rtsp://example/front")

	w := newSegmentWriter(cfg, st, cam, logging.NewNop())
	frames := testsupport.EncodeJPEGFrames(t, 3, 32, 32)
	ctx := context.Background()
	now := time.Now().UTC()
	for i, data := range frames {
		if err := w.append(ctx, Frame{Sequence: uint64(i + 1), Timestamp: now, Data: data}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	count, err := st.CountByStatus(ctx, store.StatusRecorded)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if count != 3 {
		t.Fatalf("recorded segments = %d, want 3 with a one byte limit", count)
	}

	segments, err := st.ListSegments(ctx, store.SegmentFilter{CameraID: cam.ID})
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	for _, seg := range segments {
		if seg.FrameCount != 1 {
			t.Fatalf("segment %d frame count = %d, want 1", seg.ID, seg.FrameCount)
		}
		if _, err := os.Stat(seg.Path); err != nil {
			t.Fatalf("segment file missing: %v", err)
		}
	}

	updated, err := st.CameraByID(ctx, cam.ID)
	if err != nil {
		t.Fatalf("CameraByID: %v", err)
	}
	if updated.LastSeenAt == nil {
		t.Fatal("last_seen_at not updated on segment close")
	}
}

func TestSegmentWriterDropsWhenBufferFull(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.WriteBufferFrames = 1
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "gate", "rtsp://example/gate")

	w := newSegmentWriter(cfg, st, cam, logging.NewNop())
	frame := Frame{Sequence: 1, Timestamp: time.Now().UTC(), Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
	if !w.Offer(frame) {
		t.Fatal("first offer rejected with empty buffer")
	}
	if w.Offer(frame) {
		t.Fatal("second offer accepted with full buffer")
	}
	if got := w.dropped.Load(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestSegmentWriterFinalizesOnShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.SegmentSeconds = 3600
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "door", "rtsp://example/door")

	w := newSegmentWriter(cfg, st, cam, logging.NewNop())
	frames := testsupport.EncodeJPEGFrames(t, 2, 32, 32)
	for i, data := range frames {
		w.Offer(Frame{Sequence: uint64(i + 1), Timestamp: time.Now().UTC(), Data: data})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	count, err := st.CountByStatus(context.Background(), store.StatusRecorded)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if count != 1 {
		t.Fatalf("recorded segments = %d, want 1 partial segment finalized", count)
	}
}

// fakeSource refuses every connection so the handler's retry accounting
// can be observed without a network.
type fakeSource struct {
	calls *int
}

func (f *fakeSource) Frames(ctx context.Context) (<-chan Frame, error) {
	*f.calls++
	return nil, errors.New("connection refused")
}

func (f *fakeSource) Err() error { return nil }

func TestHandlerMarksCameraDegradedAfterRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.RetryDelaySeconds = 0
	cfg.Ingest.MaxRetryDelaySeconds = 0
	cfg.Ingest.MaxRetries = 3
	cfg.Ingest.CooldownSeconds = 3600
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "lobby", "rtsp://example/lobby")
	caches := cache.New(cfg)

	calls := 0
	w := newSegmentWriter(cfg, st, cam, logging.NewNop())
	h := newHandler(cfg, st, caches, notify.NewService(cfg), logging.NewNop(), cam, w)
	h.newSource = func(*config.Config, *store.Camera) (Source, error) {
		return &fakeSource{calls: &calls}, nil
	}
	// Backoffs pass instantly; the hour-long cooldown parks until the
	// test cancels.
	h.sleep = func(ctx context.Context, d time.Duration) bool {
		if d >= time.Minute {
			<-ctx.Done()
			return false
		}
		return ctx.Err() == nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.run(ctx)
	}()

	// Three failed rounds trip the degraded mark, then the handler
	// parks in its cooldown.
	deadline := time.After(5 * time.Second)
	for {
		updated, err := st.CameraByID(context.Background(), cam.ID)
		if err != nil {
			t.Fatalf("CameraByID: %v", err)
		}
		if updated.State == store.CameraDegraded {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("camera state = %s, want degraded", updated.State)
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if calls < 3 {
		t.Fatalf("connect attempts = %d, want at least 3", calls)
	}

	rows, err := st.ListAnalytics(context.Background(), store.AnalyticsFilter{Kind: "camera_degraded"})
	if err != nil {
		t.Fatalf("ListAnalytics: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("camera_degraded analytics rows = %d, want 1", len(rows))
	}

	final, err := st.CameraByID(context.Background(), cam.ID)
	if err != nil {
		t.Fatalf("CameraByID: %v", err)
	}
	if final.State != store.CameraOffline {
		t.Fatalf("state after stop = %s, want offline", final.State)
	}
}

func TestManagerCapturesFileCamera(t *testing.T) {
	dir := writeFrameDir(t, 3)
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.FrameRate = 50
	cfg.Ingest.SegmentSeconds = 3600
	st := testsupport.MustOpenStore(t, cfg)
	cam := testsupport.SeedCamera(t, st, "demo", "file://"+dir)
	caches := cache.New(cfg)

	m := NewManager(cfg, st, caches, notify.NewService(cfg), logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Running(cam.ID) {
		t.Fatal("handler not running for enabled camera")
	}

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := caches.Snapshot(cam.ID); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no snapshot cached from file source")
		case <-time.After(10 * time.Millisecond):
		}
	}

	m.Stop()
	if m.Running(cam.ID) {
		t.Fatal("handler still running after stop")
	}

	count, err := st.CountByStatus(context.Background(), store.StatusRecorded)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if count != 1 {
		t.Fatalf("recorded segments = %d, want 1 finalized on stop", count)
	}

	stats := m.Sample(context.Background())
	if len(stats) != 0 {
		t.Fatalf("metric points after stop = %d, want 0", len(stats))
	}
}
