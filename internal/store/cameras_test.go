package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus/internal/store"
	"argus/internal/testsupport"
)

func TestAddCameraRejectsDuplicateName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.AddCamera(ctx, &store.Camera{Name: "porch", StreamURL: "rtsp://one"}); err != nil {
		t.Fatalf("AddCamera failed: %v", err)
	}
	_, err := st.AddCamera(ctx, &store.Camera{Name: "porch", StreamURL: "rtsp://two"})
	if !errors.Is(err, store.ErrCameraExists) {
		t.Fatalf("expected ErrCameraExists, got %v", err)
	}
}

func TestUpsertCameraByNameKeepsIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	original, err := st.UpsertCameraByName(ctx, &store.Camera{Name: "gate", StreamURL: "rtsp://old", Enabled: true})
	if err != nil {
		t.Fatalf("UpsertCameraByName failed: %v", err)
	}

	if err := st.SetCameraState(ctx, original.ID, store.CameraStreaming, ""); err != nil {
		t.Fatalf("SetCameraState failed: %v", err)
	}

	updated, err := st.UpsertCameraByName(ctx, &store.Camera{Name: "gate", StreamURL: "rtsp://new", Enabled: false, RetentionDays: 7})
	if err != nil {
		t.Fatalf("UpsertCameraByName failed: %v", err)
	}
	if updated.ID != original.ID {
		t.Fatalf("expected identity kept, got %s vs %s", updated.ID, original.ID)
	}
	if updated.StreamURL != "rtsp://new" || updated.Enabled || updated.RetentionDays != 7 {
		t.Fatalf("expected config fields updated: %#v", updated)
	}
	if updated.State != store.CameraStreaming {
		t.Fatalf("expected runtime state kept, got %s", updated.State)
	}
}

func TestSetCameraStateAndSeen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cam := testsupport.SeedCamera(t, st, "yard", "rtsp://example/yard")

	if err := st.SetCameraState(ctx, cam.ID, store.CameraDegraded, "connect refused"); err != nil {
		t.Fatalf("SetCameraState failed: %v", err)
	}
	seen := time.Now().UTC().Truncate(time.Second)
	if err := st.MarkCameraSeen(ctx, cam.ID, seen); err != nil {
		t.Fatalf("MarkCameraSeen failed: %v", err)
	}

	fetched, err := st.CameraByID(ctx, cam.ID)
	if err != nil {
		t.Fatalf("CameraByID failed: %v", err)
	}
	if fetched.State != store.CameraDegraded || fetched.StateDetail != "connect refused" {
		t.Fatalf("unexpected camera state: %#v", fetched)
	}
	if fetched.LastSeenAt == nil || !fetched.LastSeenAt.Equal(seen) {
		t.Fatalf("expected last seen %v, got %v", seen, fetched.LastSeenAt)
	}
}

func TestRemoveCameraCascadesSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cam := testsupport.SeedCamera(t, st, "dock", "rtsp://example/dock")
	seg := testsupport.NewSegment(t, st, cam.ID, "/tmp/cascade.mjpeg")

	removed, err := st.RemoveCamera(ctx, cam.ID)
	if err != nil {
		t.Fatalf("RemoveCamera failed: %v", err)
	}
	if !removed {
		t.Fatal("expected camera removed")
	}

	gone, err := st.SegmentByID(ctx, seg.ID)
	if err != nil {
		t.Fatalf("SegmentByID failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected segment cascade deleted, got %#v", gone)
	}
}

func TestListCamerasOrdersByName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedCamera(t, st, "zeta", "rtsp://example/z")
	testsupport.SeedCamera(t, st, "alpha", "rtsp://example/a")

	cameras, err := st.ListCameras(context.Background())
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(cameras) != 2 || cameras[0].Name != "alpha" || cameras[1].Name != "zeta" {
		t.Fatalf("unexpected camera ordering: %#v", cameras)
	}
}
