package cache

import (
	"testing"
	"time"

	"argus/internal/store"
	"argus/internal/testsupport"
)

func TestSnapshotRoundTripAndMiss(t *testing.T) {
	c := New(testsupport.NewConfig(t))

	if _, ok := c.Snapshot("cam-1"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.PutSnapshot("cam-1", []byte("jpeg"), time.Now())
	snap, ok := c.Snapshot("cam-1")
	if !ok || string(snap.Data) != "jpeg" {
		t.Fatalf("expected cached snapshot, got %v %q", ok, snap.Data)
	}

	stats := c.Stats()["snapshots"]
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %+v", stats)
	}
}

func TestSnapshotTTLExpiry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.SnapshotTTLSeconds = 1
	c := New(cfg)

	c.PutSnapshot("cam-1", []byte("jpeg"), time.Now())
	if _, ok := c.Snapshot("cam-1"); !ok {
		t.Fatal("expected fresh snapshot to hit")
	}
	time.Sleep(1100 * time.Millisecond)
	if _, ok := c.Snapshot("cam-1"); ok {
		t.Fatal("expected snapshot to expire after TTL")
	}
}

func TestEventLRUEviction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.EventEntries = 2
	c := New(cfg)

	for id := int64(1); id <= 3; id++ {
		c.PutEvent(&store.Event{ID: id, Label: "person"})
	}
	if _, ok := c.Event(1); ok {
		t.Fatal("expected oldest event evicted at capacity 2")
	}
	if _, ok := c.Event(3); !ok {
		t.Fatal("expected newest event cached")
	}
}

func TestCameraListGenerationInvalidation(t *testing.T) {
	c := New(testsupport.NewConfig(t))

	if _, ok := c.CameraList(); ok {
		t.Fatal("expected miss before any store")
	}

	gen := c.CameraGeneration()
	c.StoreCameraList([]*store.Camera{{ID: "a"}}, gen)
	cameras, ok := c.CameraList()
	if !ok || len(cameras) != 1 {
		t.Fatalf("expected cached list, got %v %d", ok, len(cameras))
	}

	c.InvalidateCameras()
	if _, ok := c.CameraList(); ok {
		t.Fatal("expected list stale after invalidation")
	}

	// A list read before the write but stored after it must not serve.
	stale := c.CameraGeneration() - 1
	c.StoreCameraList([]*store.Camera{{ID: "old"}}, stale)
	if _, ok := c.CameraList(); ok {
		t.Fatal("expected stale-stamped list rejected")
	}
}
