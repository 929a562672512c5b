package testsupport

import (
	"context"
	"testing"

	"argus/internal/config"
	"argus/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedCamera registers a camera for tests using the provided store.
func SeedCamera(t testing.TB, st *store.Store, name, streamURL string) *store.Camera {
	t.Helper()

	cam, err := st.AddCamera(context.Background(), &store.Camera{
		Name:      name,
		StreamURL: streamURL,
		Enabled:   true,
	})
	if err != nil {
		t.Fatalf("store.AddCamera: %v", err)
	}
	return cam
}

// NewSegment creates a recorded segment for tests using the provided store.
func NewSegment(t testing.TB, st *store.Store, cameraID, path string) *store.Segment {
	t.Helper()

	seg, err := st.NewSegment(context.Background(), &store.Segment{
		CameraID: cameraID,
		Path:     path,
	})
	if err != nil {
		t.Fatalf("store.NewSegment: %v", err)
	}
	return seg
}
