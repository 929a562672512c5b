package services_test

import (
	"context"
	"testing"

	"argus/internal/services"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSegmentID(ctx, 42)
	ctx = services.WithCameraID(ctx, "cam-1")
	ctx = services.WithStage(ctx, "analyzer")
	ctx = services.WithLane(ctx, "analysis")
	ctx = services.WithRequestID(ctx, "req-abc")

	if id, ok := services.SegmentIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("segment id: got %d %v", id, ok)
	}
	if cam, ok := services.CameraIDFromContext(ctx); !ok || cam != "cam-1" {
		t.Fatalf("camera id: got %q %v", cam, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "analyzer" {
		t.Fatalf("stage: got %q %v", stage, ok)
	}
	if lane, ok := services.LaneFromContext(ctx); !ok || lane != "analysis" {
		t.Fatalf("lane: got %q %v", lane, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-abc" {
		t.Fatalf("request id: got %q %v", rid, ok)
	}
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected empty stage to be absent")
	}
	if _, ok := services.SegmentIDFromContext(context.Background()); ok {
		t.Fatal("expected missing segment id")
	}
}
