package analysis

import "testing"

func det(label string, score float64, box Box, frame int) rawDetection {
	return rawDetection{label: label, score: score, box: box, frameIndex: frame}
}

func TestFuseDetectionsMergesOverlappingSameLabel(t *testing.T) {
	raw := []rawDetection{
		det("person", 0.6, Box{X: 0.1, Y: 0.1, W: 0.3, H: 0.5}, 0),
		det("person", 0.8, Box{X: 0.12, Y: 0.1, W: 0.3, H: 0.5}, 5),
		det("person", 0.7, Box{X: 0.11, Y: 0.12, W: 0.3, H: 0.5}, 10),
	}

	out := fuseDetections(raw, 0.5, false)
	if len(out) != 1 {
		t.Fatalf("expected 1 fused track, got %d: %#v", len(out), out)
	}
	track := out[0]
	if track.Score != 0.8 {
		t.Fatalf("expected max score 0.8, got %v", track.Score)
	}
	if track.Frames != 3 {
		t.Fatalf("expected track to span 3 frames, got %d", track.Frames)
	}
	if track.FrameIndex != 5 {
		t.Fatalf("expected representative frame 5 (best score), got %d", track.FrameIndex)
	}
}

func TestFuseDetectionsKeepsDistinctTracks(t *testing.T) {
	raw := []rawDetection{
		det("person", 0.9, Box{X: 0.0, Y: 0.0, W: 0.2, H: 0.4}, 0),
		det("person", 0.8, Box{X: 0.7, Y: 0.5, W: 0.2, H: 0.4}, 0),
		det("car", 0.7, Box{X: 0.0, Y: 0.0, W: 0.2, H: 0.4}, 0),
	}

	out := fuseDetections(raw, 0.5, false)
	if len(out) != 3 {
		t.Fatalf("expected 3 tracks (two persons apart, one car), got %d: %#v", len(out), out)
	}
	// Sorted by score descending, label ascending on ties.
	if out[0].Label != "person" || out[0].Score != 0.9 {
		t.Fatalf("unexpected first track: %#v", out[0])
	}
}

func TestFuseDetectionsMotionBoostAndFloor(t *testing.T) {
	raw := []rawDetection{
		det("person", 0.5, Box{X: 0.1, Y: 0.1, W: 0.3, H: 0.5}, 0),
		det("cat", 0.3, Box{X: 0.6, Y: 0.6, W: 0.2, H: 0.2}, 0),
		det("dog", 0.95, Box{X: 0.4, Y: 0.1, W: 0.2, H: 0.2}, 0),
	}

	out := fuseDetections(raw, 0.5, true)
	if len(out) != 2 {
		t.Fatalf("expected boosted person and dog to survive, got %d: %#v", len(out), out)
	}
	if out[0].Label != "dog" {
		t.Fatalf("expected dog first, got %q", out[0].Label)
	}
	if out[0].Score != 1 {
		t.Fatalf("expected boosted dog score capped at 1, got %v", out[0].Score)
	}
	person := out[1]
	if person.Label != "person" {
		t.Fatalf("expected person second, got %q", person.Label)
	}
	if person.Score <= 0.5 || person.Score > 0.56 {
		t.Fatalf("expected person score boosted to ~0.55, got %v", person.Score)
	}
}

func TestFuseDetectionsMinScoreFilter(t *testing.T) {
	raw := []rawDetection{
		det("person", 0.4, Box{X: 0.1, Y: 0.1, W: 0.3, H: 0.5}, 0),
	}
	if out := fuseDetections(raw, 0.5, false); len(out) != 0 {
		t.Fatalf("expected below-threshold track to drop, got %#v", out)
	}
}

func TestBoxIoU(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 0.5, H: 0.5}
	cases := []struct {
		name string
		b    Box
		want float64
	}{
		{"identical", Box{X: 0, Y: 0, W: 0.5, H: 0.5}, 1},
		{"disjoint", Box{X: 0.6, Y: 0.6, W: 0.2, H: 0.2}, 0},
		{"half overlap", Box{X: 0.25, Y: 0, W: 0.5, H: 0.5}, 1.0 / 3.0},
	}
	for _, tc := range cases {
		got := a.IoU(tc.b)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: IoU = %v, want %v", tc.name, got, tc.want)
		}
	}
}
