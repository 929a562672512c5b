package analysis

import "sort"

const (
	// fuseIoU is the overlap at which same-label detections from
	// different frames are treated as one track.
	fuseIoU = 0.45
	// motionBoost floors fused object scores when the segment has
	// motion: a moving detection is more credible than a static one.
	motionBoost = 1.1
)

// track accumulates same-label detections across sampled frames. The
// best-scoring hit stays the representative box.
type track struct {
	label      string
	score      float64
	box        Box
	frameIndex int
	count      int
}

func (t *track) absorb(det rawDetection) {
	t.count++
	if det.score > t.score {
		t.score = det.score
		t.box = det.box
		t.frameIndex = det.frameIndex
	}
}

// fuseDetections collapses per-frame detections into per-segment tracks:
// same-label boxes with IoU >= fuseIoU merge, score is the max across the
// track, motion floors scores by motionBoost, and tracks below minScore
// drop.
func fuseDetections(raw []rawDetection, minScore float64, motion bool) []Detection {
	var tracks []*track
	for _, det := range raw {
		var best *track
		bestIoU := 0.0
		for _, tr := range tracks {
			if tr.label != det.label {
				continue
			}
			iou := tr.box.IoU(det.box)
			if iou >= fuseIoU && iou > bestIoU {
				best = tr
				bestIoU = iou
			}
		}
		if best == nil {
			tracks = append(tracks, &track{
				label:      det.label,
				score:      det.score,
				box:        det.box,
				frameIndex: det.frameIndex,
				count:      1,
			})
			continue
		}
		best.absorb(det)
	}

	out := make([]Detection, 0, len(tracks))
	for _, tr := range tracks {
		score := tr.score
		if motion {
			score = min(score*motionBoost, 1)
		}
		if score < minScore {
			continue
		}
		out = append(out, Detection{
			Label:      tr.label,
			Score:      score,
			Box:        tr.box,
			FrameIndex: tr.frameIndex,
			Frames:     tr.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Label < out[j].Label
	})
	return out
}
