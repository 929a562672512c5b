package analysis

import "image"

const (
	// motionLumaDelta is the per-pixel luma change that counts as motion.
	// JPEG re-encode noise on a static scene stays well below it.
	motionLumaDelta = 25
	// motionSaturation is the changed-pixel ratio treated as full-score
	// motion: a quarter of the frame changing is as urgent as all of it.
	motionSaturation = 0.25
)

// motionResult is the peak frame-to-frame difference across a segment's
// sampled frames.
type motionResult struct {
	// Ratio is the fraction of pixels that changed in the busiest
	// consecutive pair.
	Ratio float64
	// Score is Ratio scaled against motionSaturation and capped at 1.
	Score float64
	// FrameIndex is the raw index of the frame where peak motion landed.
	FrameIndex int
}

// estimateMotion diffs consecutive sampled frames on their luma channel.
// indexes maps each sampled frame back to its raw index in the segment.
func estimateMotion(frames []*image.Gray, indexes []int) motionResult {
	var result motionResult
	if len(frames) < 2 {
		return result
	}
	for i := 1; i < len(frames); i++ {
		ratio := diffRatio(frames[i-1], frames[i])
		if ratio > result.Ratio {
			result.Ratio = ratio
			if i < len(indexes) {
				result.FrameIndex = indexes[i]
			}
		}
	}
	result.Score = min(result.Ratio/motionSaturation, 1)
	return result
}

// diffRatio returns the fraction of pixels whose luma changed by more than
// motionLumaDelta. Mismatched frame sizes (a camera resolution change mid
// segment) compare over the common area.
func diffRatio(a, b *image.Gray) float64 {
	w := min(a.Bounds().Dx(), b.Bounds().Dx())
	h := min(a.Bounds().Dy(), b.Bounds().Dy())
	if w == 0 || h == 0 {
		return 0
	}

	changed := 0
	for y := 0; y < h; y++ {
		rowA := a.Pix[y*a.Stride:]
		rowB := b.Pix[y*b.Stride:]
		for x := 0; x < w; x++ {
			delta := int(rowA[x]) - int(rowB[x])
			if delta < 0 {
				delta = -delta
			}
			if delta > motionLumaDelta {
				changed++
			}
		}
	}
	return float64(changed) / float64(w*h)
}
