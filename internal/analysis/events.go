package analysis

import (
	"encoding/json"
	"fmt"
	"time"

	"argus/internal/store"
)

// segmentFindings carries everything the analyzers produced for one
// segment before it is written out.
type segmentFindings struct {
	motion        motionResult
	scene         *Scene
	objects       []Detection
	sampledFrames int
	totalFrames   int
	stride        int
	degraded      bool
}

// buildEnvelope summarizes findings into the stored analysis document.
func buildEnvelope(f segmentFindings, analyzedAt time.Time) *Envelope {
	objects := f.objects
	if objects == nil {
		objects = []Detection{}
	}
	return &Envelope{
		Schema:        SchemaVersion,
		AnalyzedAt:    analyzedAt.UTC(),
		SampledFrames: f.sampledFrames,
		TotalFrames:   f.totalFrames,
		FrameStride:   f.stride,
		MotionRatio:   f.motion.Ratio,
		MotionScore:   f.motion.Score,
		Scene:         f.scene,
		Objects:       objects,
		Degraded:      f.degraded,
	}
}

// buildEvents converts findings into event rows: at most one motion event,
// at most one scene event, and one object event per fused track. The scene
// context rides along in every event's metadata so rules can match on it
// regardless of event type.
func buildEvents(seg *store.Segment, f segmentFindings, motionThreshold float64, frameRate int) ([]*store.Event, error) {
	var events []*store.Event

	if motionThreshold > 0 && f.motion.Ratio >= motionThreshold {
		metadata, err := encodeMetadata(f, map[string]any{
			"motionScore": f.motion.Score,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, &store.Event{
			CameraID:     seg.CameraID,
			SegmentID:    &seg.ID,
			Type:         store.EventMotion,
			Label:        "motion",
			Score:        f.motion.Score,
			FrameIndex:   f.motion.FrameIndex,
			OccurredAt:   occurredAt(seg, f.motion.FrameIndex, frameRate),
			MetadataJSON: metadata,
		})
	}

	if f.scene != nil {
		metadata, err := encodeMetadata(f, nil)
		if err != nil {
			return nil, err
		}
		events = append(events, &store.Event{
			CameraID:     seg.CameraID,
			SegmentID:    &seg.ID,
			Type:         store.EventScene,
			Label:        f.scene.Label,
			Score:        f.scene.Score,
			OccurredAt:   occurredAt(seg, 0, frameRate),
			MetadataJSON: metadata,
		})
	}

	for _, det := range f.objects {
		metadata, err := encodeMetadata(f, map[string]any{
			"box":    det.Box,
			"frames": det.Frames,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, &store.Event{
			CameraID:     seg.CameraID,
			SegmentID:    &seg.ID,
			Type:         store.EventObjectDetected,
			Label:        det.Label,
			Score:        det.Score,
			FrameIndex:   det.FrameIndex,
			OccurredAt:   occurredAt(seg, det.FrameIndex, frameRate),
			MetadataJSON: metadata,
			Objects: []store.EventObject{{
				Label: det.Label,
				Score: det.Score,
				X:     det.Box.X,
				Y:     det.Box.Y,
				W:     det.Box.W,
				H:     det.Box.H,
			}},
		})
	}

	return events, nil
}

// encodeMetadata merges the shared segment context with per-event fields.
func encodeMetadata(f segmentFindings, extra map[string]any) (string, error) {
	doc := map[string]any{
		"motionRatio": f.motion.Ratio,
	}
	if f.scene != nil {
		doc["scene"] = f.scene
	}
	for key, value := range extra {
		doc[key] = value
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode event metadata: %w", err)
	}
	return string(data), nil
}

// occurredAt estimates a frame's wall-clock time from the segment start
// and the capture frame rate.
func occurredAt(seg *store.Segment, frameIndex, frameRate int) time.Time {
	base := seg.StartedAt
	if base.IsZero() {
		base = seg.CreatedAt
	}
	if base.IsZero() {
		return time.Now().UTC()
	}
	if frameRate > 0 && frameIndex > 0 {
		offset := time.Duration(float64(frameIndex) / float64(frameRate) * float64(time.Second))
		return base.Add(offset)
	}
	return base
}
