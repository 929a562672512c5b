package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"argus/internal/services"
)

// SchemaVersion identifies the analysis document layout stored on
// segments. Bump when the envelope shape changes incompatibly.
const SchemaVersion = 1

// Envelope is the analysis summary persisted in a segment's analysis_json
// column and served verbatim by the API.
type Envelope struct {
	Schema        int         `json:"schema"`
	AnalyzedAt    time.Time   `json:"analyzedAt"`
	SampledFrames int         `json:"sampledFrames"`
	TotalFrames   int         `json:"totalFrames"`
	FrameStride   int         `json:"frameStride"`
	MotionRatio   float64     `json:"motionRatio"`
	MotionScore   float64     `json:"motionScore"`
	Scene         *Scene      `json:"scene,omitempty"`
	Objects       []Detection `json:"objects"`
	Degraded      bool        `json:"degraded,omitempty"`
}

// Scene is the top classifier label attached to a segment.
type Scene struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Box is a detection rectangle normalized to the frame (0..1).
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the normalized area of the box.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// IoU returns the intersection-over-union overlap with another box.
func (b Box) IoU(o Box) float64 {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.W, o.X+o.W)
	y2 := min(b.Y+b.H, o.Y+o.H)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// clamp snaps the box into the unit square.
func (b Box) clamp() Box {
	b.X = min(max(b.X, 0), 1)
	b.Y = min(max(b.Y, 0), 1)
	b.W = min(max(b.W, 0), 1-b.X)
	b.H = min(max(b.H, 0), 1-b.Y)
	return b
}

// Detection is one fused object track across a segment's sampled frames.
type Detection struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Box        Box     `json:"box"`
	FrameIndex int     `json:"frameIndex"`
	Frames     int     `json:"frames"`
}

// Encode serializes the envelope for storage.
func (e *Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode analysis envelope: %w", err)
	}
	return string(data), nil
}

// ParseEnvelope decodes a stored analysis document. Errors carry the
// validation marker: a segment whose analysis cannot be read needs a human
// to look at it, not a retry.
func ParseEnvelope(raw string) (*Envelope, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, services.Wrap(services.ErrValidation, "analysis", "parse", "analysis document is empty", nil)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, services.Wrap(services.ErrValidation, "analysis", "parse", "analysis document is malformed", err)
	}
	if env.Schema > SchemaVersion {
		return nil, services.Wrap(services.ErrValidation, "analysis", "parse",
			fmt.Sprintf("analysis schema %d is newer than supported %d", env.Schema, SchemaVersion), nil)
	}
	return &env, nil
}
