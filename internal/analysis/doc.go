// Package analysis runs the per-segment frame analysis stage. Sampled
// keyframes are decoded and fed through three analyzers: an ONNX object
// detector, an ONNX scene classifier, and an algorithmic motion estimator.
// Per-frame detections are fused into per-segment tracks, written out as
// event rows, and summarized into the segment's analysis document.
//
// Model sessions are optional. Without configured models the stage
// degrades to motion-only analysis and reports the missing analyzers
// through its health check, so a camera-only deployment still produces
// motion events.
package analysis
