package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/mjpeg"
	"argus/internal/services"
	"argus/internal/stage"
	"argus/internal/store"
)

// maxSampledFrames bounds the frames held in memory per segment. A one
// minute segment at 5 fps with the default stride samples 60 frames; the
// cap only bites when an operator configures a pathological stride.
const maxSampledFrames = 120

// Stage runs the analyzer pipeline stage: it reads a recorded segment
// file, samples frames by stride, runs the three analyzers, fuses the
// results, and persists events plus the analysis document.
//
// ONNX sessions are created lazily on first use so a daemon with
// misconfigured model paths still boots; the stage then runs motion-only
// and reports the missing analyzers through its health check. Session Run
// is safe for concurrent callers, so one detector and one classifier are
// shared across all pool workers.
type Stage struct {
	cfg   *config.Config
	store *store.Store

	mu     sync.Mutex
	logger *slog.Logger

	initOnce   sync.Once
	detector   *objectDetector
	classifier *sceneClassifier
	detErr     error
	sceneErr   error
}

// NewStage builds the analyzer stage handler.
func NewStage(cfg *config.Config, st *store.Store, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "analysis"),
	}
}

// SetLogger installs the workflow manager's stage-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

func (s *Stage) log() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// ensureAnalyzers creates the ONNX sessions once. Missing model paths are
// not errors; they leave the corresponding analyzer nil.
func (s *Stage) ensureAnalyzers() {
	s.initOnce.Do(func() {
		a := s.cfg.Analysis
		if strings.TrimSpace(a.DetectorModelPath) != "" {
			s.detector, s.detErr = newObjectDetector(a.DetectorModelPath, a.DetectorLabelsPath, a.RuntimeLibraryPath)
			if s.detErr != nil {
				s.log().Warn("object detector unavailable, continuing without it",
					logging.Args(logging.Error(s.detErr))...)
			}
		}
		if strings.TrimSpace(a.SceneModelPath) != "" {
			s.classifier, s.sceneErr = newSceneClassifier(a.SceneModelPath, a.SceneLabelsPath, a.RuntimeLibraryPath)
			if s.sceneErr != nil {
				s.log().Warn("scene classifier unavailable, continuing without it",
					logging.Args(logging.Error(s.sceneErr))...)
			}
		}
	})
}

// Close releases the ONNX sessions.
func (s *Stage) Close() error {
	var errs []error
	if err := s.detector.close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.classifier.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Prepare validates that the segment file is readable before the stage
// claims heartbeat time for it.
func (s *Stage) Prepare(ctx context.Context, seg *store.Segment) error {
	if strings.TrimSpace(seg.Path) == "" {
		return services.Wrap(services.ErrValidation, "analysis", "prepare", "segment has no file path", nil)
	}
	info, err := os.Stat(seg.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "analysis", "prepare",
				fmt.Sprintf("segment file %s is missing", seg.Path), nil)
		}
		return services.Wrap(services.ErrTransient, "analysis", "prepare", "stat segment file", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "analysis", "prepare",
			fmt.Sprintf("segment file %s is empty", seg.Path), nil)
	}
	seg.SetProgress("Analyzing", "", 0)
	return nil
}

// Execute analyzes the segment and writes its events and analysis
// document. The segment row is updated by the workflow manager after the
// stage returns; Execute only mutates the in-memory segment.
func (s *Stage) Execute(ctx context.Context, seg *store.Segment) error {
	s.ensureAnalyzers()
	started := time.Now()

	findings, err := s.analyzeFile(ctx, seg)
	if err != nil {
		return err
	}

	events, err := buildEvents(seg, findings, s.cfg.Analysis.MotionThreshold, s.cfg.Ingest.FrameRate)
	if err != nil {
		return services.Wrap(services.ErrValidation, "analysis", "events", "encode event metadata", err)
	}
	for _, event := range events {
		if _, err := s.store.InsertEvent(ctx, event); err != nil {
			return services.Wrap(services.ErrTransient, "analysis", "events", "persist event", err)
		}
	}

	envelope := buildEnvelope(findings, time.Now())
	encoded, err := envelope.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "analysis", "summary", "encode analysis document", err)
	}
	seg.AnalysisJSON = encoded
	seg.SetProgress("Analyzing", fmt.Sprintf("%d event(s)", len(events)), 100)

	s.log().Info("segment analyzed",
		logging.Args(
			logging.Int64(logging.FieldSegmentID, seg.ID),
			logging.Int("sampled_frames", findings.sampledFrames),
			logging.Int("events", len(events)),
			logging.Int("objects", len(findings.objects)),
			logging.Float64("motion_ratio", findings.motion.Ratio),
			logging.Duration("analysis_duration", time.Since(started)),
		)...)
	return nil
}

// analyzeFile streams the segment file through the samplers and
// analyzers.
func (s *Stage) analyzeFile(ctx context.Context, seg *store.Segment) (segmentFindings, error) {
	var findings segmentFindings

	file, err := os.Open(seg.Path)
	if err != nil {
		return findings, services.Wrap(services.ErrTransient, "analysis", "read", "open segment file", err)
	}
	defer file.Close()

	stride := s.cfg.Analysis.SampleStride
	if stride <= 0 {
		stride = 1
	}
	findings.stride = stride
	findings.degraded = s.detector == nil || s.classifier == nil

	var (
		grays   []*image.Gray
		indexes []int
		raw     []rawDetection
		middle  image.Image
	)

	scanner := mjpeg.NewScanner(file)
	frameIndex := -1
	for {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		data, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// A truncated trailing frame is normal after a hard
			// daemon stop; analyze what made it to disk.
			break
		}
		if err != nil {
			return findings, services.Wrap(services.ErrValidation, "analysis", "read", "segment stream is corrupt", err)
		}
		frameIndex++
		findings.totalFrames++
		if frameIndex%stride != 0 || findings.sampledFrames >= maxSampledFrames {
			continue
		}

		img, err := decodeFrame(data)
		if err != nil {
			s.log().Warn("skipping undecodable frame",
				logging.Args(
					logging.Int("frame_index", frameIndex),
					logging.Error(err),
				)...)
			continue
		}
		findings.sampledFrames++
		if seg.Width == 0 || seg.Height == 0 {
			seg.Width = img.Bounds().Dx()
			seg.Height = img.Bounds().Dy()
		}

		grays = append(grays, toGray(img))
		indexes = append(indexes, frameIndex)
		middle = img

		if s.detector != nil {
			hits, err := s.detector.detect(img, frameIndex)
			if err != nil {
				return findings, services.Wrap(services.ErrExternalTool, "analysis", "detect", "object detector inference", err)
			}
			raw = append(raw, hits...)
		}
	}

	if findings.sampledFrames == 0 {
		return findings, services.Wrap(services.ErrValidation, "analysis", "read", "segment contains no decodable frames", nil)
	}
	if seg.FrameCount == 0 {
		seg.FrameCount = int64(findings.totalFrames)
	}

	findings.motion = estimateMotion(grays, indexes)
	findings.objects = fuseDetections(raw, s.cfg.Analysis.MinScore,
		findings.motion.Ratio >= s.cfg.Analysis.MotionThreshold)

	if s.classifier != nil && middle != nil {
		scene, err := s.classifier.classify(middle)
		if err != nil {
			return findings, services.Wrap(services.ErrExternalTool, "analysis", "classify", "scene classifier inference", err)
		}
		if scene.Score >= s.cfg.Analysis.SceneMinScore && scene.Label != "" {
			findings.scene = &scene
		}
	}
	return findings, nil
}

// HealthCheck reports analyzer readiness. Missing or broken models leave
// the stage ready but degraded: motion analysis needs nothing external.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	s.ensureAnalyzers()

	var details []string
	if s.detector == nil {
		detail := "objects: model not configured"
		if s.detErr != nil {
			detail = "objects: " + s.detErr.Error()
		}
		details = append(details, detail)
	}
	if s.classifier == nil {
		detail := "scene: model not configured"
		if s.sceneErr != nil {
			detail = "scene: " + s.sceneErr.Error()
		}
		details = append(details, detail)
	}
	if len(details) == 0 {
		return stage.Healthy("analyzer")
	}
	return stage.Degraded("analyzer", "motion-only: "+strings.Join(details, "; "))
}
