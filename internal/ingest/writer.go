package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"argus/internal/config"
	"argus/internal/fileutil"
	"argus/internal/logging"
	"argus/internal/store"
	"argus/internal/textutil"
)

// segmentWriter appends frames to an .mjpeg segment file and rolls to a
// new file when the segment reaches its time or byte limit. Each closed
// file becomes a recorded row for the analysis pipeline.
//
// Offer never blocks: when the write buffer is full the incoming frame is
// dropped and counted. Capture latency beats segment completeness.
type segmentWriter struct {
	cfg    *config.Config
	store  *store.Store
	camera *store.Camera
	logger *slog.Logger

	frames chan Frame

	dropped  atomic.Uint64
	written  atomic.Uint64
	segments atomic.Uint64

	file       *os.File
	path       string
	startedAt  time.Time
	frameCount int64
	byteSize   int64
}

func newSegmentWriter(cfg *config.Config, st *store.Store, cam *store.Camera, logger *slog.Logger) *segmentWriter {
	buffer := cfg.Ingest.WriteBufferFrames
	if buffer <= 0 {
		buffer = 64
	}
	return &segmentWriter{
		cfg:    cfg,
		store:  st,
		camera: cam,
		logger: logger,
		frames: make(chan Frame, buffer),
	}
}

// Offer hands a frame to the writer without blocking. The return value
// reports whether the frame was accepted.
func (w *segmentWriter) Offer(frame Frame) bool {
	select {
	case w.frames <- frame:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Run drains the buffer until the context ends, then finalizes any
// partial segment. The roll ticker closes time-limited segments even
// when the stream has gone quiet.
func (w *segmentWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.finalize(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			if w.file != nil && w.shouldRoll(time.Now().UTC()) {
				w.finalize(ctx)
			}
		case frame := <-w.frames:
			if err := w.append(ctx, frame); err != nil {
				w.logger.Error("segment write failed",
					logging.Args(
						logging.String(logging.FieldCameraID, w.camera.ID),
						logging.Error(err),
					)...)
			}
		}
	}
}

// drain empties whatever the capture loop managed to buffer before the
// shutdown so those frames land in the final segment.
func (w *segmentWriter) drain() {
	for {
		select {
		case frame := <-w.frames:
			if err := w.append(context.Background(), frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *segmentWriter) append(ctx context.Context, frame Frame) error {
	if w.file == nil {
		if err := w.open(frame.Timestamp); err != nil {
			return err
		}
	}
	if _, err := w.file.Write(frame.Data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.frameCount++
	w.byteSize += int64(len(frame.Data))
	w.written.Add(1)

	if w.shouldRoll(frame.Timestamp) {
		w.finalize(ctx)
	}
	return nil
}

func (w *segmentWriter) shouldRoll(now time.Time) bool {
	if maxBytes := w.cfg.Ingest.SegmentMaxBytes; maxBytes > 0 && w.byteSize >= maxBytes {
		return true
	}
	seconds := w.cfg.Ingest.SegmentSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return now.Sub(w.startedAt) >= time.Duration(seconds)*time.Second
}

func (w *segmentWriter) open(startedAt time.Time) error {
	dir := filepath.Join(w.cfg.SegmentDir(), textutil.SanitizeToken(w.camera.Name))
	if err := fileutil.EnsureDir(dir); err != nil {
		return err
	}
	path := filepath.Join(dir, startedAt.Format("20060102T150405.000")+".mjpeg")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("open segment: %w", err)
	}
	w.file = file
	w.path = path
	w.startedAt = startedAt
	w.frameCount = 0
	w.byteSize = 0
	return nil
}

// finalize closes the current file and registers the recorded segment.
// Empty files are removed instead of queued.
func (w *segmentWriter) finalize(ctx context.Context) {
	if w.file == nil {
		return
	}
	file, path := w.file, w.path
	frameCount, byteSize, startedAt := w.frameCount, w.byteSize, w.startedAt
	w.file = nil
	w.path = ""

	if err := file.Close(); err != nil {
		w.logger.Warn("segment close failed", logging.Args(logging.Error(err))...)
	}
	if frameCount == 0 {
		os.Remove(path)
		return
	}

	now := time.Now().UTC()
	seg, err := w.store.NewSegment(ctx, &store.Segment{
		CameraID:   w.camera.ID,
		Path:       path,
		Status:     store.StatusRecorded,
		StartedAt:  startedAt,
		EndedAt:    now,
		FrameCount: frameCount,
		ByteSize:   byteSize,
	})
	if err != nil {
		w.logger.Error("segment registration failed",
			logging.Args(
				logging.String(logging.FieldCameraID, w.camera.ID),
				logging.String("path", path),
				logging.Error(err),
			)...)
		return
	}
	if err := w.store.MarkCameraSeen(ctx, w.camera.ID, now); err != nil {
		w.logger.Warn("camera liveness update failed", logging.Args(logging.Error(err))...)
	}
	w.segments.Add(1)
	w.logger.Debug("segment recorded",
		logging.Args(
			logging.Int64(logging.FieldSegmentID, seg.ID),
			logging.String(logging.FieldCameraID, w.camera.ID),
			logging.Int64("frames", frameCount),
			logging.Int64("bytes", byteSize),
		)...)
}
