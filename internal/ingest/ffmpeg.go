package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"argus/internal/config"
	"argus/internal/mjpeg"
)

// ffmpegSource execs ffmpeg against the camera URL and splits the MJPEG
// byte stream from stdout into frames.
type ffmpegSource struct {
	binary    string
	streamURL string
	frameRate int

	mu  sync.Mutex
	err error
}

func newFFmpegSource(cfg *config.Config, streamURL string) *ffmpegSource {
	frameRate := cfg.Ingest.FrameRate
	if frameRate <= 0 {
		frameRate = 5
	}
	return &ffmpegSource{
		binary:    cfg.FFmpegBinary(),
		streamURL: streamURL,
		frameRate: frameRate,
	}
}

func (f *ffmpegSource) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(f.streamURL, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args,
		"-i", f.streamURL,
		"-vf", "fps="+strconv.Itoa(f.frameRate),
		"-f", "mjpeg",
		"-q:v", "4",
		"-",
	)
	return args
}

// Frames starts ffmpeg and streams frames until the process exits or the
// context ends. Stderr is captured for the error report; ffmpeg at
// loglevel error only writes there when something is wrong.
func (f *ffmpegSource) Frames(ctx context.Context) (<-chan Frame, error) {
	cmd := exec.CommandContext(ctx, f.binary, f.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, limit: 4 << 10}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	frames := make(chan Frame)
	go func() {
		defer close(frames)

		scanner := mjpeg.NewScanner(stdout)
		var sequence uint64
		var scanErr error
		for {
			data, err := scanner.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					scanErr = err
				}
				break
			}
			sequence++
			frame := Frame{
				Sequence:  sequence,
				Timestamp: time.Now().UTC(),
				Data:      data,
				KeyFrame:  true,
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				scanErr = ctx.Err()
			}
			if scanErr != nil {
				break
			}
		}

		waitErr := cmd.Wait()
		f.setErr(f.finalError(ctx, scanErr, waitErr, sequence, stderr.String()))
	}()
	return frames, nil
}

// finalError picks the most useful error for the reconnect log line. A
// stream that delivered zero frames before dying is reported even when
// ffmpeg exited zero.
func (f *ffmpegSource) finalError(ctx context.Context, scanErr, waitErr error, frames uint64, stderr string) error {
	if ctx.Err() != nil {
		return nil
	}
	detail := strings.TrimSpace(stderr)
	switch {
	case scanErr != nil:
		return scanErr
	case waitErr != nil && detail != "":
		return fmt.Errorf("ffmpeg: %w: %s", waitErr, detail)
	case waitErr != nil:
		return fmt.Errorf("ffmpeg: %w", waitErr)
	case frames == 0:
		if detail != "" {
			return fmt.Errorf("ffmpeg produced no frames: %s", detail)
		}
		return errors.New("ffmpeg produced no frames")
	default:
		return errors.New("ffmpeg stream ended")
	}
}

func (f *ffmpegSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Err reports why the frame channel closed. Nil after a context cancel.
func (f *ffmpegSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// limitedWriter keeps the head of ffmpeg's stderr without letting a
// chatty process grow the buffer unbounded.
type limitedWriter struct {
	w     *strings.Builder
	limit int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if remaining := l.limit - l.w.Len(); remaining > 0 {
		if len(p) > remaining {
			l.w.Write(p[:remaining])
		} else {
			l.w.Write(p)
		}
	}
	return len(p), nil
}
