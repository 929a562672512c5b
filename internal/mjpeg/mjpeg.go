// Package mjpeg splits concatenated JPEG streams into frames. Both the
// capture path (ffmpeg mjpeg stdout) and the analysis path (segment files
// on disk) read through the same scanner.
//
// Frames are located by their SOI/EOI markers. Entropy-coded JPEG data
// escapes 0xFF bytes, so a bare EOI cannot appear inside a frame unless
// the frame embeds a thumbnail JPEG; ffmpeg's mjpeg output never does.
package mjpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
)

// DefaultMaxFrameBytes bounds a single frame. Streams that exceed it are
// treated as corrupt rather than buffered without limit.
const DefaultMaxFrameBytes = 32 << 20

// ErrFrameTooLarge reports a frame that exceeded the scanner's limit,
// which in practice means the stream lost an EOI marker.
var ErrFrameTooLarge = errors.New("mjpeg: frame exceeds size limit")

// Scanner reads one JPEG frame at a time from a concatenated stream.
type Scanner struct {
	r        *bufio.Reader
	maxFrame int
	buf      []byte
}

// NewScanner wraps r with the default frame size limit.
func NewScanner(r io.Reader) *Scanner {
	return NewScannerSize(r, DefaultMaxFrameBytes)
}

// NewScannerSize wraps r with an explicit frame size limit.
func NewScannerSize(r io.Reader, maxFrame int) *Scanner {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Scanner{
		r:        bufio.NewReaderSize(r, 64<<10),
		maxFrame: maxFrame,
	}
}

// Next returns the next complete frame including its SOI and EOI markers.
// The returned slice is owned by the caller. Next returns io.EOF when the
// stream ends between frames and io.ErrUnexpectedEOF when it ends inside
// one.
func (s *Scanner) Next() ([]byte, error) {
	if err := s.seekSOI(); err != nil {
		return nil, err
	}

	s.buf = append(s.buf[:0], markerPrefix, markerSOI)
	prev := byte(0)
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("mjpeg: read frame: %w", err)
		}
		s.buf = append(s.buf, b)
		if len(s.buf) > s.maxFrame {
			return nil, ErrFrameTooLarge
		}
		if prev == markerPrefix && b == markerEOI {
			frame := make([]byte, len(s.buf))
			copy(frame, s.buf)
			return frame, nil
		}
		prev = b
	}
}

// seekSOI discards bytes until the start of the next frame. Garbage
// between frames (partial writes, stream noise) is skipped silently.
func (s *Scanner) seekSOI() error {
	prev := byte(0)
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("mjpeg: seek frame start: %w", err)
		}
		if prev == markerPrefix && b == markerSOI {
			return nil
		}
		prev = b
	}
}
