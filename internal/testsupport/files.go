package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// EncodeJPEGFrames renders count JPEG frames of the given size. A bright
// square walks across a dark background so consecutive frames differ.
func EncodeJPEGFrames(t testing.TB, count, width, height int) [][]byte {
	t.Helper()

	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 48
	}
	frames := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, color.RGBA{R: 16, G: 16, B: 16, A: 255})
			}
		}
		side := width / 4
		offset := (i * side) % (width - side)
		for y := height/2 - side/2; y < height/2+side/2; y++ {
			for x := offset; x < offset+side; x++ {
				img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
			}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			t.Fatalf("encode frame %d: %v", i, err)
		}
		frames = append(frames, buf.Bytes())
	}
	return frames
}

// WriteSegmentFile concatenates JPEG frames into a segment container file.
func WriteSegmentFile(t testing.TB, path string, frames [][]byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	for i, frame := range frames {
		if _, err := f.Write(frame); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
}
