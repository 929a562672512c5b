package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// fileSource replays JPEG files from a directory in a loop at the
// configured frame rate. It backs file:// stream URLs for demos and
// tests where no real camera exists.
type fileSource struct {
	dir       string
	frameRate int

	mu  sync.Mutex
	err error
}

func newFileSource(dir string, frameRate int) *fileSource {
	if frameRate <= 0 {
		frameRate = 5
	}
	return &fileSource{dir: dir, frameRate: frameRate}
}

func (f *fileSource) Frames(ctx context.Context) (<-chan Frame, error) {
	paths, err := listJPEGs(f.dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no jpeg files in %s", f.dir)
	}

	frames := make(chan Frame)
	go func() {
		defer close(frames)

		interval := time.Second / time.Duration(f.frameRate)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var sequence uint64
		index := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			data, err := os.ReadFile(paths[index])
			if err != nil {
				f.setErr(fmt.Errorf("read frame file: %w", err))
				return
			}
			index = (index + 1) % len(paths)
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
				return
			}
		}
	}()
	return frames, nil
}

func (f *fileSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fileSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func listJPEGs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
