package analysis

import (
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide
// singleton). The runtime can only be initialized once per process, so the
// first configured library path wins.
var ortEnv struct {
	once sync.Once
	err  error
}

// initRuntime initializes the ONNX Runtime environment. Safe to call
// multiple times; only the first call has any effect.
func initRuntime(libPath string) error {
	ortEnv.once.Do(func() {
		if path := strings.TrimSpace(libPath); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	if ortEnv.err != nil {
		return fmt.Errorf("initialize onnx runtime: %w", ortEnv.err)
	}
	return nil
}

// newSessionOptions builds the session options shared by both models.
func newSessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	opts.SetIntraOpNumThreads(2)
	opts.SetInterOpNumThreads(1)
	return opts, nil
}
