package deps

import (
	"fmt"
	"os"
	"strings"
)

// CheckModelFile reports whether an ONNX model file is present and
// readable. An empty path is an unconfigured model, not a failure: the
// analysis engine runs motion-only without it.
func CheckModelFile(name, path string) Status {
	status := Status{
		Name:        name,
		Command:     strings.TrimSpace(path),
		Description: "ONNX model for segment analysis",
		Optional:    true,
	}
	if status.Command == "" {
		status.Detail = "not configured (motion-only analysis)"
		return status
	}
	info, err := os.Stat(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("model %q not readable: %v", status.Command, err)
		return status
	}
	if info.IsDir() {
		status.Detail = fmt.Sprintf("model %q is a directory", status.Command)
		return status
	}
	status.Available = true
	return status
}
