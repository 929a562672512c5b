package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"argus/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Ingest.FrameRate != 5 {
		t.Fatalf("expected default frame rate 5, got %d", cfg.Ingest.FrameRate)
	}
	if cfg.Scaling.MinWorkers != 1 || cfg.Scaling.MaxWorkers != 4 {
		t.Fatalf("unexpected scaling defaults: %+v", cfg.Scaling)
	}
	if cfg.Paths.APIBind == "" {
		t.Fatal("expected default api bind")
	}
}

func TestLoadExpandsAndOverrides(t *testing.T) {
	dataDir := t.TempDir()
	body := `
[paths]
data_dir = "` + dataDir + `"
api_bind = "127.0.0.1:9999"

[ingest]
frame_rate = 10
segment_seconds = 30

[[camera]]
name = " front-door "
stream_url = "rtsp://cam.local/stream"
enabled = true
`
	cfg, _, exists, err := config.Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Ingest.FrameRate != 10 {
		t.Fatalf("expected frame rate override, got %d", cfg.Ingest.FrameRate)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("unexpected api bind %q", cfg.Paths.APIBind)
	}
	if len(cfg.Cameras) != 1 {
		t.Fatalf("expected one camera, got %d", len(cfg.Cameras))
	}
	if cfg.Cameras[0].Name != "front-door" {
		t.Fatalf("expected trimmed camera name, got %q", cfg.Cameras[0].Name)
	}
	if got := cfg.DatabasePath(); got != filepath.Join(dataDir, "argus.db") {
		t.Fatalf("unexpected database path %q", got)
	}
	if got := cfg.SegmentDir(); got != filepath.Join(dataDir, "segments") {
		t.Fatalf("unexpected segment dir %q", got)
	}
}

func TestValidateRejectsBadScaling(t *testing.T) {
	body := `
[scaling]
min_workers = 4
max_workers = 2
`
	_, _, _, err := config.Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "scaling.max_workers") {
		t.Fatalf("expected scaling.max_workers error, got %v", err)
	}
}

func TestValidateRejectsInvertedWatermarks(t *testing.T) {
	body := `
[scaling]
high_watermark = 2
low_watermark = 5
`
	_, _, _, err := config.Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "high_watermark") {
		t.Fatalf("expected watermark error, got %v", err)
	}
}

func TestValidateRejectsDuplicateCameraNames(t *testing.T) {
	body := `
[[camera]]
name = "yard"
stream_url = "rtsp://a/1"

[[camera]]
name = "Yard"
stream_url = "rtsp://b/1"
`
	_, _, _, err := config.Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "declared more than once") {
		t.Fatalf("expected duplicate camera error, got %v", err)
	}
}

func TestValidateRejectsDetectorWithoutLabels(t *testing.T) {
	body := `
[analysis]
detector_model_path = "/models/det.onnx"
`
	_, _, _, err := config.Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "detector_labels_path") {
		t.Fatalf("expected labels error, got %v", err)
	}
}

func TestAPITokenFromEnvironment(t *testing.T) {
	t.Setenv("ARGUS_API_TOKEN", "sekrit")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.APIToken != "sekrit" {
		t.Fatalf("expected token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[ingest]") {
		t.Fatal("sample missing ingest section")
	}
}
