package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"argus/internal/config"
	"argus/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWebhooks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.Webhooks = []config.Webhook{
		{URL: "https://hooks.example.com/argus", Secret: "s"},
		{URL: "not a url"},
		{URL: "ftp://example.com/x"},
	}
	results := CheckWebhooks(cfg)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("valid webhook failed: %s", results[0].Detail)
	}
	if results[1].Passed || results[2].Passed {
		t.Fatal("invalid webhook urls passed")
	}
}

func TestRunAllChecksDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.SegmentDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg)
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("check %s failed: %s", result.Name, result.Detail)
		}
	}
}

func TestCheckSystemDepsModels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := CheckSystemDeps(context.Background(), cfg)
	for _, status := range results {
		if !status.Optional {
			t.Fatalf("dependency %s is not optional", status.Name)
		}
	}
}

func TestCheckNotificationsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckNotificationsFromConfig(cfg); result.Passed {
		t.Fatal("unconfigured notifications reported as passed")
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/argus"
	if result := CheckNotificationsFromConfig(cfg); !result.Passed {
		t.Fatalf("ntfy-only notifications failed: %s", result.Detail)
	}
}
