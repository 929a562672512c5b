package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckModelFile(t *testing.T) {
	tmp := t.TempDir()
	modelPath := filepath.Join(tmp, "detector.onnx")
	if err := os.WriteFile(modelPath, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model stub: %v", err)
	}

	status := CheckModelFile("Object detector", modelPath)
	if !status.Available {
		t.Fatalf("expected model to be available, got detail %q", status.Detail)
	}

	status = CheckModelFile("Object detector", "")
	if status.Available {
		t.Fatal("expected unconfigured model to be unavailable")
	}
	if !status.Optional {
		t.Fatal("expected model checks to be optional")
	}
	if status.Detail == "" {
		t.Fatal("expected detail for unconfigured model")
	}

	status = CheckModelFile("Scene classifier", filepath.Join(tmp, "missing.onnx"))
	if status.Available {
		t.Fatal("expected missing model to be unavailable")
	}
}
