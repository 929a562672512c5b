package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.mjpeg")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	freed, err := RemoveFile(path)
	if err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if freed != 10 {
		t.Fatalf("expected 10 bytes freed, got %d", freed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file removed")
	}

	// Removing again is a no-op.
	freed, err = RemoveFile(path)
	if err != nil || freed != 0 {
		t.Fatalf("expected silent no-op for missing file, got %d, %v", freed, err)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "cam1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cam1", "a.mjpeg"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.mjpeg"), make([]byte, 50), 0o644); err != nil {
		t.Fatal(err)
	}

	total, err := DirSize(dir)
	if err != nil {
		t.Fatalf("DirSize failed: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected 150 bytes, got %d", total)
	}

	missing, err := DirSize(filepath.Join(dir, "nope"))
	if err != nil || missing != 0 {
		t.Fatalf("expected empty result for missing root, got %d, %v", missing, err)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(nested)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory, got %v, %v", info, err)
	}
}
