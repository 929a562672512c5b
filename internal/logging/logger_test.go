package logging_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"argus/internal/logging"
)

func TestNewConsoleOmitsCallerForInfo(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(string(content), "message without caller") {
		t.Fatalf("expected message in output, got %q", content)
	}
}

func TestNewConsoleHeaderIncludesComponentAndSubject(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console-subject.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "analysis")
	scoped.Info("segment analyzed",
		logging.Int64(logging.FieldSegmentID, 7),
		logging.String(logging.FieldStage, "analyzing"),
		logging.String(logging.FieldLane, "analysis"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "[analysis]") {
		t.Errorf("expected component in header, got %q", text)
	}
	if !strings.Contains(text, "Segment #7 (analyzing)") {
		t.Errorf("expected segment subject in header, got %q", text)
	}
}

func TestNewJSONFormat(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "json.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("json line", logging.String("camera_id", "cam-1"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{`"msg":"json line"`, `"level":"info"`, `"camera_id":"cam-1"`, `"ts":"`} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %s in JSON output, got %q", want, text)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewStreamOptionPublishesEvents(t *testing.T) {
	hub := logging.NewStreamHub(16)
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "stream.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
		Stream:           hub,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("streamed", logging.Int64(logging.FieldSegmentID, 11))

	events, _ := hub.Tail(4)
	if len(events) != 1 {
		t.Fatalf("expected 1 streamed event, got %d", len(events))
	}
	if events[0].SegmentID != 11 {
		t.Errorf("expected segment_id=11, got %d", events[0].SegmentID)
	}
}

func TestWithLevelOverride(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "override.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	quiet := logging.WithLevelOverride(logger, slog.LevelWarn)
	quiet.Info("should be suppressed")
	quiet.Warn("should appear")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, "should be suppressed") {
		t.Errorf("expected info suppressed under override, got %q", text)
	}
	if !strings.Contains(text, "should appear") {
		t.Errorf("expected warn to pass override, got %q", text)
	}
}
