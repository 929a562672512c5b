package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"argus/internal/api"
	"argus/internal/store"
)

func TestCLIQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	cam, err := env.store.AddCamera(ctx, &store.Camera{Name: "porch", StreamURL: "rtsp://127.0.0.1/porch"})
	if err != nil {
		t.Fatalf("add camera: %v", err)
	}

	if _, err := env.store.NewSegment(ctx, &store.Segment{CameraID: cam.ID}); err != nil {
		t.Fatalf("new recorded segment: %v", err)
	}
	failed, err := env.store.NewSegment(ctx, &store.Segment{CameraID: cam.ID})
	if err != nil {
		t.Fatalf("new failed segment: %v", err)
	}
	failed.Status = store.StatusFailed
	if err := env.store.UpdateSegment(ctx, failed); err != nil {
		t.Fatalf("mark segment failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Recorded")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Recorded")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --status: %v", err)
	}
	if !strings.Contains(out, "Failed") || strings.Contains(out, "Recorded") {
		t.Fatalf("status filter not applied: %q", out)
	}

	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}

	out, _, err = runCLI(t, []string{"queue", "retry", fmt.Sprintf("%d", failed.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed segments")
	retried, err := env.store.SegmentByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("segment after retry: %v", err)
	}
	if retried.Status != store.StatusRecorded {
		t.Fatalf("expected retried segment recorded, got %s", retried.Status)
	}

	retried.Status = store.StatusFailed
	if err := env.store.UpdateSegment(ctx, retried); err != nil {
		t.Fatalf("reset failed status: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "clear", "--failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed segments")

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared")

	out, _, err = runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status after clear: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	out, _, err = runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Total")
}

func TestCLICameraCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(
		t,
		[]string{"camera", "add", "driveway", "--url", "rtsp://127.0.0.1/driveway", "--location", "Driveway"},
		env.socketPath, env.configPath,
	)
	if err != nil {
		t.Fatalf("camera add: %v", err)
	}
	requireContains(t, out, "registered")

	if _, _, err := runCLI(t, []string{"camera", "add", "bad"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected missing --url error")
	}

	out, _, err = runCLI(t, []string{"camera", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("camera list: %v", err)
	}
	requireContains(t, out, "driveway")
	requireContains(t, out, "Driveway")

	out, _, err = runCLI(t, []string{"--json", "camera", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("camera list --json: %v", err)
	}
	var listResp api.CameraListResponse
	if err := json.Unmarshal([]byte(out), &listResp); err != nil {
		t.Fatalf("decode camera list json: %v", err)
	}
	if len(listResp.Cameras) != 1 {
		t.Fatalf("expected 1 camera, got %d", len(listResp.Cameras))
	}
	camID := listResp.Cameras[0].ID

	out, _, err = runCLI(t, []string{"camera", "disable", "driveway"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("camera disable: %v", err)
	}
	requireContains(t, out, "disabled")

	out, _, err = runCLI(t, []string{"camera", "show", camID[:8]}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("camera show: %v", err)
	}
	requireContains(t, out, "Enabled: no")
	requireContains(t, out, "rtsp://127.0.0.1/driveway")

	out, _, err = runCLI(t, []string{"camera", "enable", camID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("camera enable: %v", err)
	}
	requireContains(t, out, "enabled")

	if _, _, err := runCLI(t, []string{"camera", "show", "missing"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected camera not found error")
	}

	out, _, err = runCLI(t, []string{"camera", "remove", "driveway"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("camera remove: %v", err)
	}
	requireContains(t, out, "removed")
}

func TestCLIStoreFallback(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.AddCamera(ctx, &store.Camera{Name: "garage", StreamURL: "rtsp://127.0.0.1/garage"}); err != nil {
		t.Fatalf("add camera: %v", err)
	}

	// A socket path that nothing listens on forces the direct store path.
	deadSocket := filepath.Join(env.baseDir, "no-daemon.sock")

	out, _, err := runCLI(t, []string{"camera", "list"}, deadSocket, env.configPath)
	if err != nil {
		t.Fatalf("camera list fallback: %v", err)
	}
	requireContains(t, out, "garage")

	out, _, err = runCLI(t, []string{"queue", "status"}, deadSocket, env.configPath)
	if err != nil {
		t.Fatalf("queue status fallback: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestCLIAlertsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alert, err := env.store.InsertAlert(ctx, &store.Alert{
		Title:    "Person at front door",
		CameraID: "cam-front",
		Severity: store.SeverityWarning,
	})
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}
	failed, err := env.store.InsertAlert(ctx, &store.Alert{
		Title:  "Delivery failed alert",
		Status: store.AlertFailed,
	})
	if err != nil {
		t.Fatalf("insert failed alert: %v", err)
	}

	out, _, err := runCLI(t, []string{"alerts", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("alerts list: %v", err)
	}
	requireContains(t, out, "Person at front door")
	requireContains(t, out, "WARNING")

	out, _, err = runCLI(t, []string{"alerts", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("alerts list --status: %v", err)
	}
	if !strings.Contains(out, "Delivery failed alert") || strings.Contains(out, "Person at front door") {
		t.Fatalf("status filter not applied: %q", out)
	}

	if _, _, err := runCLI(t, []string{"alerts", "list", "--status", "bogus"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown alert status error")
	}

	out, _, err = runCLI(t, []string{"alerts", "ack", alert.UID, "--by", "tester"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("alerts ack: %v", err)
	}
	requireContains(t, out, "acknowledged by tester")
	acked, err := env.store.AlertByUID(ctx, alert.UID)
	if err != nil {
		t.Fatalf("alert after ack: %v", err)
	}
	if acked.Status != store.AlertAcknowledged || acked.AcknowledgedBy != "tester" {
		t.Fatalf("unexpected ack state: %s by %q", acked.Status, acked.AcknowledgedBy)
	}

	out, _, err = runCLI(t, []string{"alerts", "redeliver"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("alerts redeliver: %v", err)
	}
	requireContains(t, out, "Requeued 1 failed alerts")
	requeued, err := env.store.AlertByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("alert after redeliver: %v", err)
	}
	if requeued.Status != store.AlertPending {
		t.Fatalf("expected requeued alert pending, got %s", requeued.Status)
	}
}

func TestCLIRulesCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	rule, err := env.store.AddRule(ctx, &store.Rule{
		Name:      "person-at-night",
		Enabled:   true,
		Priority:  10,
		EventType: "object",
		MinScore:  0.6,
		Severity:  store.SeverityCritical,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	out, _, err := runCLI(t, []string{"rules", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rules list: %v", err)
	}
	requireContains(t, out, "person-at-night")
	requireContains(t, out, "CRITICAL")

	out, _, err = runCLI(t, []string{"rules", "show", fmt.Sprintf("%d", rule.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rules show: %v", err)
	}
	requireContains(t, out, "Min score: 0.60")
	requireContains(t, out, "Enabled: yes")

	out, _, err = runCLI(t, []string{"rules", "disable", fmt.Sprintf("%d", rule.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rules disable: %v", err)
	}
	requireContains(t, out, "disabled")
	updated, err := env.store.RuleByID(ctx, rule.ID)
	if err != nil {
		t.Fatalf("rule after disable: %v", err)
	}
	if updated.Enabled {
		t.Fatal("expected rule disabled")
	}

	if _, _, err := runCLI(t, []string{"rules", "show", "999"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected rule not found error")
	}
}

func TestCLIEventsAndMetricsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.InsertEvent(ctx, &store.Event{
		CameraID: "cam-yard",
		Type:     store.EventObjectDetected,
		Label:    "person",
		Score:    0.91,
	}); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	out, _, err := runCLI(t, []string{"events", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events list: %v", err)
	}
	requireContains(t, out, "person")
	requireContains(t, out, "0.91")

	out, _, err = runCLI(t, []string{"events", "list", "--type", "motion"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events list --type: %v", err)
	}
	requireContains(t, out, "No events recorded")

	if _, _, err := runCLI(t, []string{"events", "list", "--type", "bogus"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown event type error")
	}

	if err := env.store.RecordMetric(ctx, store.MetricPoint{Name: "queue_depth", Value: 3}); err != nil {
		t.Fatalf("record metric: %v", err)
	}

	out, _, err = runCLI(t, []string{"metrics", "query", "--name", "queue_depth"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("metrics query: %v", err)
	}
	requireContains(t, out, "3.00")

	if _, _, err := runCLI(t, []string{"metrics", "query"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected missing --name error")
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Storage Paths")
	requireContains(t, out, "Queue is empty")
}

func TestCLIConfigAndVersionCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(env.baseDir, "generated", "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, ""); err == nil {
		t.Fatal("expected overwrite refusal")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")

	out, _, err = runCLI(t, []string{"version"}, env.socketPath, "")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "argus")
}
