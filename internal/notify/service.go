package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"argus/internal/config"
)

const userAgent = "Argus/0.1.0"

// Service defines the system notification surface exposed to the daemon
// and workflow components. Alerts raised by rules travel through the
// Dispatcher instead; this interface covers operator-facing daemon events.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, cameras int) error
	NotifyDaemonStopped(ctx context.Context, reason string) error
	NotifyCameraDegraded(ctx context.Context, cameraName string, attempts int) error
	NotifyCameraRecovered(ctx context.Context, cameraName string) error
	NotifyStageError(ctx context.Context, stage string, segmentID int64, cameraID string, err error) error
	NotifyReviewRequired(ctx context.Context, segmentUID, cameraID, reason string) error
	NotifyDiskPressure(ctx context.Context, freePercent float64, prunedBytes int64) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "text/plain; charset=utf-8")
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *resty.Client
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, cameras int) error {
	data := message{
		title: "Argus - Started",
		body:  fmt.Sprintf("🎥 Watching %d camera(s)", cameras),
		tags:  []string{"argus", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	body := "Daemon stopped"
	if reason != "" {
		body = fmt.Sprintf("Daemon stopped: %s", reason)
	}
	data := message{
		title: "Argus - Stopped",
		body:  body,
		tags:  []string{"argus", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCameraDegraded(ctx context.Context, cameraName string, attempts int) error {
	cameraName = strings.TrimSpace(cameraName)
	data := message{
		title:    "Argus - Camera Degraded",
		body:     fmt.Sprintf("⚠️ %s unreachable after %d attempt(s), retrying in cooldown", cameraName, attempts),
		tags:     []string{"argus", "camera", "degraded"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCameraRecovered(ctx context.Context, cameraName string) error {
	cameraName = strings.TrimSpace(cameraName)
	data := message{
		title: "Argus - Camera Recovered",
		body:  fmt.Sprintf("✅ %s streaming again", cameraName),
		tags:  []string{"argus", "camera", "recovered"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStageError(ctx context.Context, stage string, segmentID int64, cameraID string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ ")
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(stage)
	} else {
		builder.WriteString("stage")
	}
	fmt.Fprintf(&builder, " failed for segment #%d", segmentID)
	if cameraID = strings.TrimSpace(cameraID); cameraID != "" {
		fmt.Fprintf(&builder, " (camera %s)", cameraID)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := message{
		title:    "Argus - Pipeline Error",
		body:     builder.String(),
		tags:     []string{"argus", "error", "pipeline"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewRequired(ctx context.Context, segmentUID, cameraID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "manual review required"
	}
	body := fmt.Sprintf("Segment %s needs review: %s", strings.TrimSpace(segmentUID), reason)
	if cameraID = strings.TrimSpace(cameraID); cameraID != "" {
		body = fmt.Sprintf("%s\nCamera: %s", body, cameraID)
	}
	data := message{
		title: "Argus - Review Required",
		body:  body,
		tags:  []string{"argus", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDiskPressure(ctx context.Context, freePercent float64, prunedBytes int64) error {
	body := fmt.Sprintf("💾 Disk low: %.1f%% free", freePercent)
	if prunedBytes > 0 {
		body = fmt.Sprintf("%s, pruned %d bytes of completed segments", body, prunedBytes)
	}
	data := message{
		title:    "Argus - Disk Pressure",
		body:     body,
		tags:     []string{"argus", "disk", "retention"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := message{
		title:    "Argus - Test",
		body:     "🧪 Notification system test",
		tags:     []string{"argus", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req := n.client.R().SetContext(ctx).SetBody(data.body)
	if data.title != "" {
		req.SetHeader("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.SetHeader("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.SetHeader("Priority", data.priority)
	}

	resp, err := req.Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyDaemonStarted(context.Context, int) error          { return nil }
func (noopService) NotifyDaemonStopped(context.Context, string) error       { return nil }
func (noopService) NotifyCameraDegraded(context.Context, string, int) error { return nil }
func (noopService) NotifyCameraRecovered(context.Context, string) error     { return nil }
func (noopService) NotifyStageError(context.Context, string, int64, string, error) error {
	return nil
}
func (noopService) NotifyReviewRequired(context.Context, string, string, string) error {
	return nil
}
func (noopService) NotifyDiskPressure(context.Context, float64, int64) error { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
