package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"argus/internal/config"
	"argus/internal/logging"
	"argus/internal/rules"
	"argus/internal/services"
	"argus/internal/stage"
	"argus/internal/store"
)

// signatureHeader carries the hex HMAC-SHA256 of the webhook body.
const signatureHeader = "X-Argus-Signature"

// dispatchBatch bounds how many pending alerts one pass delivers.
const dispatchBatch = 100

// Dispatcher is the final pipeline stage. It delivers every pending
// alert over the channels its rule names, ntfy and configured webhooks,
// and records the outcome on the alert row. Delivery failures never fail
// the segment: the alert flips to failed with the error attached and
// waits for an explicit redeliver.
type Dispatcher struct {
	cfg    *config.Config
	store  *store.Store
	client *resty.Client

	mu     sync.Mutex
	logger *slog.Logger

	now func() time.Time
}

// NewDispatcher builds the dispatch stage handler.
func NewDispatcher(cfg *config.Config, st *store.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetHeader("User-Agent", userAgent)
	return &Dispatcher{
		cfg:    cfg,
		store:  st,
		client: client,
		logger: logging.NewComponentLogger(logger, "dispatch"),
		now:    time.Now,
	}
}

// SetLogger installs the workflow manager's stage-scoped logger.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

func (d *Dispatcher) log() *slog.Logger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logger
}

// Prepare resets the segment's progress for the dispatch stage.
func (d *Dispatcher) Prepare(ctx context.Context, seg *store.Segment) error {
	seg.SetProgress("Dispatching", "", 0)
	return nil
}

// Execute delivers pending alerts. The scan covers every pending alert,
// not only those raised for this segment, so manual alerts ride along on
// the next segment that reaches dispatch.
func (d *Dispatcher) Execute(ctx context.Context, seg *store.Segment) error {
	delivered, failed, collapsed, err := d.DispatchPending(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "scan", "load pending alerts", err)
	}
	seg.SetProgress("Dispatching", fmt.Sprintf("%d delivered", delivered), 100)
	if delivered+failed+collapsed > 0 {
		d.log().Info("alerts dispatched",
			logging.Args(
				logging.Int64(logging.FieldSegmentID, seg.ID),
				logging.Int("delivered", delivered),
				logging.Int("failed", failed),
				logging.Int("collapsed", collapsed),
			)...)
	}
	return nil
}

// DispatchPending delivers every pending alert once. Also called outside
// the pipeline after an explicit redeliver request.
func (d *Dispatcher) DispatchPending(ctx context.Context) (delivered, failed, collapsed int, err error) {
	pending, err := d.store.PendingAlerts(ctx, dispatchBatch)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, alert := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, failed, collapsed, err
		}
		switch d.dispatchOne(ctx, alert) {
		case outcomeDelivered:
			delivered++
		case outcomeFailed:
			failed++
		case outcomeCollapsed:
			collapsed++
		}
	}
	return delivered, failed, collapsed, nil
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeFailed
	outcomeCollapsed
)

func (d *Dispatcher) dispatchOne(ctx context.Context, alert *store.Alert) outcome {
	now := d.now().UTC()

	if d.collapse(ctx, alert, now) {
		return outcomeCollapsed
	}

	channels := d.channelsFor(ctx, alert)
	var errs []string
	for _, channel := range channels {
		var err error
		switch channel {
		case "ntfy":
			err = d.sendNtfy(ctx, alert)
		case "webhook":
			err = d.sendWebhooks(ctx, alert)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", channel, err))
		}
	}

	if len(errs) > 0 {
		alert.Status = store.AlertFailed
		alert.DeliveryError = strings.Join(errs, "; ")
		if err := d.store.UpdateAlert(ctx, alert); err != nil {
			d.log().Warn("alert update failed", logging.Args(logging.Error(err))...)
		}
		d.log().Warn("alert delivery failed",
			logging.Args(
				logging.String("alert", alert.UID),
				logging.String(logging.FieldCameraID, alert.CameraID),
				logging.String("error_detail", alert.DeliveryError),
			)...)
		return outcomeFailed
	}

	alert.Status = store.AlertDispatched
	alert.DispatchedAt = &now
	alert.DeliveryError = ""
	if err := d.store.UpdateAlert(ctx, alert); err != nil {
		d.log().Warn("alert update failed", logging.Args(logging.Error(err))...)
		return outcomeFailed
	}
	d.recordAnalytics(ctx, "alert_dispatched", alert, map[string]any{
		"channels": channels,
		"severity": string(alert.Severity),
	})
	return outcomeDelivered
}

// collapse suppresses delivery when the same dedup key was already
// dispatched inside the dedup window. The alert row still flips to
// dispatched so it does not linger as pending.
func (d *Dispatcher) collapse(ctx context.Context, alert *store.Alert, now time.Time) bool {
	window := time.Duration(d.cfg.Notifications.DedupWindowSeconds) * time.Second
	if window <= 0 || alert.DedupKey == "" {
		return false
	}
	recent, err := d.store.LastDispatchedForDedup(ctx, alert.DedupKey, now.Add(-window), alert.ID)
	if err != nil || recent == nil {
		return false
	}
	alert.Status = store.AlertDispatched
	alert.DispatchedAt = &now
	if err := d.store.UpdateAlert(ctx, alert); err != nil {
		d.log().Warn("alert update failed", logging.Args(logging.Error(err))...)
	}
	d.recordAnalytics(ctx, "alert_collapsed", alert, map[string]any{
		"collapsed_into": recent.UID,
	})
	return true
}

// channelsFor resolves which channels an alert uses. An alert carrying
// its own channel list wins, rule-raised alerts follow their rule's list,
// and anything else goes everywhere that is configured.
func (d *Dispatcher) channelsFor(ctx context.Context, alert *store.Alert) []string {
	var named []string
	if channels, err := rules.ParseChannels(alert.ChannelsJSON); err == nil {
		named = channels
	}
	if len(named) == 0 && alert.RuleID != nil {
		if rule, err := d.store.RuleByID(ctx, *alert.RuleID); err == nil && rule != nil {
			if channels, err := rules.ParseChannels(rule.ChannelsJSON); err == nil {
				named = channels
			}
		}
	}
	if len(named) == 0 {
		if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) != "" {
			named = append(named, "ntfy")
		}
		if len(d.cfg.Notifications.Webhooks) > 0 {
			named = append(named, "webhook")
		}
	}

	// A named channel with no backing configuration is dropped rather
	// than failed; the rule expressed intent the operator has not set up.
	usable := named[:0]
	for _, channel := range named {
		switch channel {
		case "ntfy":
			if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) != "" {
				usable = append(usable, channel)
			}
		case "webhook":
			if len(d.cfg.Notifications.Webhooks) > 0 {
				usable = append(usable, channel)
			}
		}
	}
	return usable
}

func (d *Dispatcher) sendNtfy(ctx context.Context, alert *store.Alert) error {
	req := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetHeader("Title", alert.Title).
		SetHeader("Tags", strings.Join([]string{"argus", "alert", string(alert.Severity)}, ",")).
		SetBody(alert.Message)
	if priority := ntfyPriority(alert.Severity); priority != "" {
		req.SetHeader("Priority", priority)
	}
	resp, err := req.Post(d.cfg.Notifications.NtfyTopic)
	if err != nil {
		return fmt.Errorf("send ntfy alert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return nil
}

func ntfyPriority(severity store.Severity) string {
	switch severity {
	case store.SeverityCritical:
		return "urgent"
	case store.SeverityWarning:
		return "high"
	default:
		return ""
	}
}

// webhookPayload is the JSON body webhook endpoints receive.
type webhookPayload struct {
	UID       string `json:"uid"`
	CameraID  string `json:"camera_id"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

func (d *Dispatcher) sendWebhooks(ctx context.Context, alert *store.Alert) error {
	body, err := json.Marshal(webhookPayload{
		UID:       alert.UID,
		CameraID:  alert.CameraID,
		Severity:  string(alert.Severity),
		Title:     alert.Title,
		Message:   alert.Message,
		CreatedAt: alert.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var errs []string
	for _, hook := range d.cfg.Notifications.Webhooks {
		req := d.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body)
		if hook.Secret != "" {
			req.SetHeader(signatureHeader, signBody(body, hook.Secret))
		}
		resp, err := req.Post(hook.URL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", hook.URL, err))
			continue
		}
		if resp.IsError() {
			errs = append(errs, fmt.Sprintf("%s: status %d", hook.URL, resp.StatusCode()))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("webhook delivery: %s", strings.Join(errs, "; "))
	}
	return nil
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) recordAnalytics(ctx context.Context, kind string, alert *store.Alert, detail map[string]any) {
	detail["alert_uid"] = alert.UID
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return
	}
	if err := d.store.RecordAnalytics(ctx, kind, alert.CameraID, string(detailJSON)); err != nil {
		d.log().Warn("analytics write failed", logging.Args(logging.Error(err))...)
	}
}

// HealthCheck validates webhook URLs and reports a caveat when no
// delivery channel is configured: alerts still persist, nothing leaves
// the box.
func (d *Dispatcher) HealthCheck(ctx context.Context) stage.Health {
	for _, hook := range d.cfg.Notifications.Webhooks {
		parsed, err := url.Parse(hook.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return stage.Unhealthy("dispatcher", fmt.Sprintf("invalid webhook url %q", hook.URL))
		}
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" && len(d.cfg.Notifications.Webhooks) == 0 {
		return stage.Degraded("dispatcher", "no delivery channels configured, alerts persist without delivery")
	}
	return stage.Healthy("dispatcher")
}
