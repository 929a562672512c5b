package preflight

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"argus/internal/config"
	"argus/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWebhooks validates every configured webhook URL. Delivery is not
// attempted; a typoed scheme should surface before the first alert, a
// slow endpoint should not.
func CheckWebhooks(cfg *config.Config) []Result {
	results := make([]Result, 0, len(cfg.Notifications.Webhooks))
	for _, hook := range cfg.Notifications.Webhooks {
		name := "Webhook " + hook.URL
		parsed, err := url.Parse(strings.TrimSpace(hook.URL))
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			results = append(results, Result{Name: name, Detail: "invalid url"})
			continue
		}
		detail := "configured"
		if hook.Secret == "" {
			detail = "configured (unsigned: no secret)"
		}
		results = append(results, Result{Name: name, Passed: true, Detail: detail})
	}
	return results
}

// CheckSystemDeps evaluates binary and model dependencies. Both the
// daemon and the CLI status command use this to avoid duplicating the
// requirements list. Everything here is optional: file:// cameras need
// no ffmpeg and motion-only analysis needs no models.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	results := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for network camera capture",
			Optional:    true,
		},
	})
	results = append(results,
		deps.CheckModelFile("Object detector", cfg.Analysis.DetectorModelPath),
		deps.CheckModelFile("Scene classifier", cfg.Analysis.SceneModelPath),
	)
	return results
}

// CheckNotificationsFromConfig summarizes the alert delivery setup for
// status displays.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	ntfy := strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""
	hooks := len(cfg.Notifications.Webhooks)
	switch {
	case ntfy && hooks > 0:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("ntfy + %d webhook(s)", hooks)}
	case ntfy:
		return Result{Name: name, Passed: true, Detail: "ntfy"}
	case hooks > 0:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d webhook(s)", hooks)}
	default:
		return Result{Name: name, Detail: "No delivery channels configured"}
	}
}
