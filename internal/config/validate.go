package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateScaling(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateCameras() error {
	seen := make(map[string]struct{}, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("camera[%d].name must be set", i)
		}
		if cam.StreamURL == "" {
			return fmt.Errorf("camera[%d].stream_url must be set (name %q)", i, cam.Name)
		}
		key := strings.ToLower(cam.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("camera name %q declared more than once", cam.Name)
		}
		seen[key] = struct{}{}
		if cam.RetentionDays < 0 {
			return fmt.Errorf("camera[%d].retention_days must be >= 0", i)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.frame_rate":              c.Ingest.FrameRate,
		"ingest.segment_seconds":         c.Ingest.SegmentSeconds,
		"ingest.write_buffer_frames":     c.Ingest.WriteBufferFrames,
		"ingest.retry_delay_seconds":     c.Ingest.RetryDelaySeconds,
		"ingest.max_retry_delay_seconds": c.Ingest.MaxRetryDelaySeconds,
		"ingest.max_retries":             c.Ingest.MaxRetries,
		"ingest.cooldown_seconds":        c.Ingest.CooldownSeconds,
		"ingest.connect_timeout_seconds": c.Ingest.ConnectTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Ingest.SegmentMaxBytes <= 0 {
		return errors.New("ingest.segment_max_bytes must be positive")
	}
	if c.Ingest.MaxRetryDelaySeconds < c.Ingest.RetryDelaySeconds {
		return errors.New("ingest.max_retry_delay_seconds must be >= ingest.retry_delay_seconds")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.DetectorModelPath != "" && c.Analysis.DetectorLabelsPath == "" {
		return errors.New("analysis.detector_labels_path must be set when analysis.detector_model_path is set")
	}
	if c.Analysis.SceneModelPath != "" && c.Analysis.SceneLabelsPath == "" {
		return errors.New("analysis.scene_labels_path must be set when analysis.scene_model_path is set")
	}
	if c.Analysis.MinScore < 0 || c.Analysis.MinScore > 1 {
		return errors.New("analysis.min_score must be between 0 and 1")
	}
	if c.Analysis.SceneMinScore < 0 || c.Analysis.SceneMinScore > 1 {
		return errors.New("analysis.scene_min_score must be between 0 and 1")
	}
	if c.Analysis.MotionThreshold < 0 || c.Analysis.MotionThreshold > 1 {
		return errors.New("analysis.motion_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	for i, hook := range c.Notifications.Webhooks {
		if !strings.HasPrefix(hook.URL, "http://") && !strings.HasPrefix(hook.URL, "https://") {
			return fmt.Errorf("notifications.webhooks[%d].url must be an http(s) URL", i)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	return ensurePositiveMap(map[string]int{
		"cache.snapshot_entries":     c.Cache.SnapshotEntries,
		"cache.snapshot_ttl_seconds": c.Cache.SnapshotTTLSeconds,
		"cache.event_entries":        c.Cache.EventEntries,
		"cache.camera_ttl_seconds":   c.Cache.CameraTTLSeconds,
	})
}

func (c *Config) validateScaling() error {
	if err := ensurePositiveMap(map[string]int{
		"scaling.min_workers":      c.Scaling.MinWorkers,
		"scaling.max_workers":      c.Scaling.MaxWorkers,
		"scaling.interval_seconds": c.Scaling.IntervalSeconds,
		"scaling.breach_cycles":    c.Scaling.BreachCycles,
	}); err != nil {
		return err
	}
	if c.Scaling.CooldownSeconds < 0 {
		return errors.New("scaling.cooldown_seconds must be >= 0")
	}
	if c.Scaling.MaxWorkers < c.Scaling.MinWorkers {
		return errors.New("scaling.max_workers must be >= scaling.min_workers")
	}
	if c.Scaling.LowWatermark < 0 {
		return errors.New("scaling.low_watermark must be >= 0")
	}
	if c.Scaling.HighWatermark <= c.Scaling.LowWatermark {
		return errors.New("scaling.high_watermark must be greater than scaling.low_watermark")
	}
	return nil
}

func (c *Config) validateRetention() error {
	for key, value := range map[string]int{
		"retention.segment_days":   c.Retention.SegmentDays,
		"retention.event_days":     c.Retention.EventDays,
		"retention.analytics_days": c.Retention.AnalyticsDays,
		"retention.metrics_days":   c.Retention.MetricsDays,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0 (0 disables pruning)", key)
		}
	}
	if c.Retention.MinFreePercent < 0 || c.Retention.MinFreePercent >= 100 {
		return errors.New("retention.min_free_percent must be between 0 and 100")
	}
	if c.Retention.SweepIntervalMinutes <= 0 {
		return errors.New("retention.sweep_interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Metrics.Enabled && c.Metrics.SampleIntervalSeconds <= 0 {
		return errors.New("metrics.sample_interval_seconds must be positive when metrics.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
