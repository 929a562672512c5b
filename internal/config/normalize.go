package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	c.normalizeCameras()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("ARGUS_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeAnalysis() error {
	var err error
	for _, field := range []struct {
		key   string
		value *string
	}{
		{"analysis.detector_model_path", &c.Analysis.DetectorModelPath},
		{"analysis.detector_labels_path", &c.Analysis.DetectorLabelsPath},
		{"analysis.scene_model_path", &c.Analysis.SceneModelPath},
		{"analysis.scene_labels_path", &c.Analysis.SceneLabelsPath},
		{"analysis.onnxruntime_library", &c.Analysis.RuntimeLibraryPath},
	} {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			*field.value = ""
			continue
		}
		if *field.value, err = expandPath(trimmed); err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
	}
	if c.Analysis.SampleStride <= 0 {
		c.Analysis.SampleStride = defaultSampleStride
	}
	return nil
}

func (c *Config) normalizeCameras() {
	for i := range c.Cameras {
		c.Cameras[i].Name = strings.TrimSpace(c.Cameras[i].Name)
		c.Cameras[i].StreamURL = strings.TrimSpace(c.Cameras[i].StreamURL)
		c.Cameras[i].Location = strings.TrimSpace(c.Cameras[i].Location)
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	webhooks := c.Notifications.Webhooks[:0]
	for _, hook := range c.Notifications.Webhooks {
		hook.URL = strings.TrimSpace(hook.URL)
		if hook.URL == "" {
			continue
		}
		webhooks = append(webhooks, hook)
	}
	c.Notifications.Webhooks = webhooks
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
