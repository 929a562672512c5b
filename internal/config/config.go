package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Camera declares a camera seeded into the store at daemon startup.
// Cameras added over the API live alongside seeded ones; seeding is
// idempotent and keyed by name.
type Camera struct {
	Name          string `toml:"name"`
	StreamURL     string `toml:"stream_url"`
	Location      string `toml:"location"`
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
}

// Ingest contains configuration for camera capture and segment recording.
type Ingest struct {
	FrameRate             int   `toml:"frame_rate"`
	SegmentSeconds        int   `toml:"segment_seconds"`
	SegmentMaxBytes       int64 `toml:"segment_max_bytes"`
	WriteBufferFrames     int   `toml:"write_buffer_frames"`
	RetryDelaySeconds     int   `toml:"retry_delay_seconds"`
	MaxRetryDelaySeconds  int   `toml:"max_retry_delay_seconds"`
	MaxRetries            int   `toml:"max_retries"`
	CooldownSeconds       int   `toml:"cooldown_seconds"`
	ConnectTimeoutSeconds int   `toml:"connect_timeout_seconds"`
}

// Analysis contains configuration for the segment analysis engine.
type Analysis struct {
	DetectorModelPath  string  `toml:"detector_model_path"`
	DetectorLabelsPath string  `toml:"detector_labels_path"`
	SceneModelPath     string  `toml:"scene_model_path"`
	SceneLabelsPath    string  `toml:"scene_labels_path"`
	RuntimeLibraryPath string  `toml:"onnxruntime_library"`
	SampleStride       int     `toml:"sample_stride"`
	MinScore           float64 `toml:"min_score"`
	SceneMinScore      float64 `toml:"scene_min_score"`
	MotionThreshold    float64 `toml:"motion_threshold"`
}

// Webhook declares an outbound alert delivery endpoint.
type Webhook struct {
	URL    string `toml:"url"`
	Secret string `toml:"secret"`
}

// Notifications contains configuration for alert delivery channels.
type Notifications struct {
	NtfyTopic          string    `toml:"ntfy_topic"`
	RequestTimeout     int       `toml:"request_timeout"`
	DedupWindowSeconds int       `toml:"dedup_window_seconds"`
	Webhooks           []Webhook `toml:"webhooks"`
}

// Cache contains configuration for the in-process read caches.
type Cache struct {
	SnapshotEntries    int `toml:"snapshot_entries"`
	SnapshotTTLSeconds int `toml:"snapshot_ttl_seconds"`
	EventEntries       int `toml:"event_entries"`
	CameraTTLSeconds   int `toml:"camera_ttl_seconds"`
}

// Scaling contains configuration for the analysis worker pool control loop.
type Scaling struct {
	MinWorkers      int `toml:"min_workers"`
	MaxWorkers      int `toml:"max_workers"`
	HighWatermark   int `toml:"high_watermark"`
	LowWatermark    int `toml:"low_watermark"`
	IntervalSeconds int `toml:"interval_seconds"`
	BreachCycles    int `toml:"breach_cycles"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// Retention contains configuration for pruning aged rows and segment files.
type Retention struct {
	SegmentDays          int     `toml:"segment_days"`
	EventDays            int     `toml:"event_days"`
	AnalyticsDays        int     `toml:"analytics_days"`
	MetricsDays          int     `toml:"metrics_days"`
	MinFreePercent       float64 `toml:"min_free_percent"`
	SweepIntervalMinutes int     `toml:"sweep_interval_minutes"`
}

// Metrics contains configuration for the timeseries sampler.
type Metrics struct {
	Enabled               bool `toml:"enabled"`
	SampleIntervalSeconds int  `toml:"sample_interval_seconds"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
//
// StageOverrides raises or lowers the log level for individual pipeline
// stages, keyed by stage name (analyzer, evaluator, dispatcher).
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for Argus.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Camera: cameras seeded into the store at startup
//   - Ingest: capture frame rates, segment rolling, reconnect policy
//   - Analysis: model paths, sampling, score thresholds
//   - Notifications: ntfy topic and webhook endpoints for alerts
//   - Cache: snapshot/event/camera read cache sizing
//   - Scaling: analysis worker pool watermarks and cadence
//   - Retention: row/file pruning ages and the disk watermark
//   - Metrics: timeseries sampler cadence
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Cameras       []Camera      `toml:"camera"`
	Ingest        Ingest        `toml:"ingest"`
	Analysis      Analysis      `toml:"analysis"`
	Notifications Notifications `toml:"notifications"`
	Cache         Cache         `toml:"cache"`
	Scaling       Scaling       `toml:"scaling"`
	Retention     Retention     `toml:"retention"`
	Metrics       Metrics       `toml:"metrics"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/argus/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/argus/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("argus.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.SegmentDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "argus.db")
}

// SegmentDir returns the root directory for recorded segment files.
func (c *Config) SegmentDir() string {
	return filepath.Join(c.Paths.DataDir, "segments")
}

// SocketPath returns the default IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "argusd.sock")
}

// FFmpegBinary returns the ffmpeg executable name used for stream capture.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
