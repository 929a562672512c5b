package config

const (
	defaultDataDir          = "~/.local/share/argus"
	defaultLogDir           = "~/.local/share/argus/logs"
	defaultAPIBind          = "127.0.0.1:7411"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultFrameRate             = 5
	defaultSegmentSeconds        = 60
	defaultSegmentMaxBytes       = int64(64) << 20
	defaultWriteBufferFrames     = 32
	defaultRetryDelaySeconds     = 1
	defaultMaxRetryDelaySeconds  = 60
	defaultMaxRetries            = 5
	defaultIngestCooldownSeconds = 300
	defaultConnectTimeoutSeconds = 10

	defaultSampleStride    = 5
	defaultMinScore        = 0.5
	defaultSceneMinScore   = 0.4
	defaultMotionThreshold = 0.02

	defaultNotifyRequestTimeout = 10
	defaultDedupWindowSeconds   = 300

	defaultSnapshotEntries    = 64
	defaultSnapshotTTLSeconds = 10
	defaultEventEntries       = 512
	defaultCameraTTLSeconds   = 5

	defaultMinWorkers           = 1
	defaultMaxWorkers           = 4
	defaultHighWatermark        = 8
	defaultLowWatermark         = 2
	defaultScalingInterval      = 15
	defaultBreachCycles         = 2
	defaultScaleCooldownSeconds = 60

	defaultSegmentDays          = 14
	defaultEventDays            = 30
	defaultAnalyticsDays        = 90
	defaultMetricsDays          = 14
	defaultMinFreePercent       = 10.0
	defaultSweepIntervalMinutes = 15

	defaultMetricsSampleInterval = 30

	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Ingest: Ingest{
			FrameRate:             defaultFrameRate,
			SegmentSeconds:        defaultSegmentSeconds,
			SegmentMaxBytes:       defaultSegmentMaxBytes,
			WriteBufferFrames:     defaultWriteBufferFrames,
			RetryDelaySeconds:     defaultRetryDelaySeconds,
			MaxRetryDelaySeconds:  defaultMaxRetryDelaySeconds,
			MaxRetries:            defaultMaxRetries,
			CooldownSeconds:       defaultIngestCooldownSeconds,
			ConnectTimeoutSeconds: defaultConnectTimeoutSeconds,
		},
		Analysis: Analysis{
			SampleStride:    defaultSampleStride,
			MinScore:        defaultMinScore,
			SceneMinScore:   defaultSceneMinScore,
			MotionThreshold: defaultMotionThreshold,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			DedupWindowSeconds: defaultDedupWindowSeconds,
		},
		Cache: Cache{
			SnapshotEntries:    defaultSnapshotEntries,
			SnapshotTTLSeconds: defaultSnapshotTTLSeconds,
			EventEntries:       defaultEventEntries,
			CameraTTLSeconds:   defaultCameraTTLSeconds,
		},
		Scaling: Scaling{
			MinWorkers:      defaultMinWorkers,
			MaxWorkers:      defaultMaxWorkers,
			HighWatermark:   defaultHighWatermark,
			LowWatermark:    defaultLowWatermark,
			IntervalSeconds: defaultScalingInterval,
			BreachCycles:    defaultBreachCycles,
			CooldownSeconds: defaultScaleCooldownSeconds,
		},
		Retention: Retention{
			SegmentDays:          defaultSegmentDays,
			EventDays:            defaultEventDays,
			AnalyticsDays:        defaultAnalyticsDays,
			MetricsDays:          defaultMetricsDays,
			MinFreePercent:       defaultMinFreePercent,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
		},
		Metrics: Metrics{
			Enabled:               true,
			SampleIntervalSeconds: defaultMetricsSampleInterval,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
