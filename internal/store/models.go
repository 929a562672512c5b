package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a video segment in the pipeline.
type Status string

const (
	StatusRecorded    Status = "recorded"
	StatusAnalyzing   Status = "analyzing"
	StatusAnalyzed    Status = "analyzed"
	StatusEvaluating  Status = "evaluating"
	StatusEvaluated   Status = "evaluated"
	StatusDispatching Status = "dispatching"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusReview      Status = "review"
)

// DaemonStopReason is the progress message set when segments are reset due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusRecorded,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusEvaluating,
	StatusEvaluated,
	StatusDispatching,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAnalyzing:   {},
	StatusEvaluating:  {},
	StatusDispatching: {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an interrupted in-flight segment to the
// start of the stage it was in.
var stageRollbackTransitions = []statusTransition{
	{from: StatusAnalyzing, to: StatusRecorded},
	{from: StatusEvaluating, to: StatusAnalyzed},
	{from: StatusDispatching, to: StatusEvaluated},
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalSegments    int
	Error            string
}

// HealthSummary describes aggregated segment counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Recorded   int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Segment represents a recorded video segment persisted in SQLite. Segments
// double as the pipeline work queue: the workflow manager advances Status
// while stages attach analysis output and progress.
type Segment struct {
	ID              int64
	UID             string
	CameraID        string
	Path            string
	Status          Status
	StartedAt       time.Time
	EndedAt         time.Time
	FrameCount      int64
	ByteSize        int64
	Width           int
	Height          int
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	AnalysisJSON    string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (s Segment) IsProcessing() bool {
	_, ok := processingStatuses[s.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a segment has left the pipeline.
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// Clone returns a copy safe to hand across goroutines. The heartbeat
// pointer is duplicated so callers cannot mutate the original.
func (s *Segment) Clone() *Segment {
	if s == nil {
		return nil
	}
	cp := *s
	if s.LastHeartbeat != nil {
		hb := *s.LastHeartbeat
		cp.LastHeartbeat = &hb
	}
	return &cp
}

// SetProgress updates all three progress fields atomically.
func (s *Segment) SetProgress(stage, message string, percent float64) {
	s.ProgressStage = stage
	s.ProgressMessage = message
	s.ProgressPercent = percent
}

// SetFailed marks the segment as failed with the given error message.
// Clears the heartbeat and resets progress fields.
func (s *Segment) SetFailed(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.ProgressPercent = 0
	s.ProgressMessage = message
	s.LastHeartbeat = nil
	s.ProgressStage = "Failed"
}

// Duration returns the recorded wall-clock span of the segment.
func (s Segment) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// ProcessingLane partitions the workflow into the scalable analysis lane and
// the serial post lane (rule evaluation, alert dispatch).
type ProcessingLane string

const (
	LaneAnalysis ProcessingLane = "analysis"
	LanePost     ProcessingLane = "post"
)

// LaneForSegment maps a segment to its processing lane for observability purposes.
func LaneForSegment(seg *Segment) ProcessingLane {
	if seg == nil {
		return LaneAnalysis
	}
	switch seg.Status {
	case StatusRecorded, StatusAnalyzing:
		return LaneAnalysis
	default:
		return LanePost
	}
}

// CameraState describes the runtime condition of a camera stream.
type CameraState string

const (
	CameraOffline    CameraState = "offline"
	CameraConnecting CameraState = "connecting"
	CameraStreaming  CameraState = "streaming"
	CameraDegraded   CameraState = "degraded"
	CameraDisabled   CameraState = "disabled"
)

var cameraStateSet = map[CameraState]struct{}{
	CameraOffline:    {},
	CameraConnecting: {},
	CameraStreaming:  {},
	CameraDegraded:   {},
	CameraDisabled:   {},
}

// ParseCameraState converts a string into a known CameraState.
func ParseCameraState(value string) (CameraState, bool) {
	normalized := CameraState(strings.ToLower(strings.TrimSpace(value)))
	_, ok := cameraStateSet[normalized]
	return normalized, ok
}

// Camera represents a registered video source.
type Camera struct {
	ID            string
	Name          string
	Location      string
	StreamURL     string
	Enabled       bool
	RetentionDays int
	State         CameraState
	StateDetail   string
	LastSeenAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventType classifies analysis events.
type EventType string

const (
	EventMotion         EventType = "motion"
	EventObjectDetected EventType = "object"
	EventScene          EventType = "scene"
)

// ParseEventType converts a string into a known EventType.
func ParseEventType(value string) (EventType, bool) {
	normalized := EventType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case EventMotion, EventObjectDetected, EventScene:
		return normalized, true
	default:
		return "", false
	}
}

// Event is a single analysis finding attached to a segment.
type Event struct {
	ID           int64
	UID          string
	CameraID     string
	SegmentID    *int64
	Type         EventType
	Label        string
	Score        float64
	FrameIndex   int
	OccurredAt   time.Time
	MetadataJSON string
	CreatedAt    time.Time
	Objects      []EventObject
}

// EventObject is one detected object box belonging to an event.
// Coordinates are normalized to the frame (0..1).
type EventObject struct {
	ID        int64
	EventID   int64
	Label     string
	Score     float64
	X         float64
	Y         float64
	W         float64
	H         float64
	CreatedAt time.Time
}

// Severity ranks alerts for delivery and display.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string into a known Severity.
func ParseSeverity(value string) (Severity, bool) {
	normalized := Severity(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return normalized, true
	default:
		return "", false
	}
}

// AlertStatus tracks delivery and acknowledgement of an alert.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertDispatched   AlertStatus = "dispatched"
	AlertFailed       AlertStatus = "failed"
	AlertAcknowledged AlertStatus = "acknowledged"
)

// ParseAlertStatus converts a string into a known AlertStatus.
func ParseAlertStatus(value string) (AlertStatus, bool) {
	normalized := AlertStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case AlertPending, AlertDispatched, AlertFailed, AlertAcknowledged:
		return normalized, true
	default:
		return "", false
	}
}

// Alert is a notification generated by a rule match or a manual API request.
//
// ChannelsJSON, when set, pins delivery to the named channels; empty means
// the dispatcher resolves channels from the rule or the configuration.
type Alert struct {
	ID             int64
	UID            string
	RuleID         *int64
	CameraID       string
	EventID        *int64
	Severity       Severity
	Status         AlertStatus
	Title          string
	Message        string
	DedupKey       string
	ChannelsJSON   string
	DispatchedAt   *time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy string
	DeliveryError  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Rule describes when an event produces an alert.
//
// ConditionsJSON holds an array of {path, op, value} objects evaluated
// against the event metadata document; ChannelsJSON holds the delivery
// channel names. Both are opaque to the store and interpreted by the
// rules engine.
type Rule struct {
	ID              int64
	Name            string
	Enabled         bool
	Priority        int
	CameraID        string
	EventType       string
	MinScore        float64
	ConditionsJSON  string
	Severity        Severity
	ChannelsJSON    string
	ThrottleSeconds int
	QuietFrom       string
	QuietTo         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AnalyticsEvent records an operational state change for auditing.
type AnalyticsEvent struct {
	ID         int64
	Kind       string
	CameraID   string
	DetailJSON string
	CreatedAt  time.Time
}

// MetricPoint is one sample in the metrics timeseries.
type MetricPoint struct {
	ID         int64
	Name       string
	CameraID   string
	Value      float64
	RecordedAt time.Time
}

// MetricBucket aggregates metric points over a query step.
type MetricBucket struct {
	Start time.Time
	Min   float64
	Max   float64
	Avg   float64
	Count int
}
