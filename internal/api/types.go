package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Segment describes a pipeline segment in a transport-friendly format.
type Segment struct {
	ID              int64           `json:"id"`
	UID             string          `json:"uid"`
	CameraID        string          `json:"cameraId"`
	Path            string          `json:"path"`
	Status          string          `json:"status"`
	ProcessingLane  string          `json:"processingLane"`
	Progress        SegmentProgress `json:"progress"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	StartedAt       string          `json:"startedAt,omitempty"`
	EndedAt         string          `json:"endedAt,omitempty"`
	DurationSeconds float64         `json:"durationSeconds"`
	FrameCount      int64           `json:"frameCount"`
	ByteSize        int64           `json:"byteSize"`
	Width           int             `json:"width,omitempty"`
	Height          int             `json:"height,omitempty"`
	NeedsReview     bool            `json:"needsReview"`
	ReviewReason    string          `json:"reviewReason,omitempty"`
	Analysis        json.RawMessage `json:"analysis,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
}

// SegmentProgress captures stage progress information for a segment.
type SegmentProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Camera describes a registered video source.
type Camera struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location,omitempty"`
	StreamURL     string `json:"streamUrl"`
	Enabled       bool   `json:"enabled"`
	RetentionDays int    `json:"retentionDays,omitempty"`
	State         string `json:"state"`
	StateDetail   string `json:"stateDetail,omitempty"`
	LastSeenAt    string `json:"lastSeenAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// Event is an analysis finding attached to a segment.
type Event struct {
	ID         int64           `json:"id"`
	UID        string          `json:"uid"`
	CameraID   string          `json:"cameraId"`
	SegmentID  int64           `json:"segmentId,omitempty"`
	Type       string          `json:"type"`
	Label      string          `json:"label,omitempty"`
	Score      float64         `json:"score"`
	FrameIndex int             `json:"frameIndex"`
	OccurredAt string          `json:"occurredAt,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  string          `json:"createdAt,omitempty"`
	Objects    []EventObject   `json:"objects,omitempty"`
}

// EventObject is one detected bounding box, normalized to the frame.
type EventObject struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// Alert describes a raised notification and its delivery state.
type Alert struct {
	ID             int64           `json:"id"`
	UID            string          `json:"uid"`
	RuleID         int64           `json:"ruleId,omitempty"`
	CameraID       string          `json:"cameraId,omitempty"`
	EventID        int64           `json:"eventId,omitempty"`
	Severity       string          `json:"severity"`
	Status         string          `json:"status"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	DedupKey       string          `json:"dedupKey,omitempty"`
	Channels       json.RawMessage `json:"channels,omitempty"`
	DispatchedAt   string          `json:"dispatchedAt,omitempty"`
	AcknowledgedAt string          `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string          `json:"acknowledgedBy,omitempty"`
	DeliveryError  string          `json:"deliveryError,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
}

// Rule describes when an event produces an alert.
type Rule struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Enabled         bool            `json:"enabled"`
	Priority        int             `json:"priority"`
	CameraID        string          `json:"cameraId,omitempty"`
	EventType       string          `json:"eventType,omitempty"`
	MinScore        float64         `json:"minScore,omitempty"`
	Conditions      json.RawMessage `json:"conditions,omitempty"`
	Severity        string          `json:"severity"`
	Channels        json.RawMessage `json:"channels,omitempty"`
	ThrottleSeconds int             `json:"throttleSeconds,omitempty"`
	QuietFrom       string          `json:"quietFrom,omitempty"`
	QuietTo         string          `json:"quietTo,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
}

// MetricBucket aggregates metric points over one query step.
type MetricBucket struct {
	Start string  `json:"start"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastSegment *Segment       `json:"lastSegment,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// IngestStatus reports capture counters for one running camera.
type IngestStatus struct {
	CameraID      string `json:"cameraId"`
	CameraName    string `json:"cameraName"`
	FramesWritten uint64 `json:"framesWritten"`
	FramesDropped uint64 `json:"framesDropped"`
	Segments      uint64 `json:"segments"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Ingest       []IngestStatus     `json:"ingest,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// StatusLine is one labeled row in a rendered status section.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail,omitempty"`
}

// LogEvent is the transport form of a structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	SegmentID int64             `json:"segmentId,omitempty"`
	CameraID  string            `json:"cameraId,omitempty"`
	Lane      string            `json:"lane,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's info bullet lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogStreamResponse carries log events plus the cursor for the next fetch.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// SegmentListResponse wraps a collection of segments for API responses.
type SegmentListResponse struct {
	Segments []Segment `json:"segments"`
}

// SegmentResponse wraps a single segment.
type SegmentResponse struct {
	Segment Segment `json:"segment"`
}

// CameraListResponse wraps a collection of cameras.
type CameraListResponse struct {
	Cameras []Camera `json:"cameras"`
}

// CameraResponse wraps a single camera.
type CameraResponse struct {
	Camera Camera `json:"camera"`
}

// EventListResponse wraps a collection of events.
type EventListResponse struct {
	Events []Event `json:"events"`
}

// EventResponse wraps a single event.
type EventResponse struct {
	Event Event `json:"event"`
}

// AlertListResponse wraps a collection of alerts.
type AlertListResponse struct {
	Alerts []Alert `json:"alerts"`
}

// AlertResponse wraps a single alert.
type AlertResponse struct {
	Alert Alert `json:"alert"`
}

// RuleListResponse wraps a collection of rules.
type RuleListResponse struct {
	Rules []Rule `json:"rules"`
}

// RuleResponse wraps a single rule.
type RuleResponse struct {
	Rule Rule `json:"rule"`
}

// MetricQueryResponse carries bucketed aggregation results.
type MetricQueryResponse struct {
	Name     string         `json:"name"`
	CameraID string         `json:"cameraId,omitempty"`
	Buckets  []MetricBucket `json:"buckets"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}
