package ipc

import "argus/internal/api"

// Segment mirrors the HTTP API segment DTO for internal IPC callers.
type Segment = api.Segment

// Camera mirrors the HTTP API camera DTO.
type Camera = api.Camera

// Alert mirrors the HTTP API alert DTO.
type Alert = api.Alert

// Rule mirrors the HTTP API rule DTO.
type Rule = api.Rule

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// IngestStatus carries per-camera capture counters.
type IngestStatus = api.IngestStatus

// LogEvent mirrors the HTTP API structured log record.
type LogEvent = api.LogEvent

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Workers      int                `json:"workers"`
	QueueStats   map[string]int     `json:"queue_stats"`
	LastError    string             `json:"last_error"`
	LastSegment  *Segment           `json:"last_segment"`
	LockPath     string             `json:"lock_path"`
	DatabasePath string             `json:"database_path"`
	StageHealth  []StageHealth      `json:"stage_health"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Ingest       []IngestStatus     `json:"ingest"`
}

// QueueListRequest filters segment listing by status and camera.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
	CameraID string   `json:"camera_id"`
	Limit    int      `json:"limit"`
}

// QueueListResponse contains pipeline segments.
type QueueListResponse struct {
	Segments []Segment `json:"segments"`
}

// QueueDescribeRequest fetches a single segment by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single segment.
type QueueDescribeResponse struct {
	Segment Segment `json:"segment"`
}

// QueueClearRequest removes all segments.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed segments.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed segments.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest resets in-flight segments.
type QueueResetRequest struct{}

// QueueResetResponse reports number of segments reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed segments. Empty list means all failed.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried segments.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports pipeline health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Recorded   int `json:"recorded"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Review     int `json:"review"`
	Completed  int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalSegments    int      `json:"total_segments"`
	Error            string   `json:"error"`
}

// CameraListRequest fetches every registered camera.
type CameraListRequest struct{}

// CameraListResponse contains registered cameras.
type CameraListResponse struct {
	Cameras []Camera `json:"cameras"`
}

// CameraAddRequest registers a camera.
type CameraAddRequest struct {
	Name          string `json:"name"`
	StreamURL     string `json:"stream_url"`
	Location      string `json:"location"`
	Disabled      bool   `json:"disabled"`
	RetentionDays int    `json:"retention_days"`
}

// CameraAddResponse contains the stored camera.
type CameraAddResponse struct {
	Camera Camera `json:"camera"`
}

// CameraRemoveRequest deletes a camera registration.
type CameraRemoveRequest struct {
	ID string `json:"id"`
}

// CameraRemoveResponse reports whether a camera was removed.
type CameraRemoveResponse struct {
	Removed bool `json:"removed"`
}

// CameraSetEnabledRequest flips capture for a camera.
type CameraSetEnabledRequest struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// CameraSetEnabledResponse contains the updated camera.
type CameraSetEnabledResponse struct {
	Camera Camera `json:"camera"`
}

// AlertListRequest filters alert listing.
type AlertListRequest struct {
	Status   string `json:"status"`
	CameraID string `json:"camera_id"`
	Limit    int    `json:"limit"`
}

// AlertListResponse contains alerts, newest first.
type AlertListResponse struct {
	Alerts []Alert `json:"alerts"`
}

// AlertAckRequest acknowledges an alert by uid.
type AlertAckRequest struct {
	UID string `json:"uid"`
	By  string `json:"by"`
}

// AlertAckResponse contains the acknowledged alert.
type AlertAckResponse struct {
	Alert Alert `json:"alert"`
}

// AlertTestRequest triggers a notification test.
type AlertTestRequest struct{}

// AlertTestResponse reports notification test outcome.
type AlertTestResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// AlertRedeliverRequest flips failed alerts back to pending.
type AlertRedeliverRequest struct{}

// AlertRedeliverResponse reports number of requeued alerts.
type AlertRedeliverResponse struct {
	Updated int64 `json:"updated"`
}

// RuleListRequest fetches every alert rule.
type RuleListRequest struct{}

// RuleListResponse contains alert rules.
type RuleListResponse struct {
	Rules []Rule `json:"rules"`
}

// LogTailRequest fetches structured log events after a sequence cursor.
type LogTailRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// LogTailResponse returns log events and the next cursor.
type LogTailResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
