package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"argus/internal/api"
	"argus/internal/daemon"
	"argus/internal/logging"
	"argus/internal/store"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Argus", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before restarting argusd"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Workers = status.Workflow.Workers
	resp.LockPath = status.LockFilePath
	resp.DatabasePath = status.DatabasePath
	resp.QueueStats = api.MergeQueueStats(status.Workflow.QueueStats)
	resp.LastError = status.Workflow.LastError
	if status.Workflow.LastSegment != nil {
		seg := api.FromSegment(status.Workflow.LastSegment)
		resp.LastSegment = &seg
	}
	resp.StageHealth = api.StageHealthSlice(status.Workflow)
	resp.Dependencies = api.FromDependencyStatuses(status.Dependencies)
	resp.Ingest = api.FromIngestStats(status.Ingest)
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	filter := store.SegmentFilter{
		CameraID: req.CameraID,
		Limit:    req.Limit,
	}
	for _, raw := range req.Statuses {
		parsed, ok := store.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		filter.Statuses = append(filter.Statuses, parsed)
	}
	segments, err := s.daemon.ListSegments(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Segments = api.FromSegments(segments)
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid segment id %d", req.ID)
	}
	seg, err := s.daemon.GetSegment(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if seg == nil {
		return fmt.Errorf("segment %d not found", req.ID)
	}
	resp.Segment = api.FromSegment(seg)
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.log().Debug("queue clear requested")
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueClearCompleted(_ QueueClearCompletedRequest, resp *QueueClearCompletedResponse) error {
	s.log().Debug("queue clear completed requested")
	removed, err := s.daemon.ClearCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue completed segments cleared",
		logging.String(logging.FieldEventType, "queue_clear_completed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueClearFailed(_ QueueClearFailedRequest, resp *QueueClearFailedResponse) error {
	s.log().Debug("queue clear failed requested")
	removed, err := s.daemon.ClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue failed segments cleared",
		logging.String(logging.FieldEventType, "queue_clear_failed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueReset(_ QueueResetRequest, resp *QueueResetResponse) error {
	s.log().Debug("queue reset stuck requested")
	updated, err := s.daemon.ResetStuck(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("queue stuck segments reset",
		logging.String(logging.FieldEventType, "queue_reset_stuck"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	s.log().Debug("queue retry requested", logging.Int("segment_count", len(req.IDs)))
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("queue segments retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Recorded = health.Recorded
	resp.Processing = health.Processing
	resp.Failed = health.Failed
	resp.Review = health.Review
	resp.Completed = health.Completed
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = append(resp.ColumnsPresent, health.ColumnsPresent...)
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalSegments = health.TotalSegments
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) CameraList(_ CameraListRequest, resp *CameraListResponse) error {
	cameras, err := s.daemon.ListCameras(s.ctx)
	if err != nil {
		return err
	}
	resp.Cameras = api.FromCameras(cameras)
	return nil
}

func (s *service) CameraAdd(req CameraAddRequest, resp *CameraAddResponse) error {
	enabled := !req.Disabled
	params := daemon.CameraParams{
		Name:      &req.Name,
		StreamURL: &req.StreamURL,
		Enabled:   &enabled,
	}
	if req.Location != "" {
		params.Location = &req.Location
	}
	if req.RetentionDays > 0 {
		params.RetentionDays = &req.RetentionDays
	}
	cam, err := s.daemon.AddCamera(s.ctx, params)
	if err != nil {
		return err
	}
	resp.Camera = api.FromCamera(cam)
	s.log().Info("camera registered via IPC",
		logging.String(logging.FieldEventType, "camera_add"),
		logging.String(logging.FieldCameraID, cam.ID))
	return nil
}

func (s *service) CameraRemove(req CameraRemoveRequest, resp *CameraRemoveResponse) error {
	removed, err := s.daemon.RemoveCamera(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	if removed {
		s.log().Info("camera removed via IPC",
			logging.String(logging.FieldEventType, "camera_remove"),
			logging.String(logging.FieldCameraID, req.ID))
	}
	return nil
}

func (s *service) CameraSetEnabled(req CameraSetEnabledRequest, resp *CameraSetEnabledResponse) error {
	cam, err := s.daemon.SetCameraEnabled(s.ctx, req.ID, req.Enabled)
	if err != nil {
		return err
	}
	resp.Camera = api.FromCamera(cam)
	return nil
}

func (s *service) AlertList(req AlertListRequest, resp *AlertListResponse) error {
	filter := store.AlertFilter{
		CameraID: req.CameraID,
		Limit:    req.Limit,
	}
	if req.Status != "" {
		parsed, ok := store.ParseAlertStatus(req.Status)
		if !ok {
			return fmt.Errorf("unknown alert status %q", req.Status)
		}
		filter.Status = parsed
	}
	alerts, err := s.daemon.ListAlerts(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Alerts = api.FromAlerts(alerts)
	return nil
}

func (s *service) AlertAck(req AlertAckRequest, resp *AlertAckResponse) error {
	alert, err := s.daemon.AcknowledgeAlert(s.ctx, req.UID, req.By)
	if err != nil {
		return err
	}
	resp.Alert = api.FromAlert(alert)
	s.log().Info("alert acknowledged via IPC",
		logging.String(logging.FieldEventType, "alert_ack"),
		logging.String(logging.FieldAlert, req.UID))
	return nil
}

func (s *service) AlertTest(_ AlertTestRequest, resp *AlertTestResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) AlertRedeliver(_ AlertRedeliverRequest, resp *AlertRedeliverResponse) error {
	updated, err := s.daemon.RedeliverFailedAlerts(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("failed alerts requeued",
		logging.String(logging.FieldEventType, "alert_redeliver"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) RuleList(_ RuleListRequest, resp *RuleListResponse) error {
	rules, err := s.daemon.ListRules(s.ctx)
	if err != nil {
		return err
	}
	resp.Rules = api.FromRules(rules)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	hub := s.daemon.LogStream()
	archive := s.daemon.LogArchive()
	if hub == nil && archive == nil {
		return nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}

	if archive != nil && req.Since > 0 {
		firstSeq := uint64(0)
		if hub != nil {
			firstSeq = hub.FirstSequence()
		}
		if hub == nil || (firstSeq > 0 && req.Since < firstSeq) {
			events, cursor, err := archive.ReadSince(req.Since, limit)
			if err == nil && len(events) > 0 {
				resp.Events = api.FromLogEvents(events)
				resp.Next = cursor
				return nil
			}
		}
	}
	if hub == nil {
		return nil
	}

	ctx := s.ctx
	if req.Follow {
		wait := time.Duration(req.WaitMillis) * time.Millisecond
		if wait <= 0 {
			wait = time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, cursor, err := hub.Fetch(ctx, req.Since, limit, req.Follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = api.FromLogEvents(events)
	resp.Next = cursor
	return nil
}
