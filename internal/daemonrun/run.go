// Package daemonrun boots the argus daemon process: logging, store,
// pipeline stages, capture, background services, and the IPC server.
// Both `argus daemon run` and the argusd binary funnel through Run.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"argus/internal/analysis"
	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/daemon"
	"argus/internal/ingest"
	"argus/internal/ipc"
	"argus/internal/logging"
	"argus/internal/metrics"
	"argus/internal/notify"
	"argus/internal/retention"
	"argus/internal/rules"
	"argus/internal/scale"
	"argus/internal/store"
	"argus/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
}

// Run starts the argus daemon runtime loop and blocks until the context
// is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("argus-%s.log", runID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("argus-%s.events", runID))
	logHub := logging.NewStreamHub(4096)
	eventArchive, archiveErr := logging.NewEventArchive(eventsPath)
	if archiveErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize log archive: %v\n", archiveErr)
	} else if eventArchive != nil {
		logHub.AddSink(eventArchive)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update argus.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "argus-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "argus-*.events", Exclude: []string{eventsPath}},
	)
	pidPath := filepath.Join(cfg.Paths.DataDir, "argusd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	caches := cache.New(cfg)
	notifier := notify.NewService(cfg)
	pool := scale.NewPool(cfg.Scaling.MinWorkers)

	workflowManager := workflow.NewManagerWithOptions(cfg, st, logger, notifier, workflow.Options{Pool: pool})
	if err := registerStages(workflowManager, cfg, st, logger); err != nil {
		return fmt.Errorf("configure stages: %w", err)
	}

	comps := daemon.Components{
		Store:      st,
		Workflow:   workflowManager,
		Ingest:     ingest.NewManager(cfg, st, caches, notifier, logger),
		Caches:     caches,
		Notifier:   notifier,
		Scaler:     scale.NewScaler(cfg, st, pool, logger),
		Janitor:    retention.NewJanitor(cfg, st, logger, notifier),
		LogHub:     logHub,
		LogArchive: eventArchive,
	}
	if cfg.Metrics.Enabled {
		comps.Sampler = metrics.NewSampler(cfg, st, caches, logger)
	}

	d, err := daemon.New(cfg, logger, comps)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "daemon is idle until started over IPC"),
		)
	}

	<-signalCtx.Done()
	logger.Info("argus daemon shutting down")
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	if mgr == nil || cfg == nil {
		return fmt.Errorf("manager and config are required")
	}

	return mgr.ConfigureStages(workflow.StageSet{
		Analyzer:   analysis.NewStage(cfg, st, logger),
		Evaluator:  rules.NewEvaluator(cfg, st, logger),
		Dispatcher: notify.NewDispatcher(cfg, st, logger),
	})
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "argus.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.Int("configured_cameras", len(cfg.Cameras)),
		logging.Bool("detector_model_present", fileExists(cfg.Analysis.DetectorModelPath)),
		logging.Bool("scene_model_present", fileExists(cfg.Analysis.SceneModelPath)),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Int("webhooks", len(cfg.Notifications.Webhooks)),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
	)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
