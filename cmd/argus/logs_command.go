package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/ipc"
	"argus/internal/logs"
	"argus/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var level string
	var cameraID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			apiClient, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("configure log API client: %w", err)
			}

			var legacy logstream.TailClient
			if client, dialErr := ipc.Dial(ctx.socketPath()); dialErr == nil {
				defer client.Close()
				legacy = client
			}

			logPath := filepath.Join(cfg.Paths.LogDir, "argus.log")
			opts := logstream.Options{
				Lines:  lines,
				Follow: follow,
				Filters: logstream.Filters{
					Component: component,
					Level:     level,
					CameraID:  cameraID,
				},
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(
				cmd.Context(),
				apiClient,
				legacy,
				logPath,
				opts,
				func(evt api.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			if err != nil {
				if errors.Is(err, logstream.ErrFiltersRequireAPI) {
					return errors.New("log filters need the daemon HTTP API; set api_bind in the config and start the daemon")
				}
				if errors.Is(err, logs.ErrAPIUnavailable) {
					return fmt.Errorf("no log sources reachable; start the daemon with `argus daemon start`")
				}
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only entries from this component")
	cmd.Flags().StringVar(&level, "level", "", "Only entries at this level")
	cmd.Flags().StringVar(&cameraID, "camera", "", "Only entries tagged with this camera id")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	ts := evt.Timestamp
	if parsed := api.ParseAPITime(evt.Timestamp); !parsed.IsZero() {
		ts = parsed.Local().Format("2006-01-02 15:04:05")
	}
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	subject := composeLogSubject(evt.CameraID, evt.SegmentID, evt.Stage)
	line := strings.Join(parts, " ")
	if subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	builder := strings.Builder{}
	builder.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(detail.Label)
		builder.WriteString(": ")
		builder.WriteString(detail.Value)
	}
	return builder.String()
}

func composeLogSubject(cameraID string, segmentID int64, stage string) string {
	stage = strings.TrimSpace(stage)
	cameraID = strings.TrimSpace(cameraID)
	var subject string
	switch {
	case cameraID != "" && segmentID > 0:
		subject = fmt.Sprintf("%s segment #%d", shortID(cameraID), segmentID)
	case cameraID != "":
		subject = shortID(cameraID)
	case segmentID > 0:
		subject = fmt.Sprintf("segment #%d", segmentID)
	}
	if stage != "" {
		if subject != "" {
			return fmt.Sprintf("%s (%s)", subject, stage)
		}
		return stage
	}
	return subject
}
