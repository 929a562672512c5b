package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/ipc"
	"argus/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the segment pipeline",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show segment counts per pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				stats := make(map[string]int)
				if client != nil {
					status, err := client.Status()
					if err != nil {
						return err
					}
					stats = status.QueueStats
				} else {
					raw, err := st.Stats(cmd.Context())
					if err != nil {
						return err
					}
					for status, count := range raw {
						stats[string(status)] = count
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"queue_stats": stats})
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var cameraID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var segments []api.Segment
				if client != nil {
					resp, err := client.QueueList(ipc.QueueListRequest{
						Statuses: listStatuses,
						CameraID: cameraID,
						Limit:    limit,
					})
					if err != nil {
						return err
					}
					segments = resp.Segments
				} else {
					statuses, err := parseStatusFilters(listStatuses)
					if err != nil {
						return err
					}
					rows, err := st.ListSegments(cmd.Context(), store.SegmentFilter{
						CameraID: cameraID,
						Statuses: statuses,
						Limit:    limit,
					})
					if err != nil {
						return err
					}
					segments = api.FromSegments(rows)
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, api.SegmentListResponse{Segments: segments})
				}
				if len(segments) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Camera", "Status", "Duration", "Created", "Error"},
					buildSegmentRows(segments),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by pipeline status (repeatable)")
	cmd.Flags().StringVar(&cameraID, "camera", "", "Filter by camera id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of segments to list")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove pipeline segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var err error
				var label string

				switch {
				case clearCompleted:
					label = "completed segments"
					if client != nil {
						var resp *ipc.QueueClearCompletedResponse
						resp, err = client.QueueClearCompleted()
						if err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = st.ClearCompletedSegments(cmd.Context())
					}
				case clearFailed:
					label = "failed segments"
					if client != nil {
						var resp *ipc.QueueClearFailedResponse
						resp, err = client.QueueClearFailed()
						if err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = st.ClearFailedSegments(cmd.Context())
					}
				default:
					label = "segments"
					if client != nil {
						var resp *ipc.QueueClearResponse
						resp, err = client.QueueClear()
						if err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = st.ClearSegments(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(out, "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed segments")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed segments")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return in-flight segments to their stage start",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var updated int64
				var err error
				if client != nil {
					var resp *ipc.QueueResetResponse
					resp, err = client.QueueReset()
					if err == nil {
						updated = resp.Updated
					}
				} else {
					updated, err = st.ResetStuckProcessing(cmd.Context())
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"updated": updated})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d segments\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [segmentID...]",
		Short: "Retry failed segments",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid segment id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var updated int64
				var err error
				if client != nil {
					var resp *ipc.QueueRetryResponse
					resp, err = client.QueueRetry(ids)
					if err == nil {
						updated = resp.Updated
					}
				} else {
					updated, err = st.RetryFailed(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"updated": updated})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed segments\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var database bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show pipeline health counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if database {
				return runDatabaseHealth(ctx, cmd)
			}
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				health := ipc.QueueHealthResponse{}
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					health = *resp
				} else {
					summary, err := st.Health(cmd.Context())
					if err != nil {
						return err
					}
					health = ipc.QueueHealthResponse{
						Total:      summary.Total,
						Recorded:   summary.Recorded,
						Processing: summary.Processing,
						Failed:     summary.Failed,
						Review:     summary.Review,
						Completed:  summary.Completed,
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, health)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nRecorded: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total,
					health.Recorded,
					health.Processing,
					health.Failed,
					health.Review,
					health.Completed,
				)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&database, "database", false, "Check database schema and integrity instead")
	return cmd
}

func runDatabaseHealth(ctx *commandContext, cmd *cobra.Command) error {
	return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
		health := ipc.DatabaseHealthResponse{}
		if client != nil {
			resp, err := client.DatabaseHealth()
			if err != nil {
				return err
			}
			health = *resp
		} else {
			result, err := st.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			health = ipc.DatabaseHealthResponse{
				DBPath:           result.DBPath,
				DatabaseExists:   result.DatabaseExists,
				DatabaseReadable: result.DatabaseReadable,
				SchemaVersion:    result.SchemaVersion,
				TableExists:      result.TableExists,
				ColumnsPresent:   result.ColumnsPresent,
				MissingColumns:   result.MissingColumns,
				IntegrityCheck:   result.IntegrityCheck,
				TotalSegments:    result.TotalSegments,
				Error:            result.Error,
			}
		}
		if ctx.JSONMode() {
			return writeJSON(cmd, health)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
		fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
		fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
		fmt.Fprintf(out, "Schema version: %s\n", health.SchemaVersion)
		fmt.Fprintf(out, "segments table present: %s\n", yesNo(health.TableExists))
		if len(health.ColumnsPresent) > 0 {
			cols := append([]string(nil), health.ColumnsPresent...)
			sort.Strings(cols)
			fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
		}
		if len(health.MissingColumns) > 0 {
			missing := append([]string(nil), health.MissingColumns...)
			sort.Strings(missing)
			fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
		} else {
			fmt.Fprintln(out, "Missing columns: none")
		}
		fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
		fmt.Fprintf(out, "Total segments: %d\n", health.TotalSegments)
		if health.Error != "" {
			fmt.Fprintf(out, "Error: %s\n", health.Error)
		}
		return nil
	})
}

func parseStatusFilters(values []string) ([]store.Status, error) {
	statuses := make([]store.Status, 0, len(values))
	for _, value := range values {
		parsed, ok := store.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	return statuses, nil
}
