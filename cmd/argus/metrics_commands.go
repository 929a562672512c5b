package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/store"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Query recorded runtime metrics",
	}
	metricsCmd.AddCommand(newMetricsQueryCommand(ctx))
	return metricsCmd
}

func newMetricsQueryCommand(ctx *commandContext) *cobra.Command {
	var name string
	var cameraID string
	var since string
	var until string
	var step time.Duration

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Aggregate metric samples into buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			trimmedName := strings.TrimSpace(name)
			if trimmedName == "" {
				return fmt.Errorf("--name is required")
			}
			query := store.MetricQuery{
				Name:     trimmedName,
				CameraID: strings.TrimSpace(cameraID),
				Step:     step,
			}
			var err error
			if query.From, err = parseTimeFlag(since); err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			if query.To, err = parseTimeFlag(until); err != nil {
				return fmt.Errorf("invalid --until value: %w", err)
			}

			return ctx.withStore(func(st *store.Store) error {
				buckets, err := st.QueryMetrics(cmd.Context(), query)
				if err != nil {
					return err
				}
				dtos := api.FromMetricBuckets(buckets)
				if ctx.JSONMode() {
					return writeJSON(cmd, api.MetricQueryResponse{
						Name:     query.Name,
						CameraID: query.CameraID,
						Buckets:  dtos,
					})
				}
				if len(dtos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No samples in the requested window")
					return nil
				}
				rows := make([][]string, 0, len(dtos))
				for _, bucket := range dtos {
					rows = append(rows, []string{
						formatDisplayTime(bucket.Start),
						strconv.FormatFloat(bucket.Min, 'f', 2, 64),
						strconv.FormatFloat(bucket.Avg, 'f', 2, 64),
						strconv.FormatFloat(bucket.Max, 'f', 2, 64),
						strconv.Itoa(bucket.Count),
					})
				}
				table := renderTable(
					[]string{"Bucket", "Min", "Avg", "Max", "Samples"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Metric name to aggregate (required)")
	cmd.Flags().StringVar(&cameraID, "camera", "", "Only samples tagged with this camera id")
	cmd.Flags().StringVar(&since, "since", "", "Window start (RFC 3339 or a duration like 1h, default 1h ago)")
	cmd.Flags().StringVar(&until, "until", "", "Window end (RFC 3339 or a duration, default now)")
	cmd.Flags().DurationVar(&step, "step", time.Minute, "Bucket width")
	return cmd
}
