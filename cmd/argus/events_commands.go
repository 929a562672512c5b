package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/store"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect detection events",
	}
	eventsCmd.AddCommand(newEventsListCommand(ctx))
	return eventsCmd
}

func newEventsListCommand(ctx *commandContext) *cobra.Command {
	var cameraID string
	var eventType string
	var label string
	var minScore float64
	var since string
	var until string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent detection events",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.EventFilter{
				CameraID: strings.TrimSpace(cameraID),
				Label:    strings.TrimSpace(label),
				MinScore: minScore,
				Limit:    limit,
			}
			if trimmed := strings.TrimSpace(eventType); trimmed != "" {
				parsed, ok := store.ParseEventType(trimmed)
				if !ok {
					return fmt.Errorf("unknown event type %q (expected motion, object, or scene)", trimmed)
				}
				filter.Type = parsed
			}
			var err error
			if filter.Since, err = parseTimeFlag(since); err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			if filter.Until, err = parseTimeFlag(until); err != nil {
				return fmt.Errorf("invalid --until value: %w", err)
			}

			return ctx.withStore(func(st *store.Store) error {
				events, err := st.ListEvents(cmd.Context(), filter)
				if err != nil {
					return err
				}
				dtos := api.FromEvents(events)
				if ctx.JSONMode() {
					return writeJSON(cmd, api.EventListResponse{Events: dtos})
				}
				if len(dtos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded")
					return nil
				}
				table := renderTable(
					[]string{"UID", "Camera", "Type", "Label", "Score", "Occurred"},
					buildEventRows(dtos),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cameraID, "camera", "", "Only events from this camera id")
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "Only events of this type (motion, object, scene)")
	cmd.Flags().StringVar(&label, "label", "", "Only events carrying this label")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Only events at or above this confidence")
	cmd.Flags().StringVar(&since, "since", "", "Only events after this time (RFC 3339 or a duration like 24h)")
	cmd.Flags().StringVar(&until, "until", "", "Only events before this time (RFC 3339 or a duration like 1h)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events to show")
	return cmd
}

// parseTimeFlag turns a flag value into an absolute time. Durations are
// interpreted as an offset back from now, everything else must be an
// RFC 3339 timestamp or a plain date.
func parseTimeFlag(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if dur, err := time.ParseDuration(value); err == nil {
		if dur < 0 {
			dur = -dur
		}
		return time.Now().Add(-dur), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a duration or timestamp", value)
}
