package main

import (
	"errors"
	"fmt"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/ipc"
	"argus/internal/store"
)

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect and manage alerts",
	}
	alertsCmd.AddCommand(newAlertsListCommand(ctx))
	alertsCmd.AddCommand(newAlertsAckCommand(ctx))
	alertsCmd.AddCommand(newAlertsTestCommand(ctx))
	alertsCmd.AddCommand(newAlertsRedeliverCommand(ctx))
	return alertsCmd
}

func newAlertsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var cameraID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			trimmedStatus := strings.TrimSpace(status)
			if trimmedStatus != "" {
				if _, ok := store.ParseAlertStatus(trimmedStatus); !ok {
					return fmt.Errorf("unknown alert status %q (expected pending, dispatched, failed, or acknowledged)", trimmedStatus)
				}
			}

			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var alerts []api.Alert
				if client != nil {
					resp, err := client.AlertList(ipc.AlertListRequest{
						Status:   trimmedStatus,
						CameraID: strings.TrimSpace(cameraID),
						Limit:    limit,
					})
					if err != nil {
						return err
					}
					alerts = resp.Alerts
				} else {
					filter := store.AlertFilter{
						CameraID: strings.TrimSpace(cameraID),
						Limit:    limit,
					}
					if trimmedStatus != "" {
						parsed, _ := store.ParseAlertStatus(trimmedStatus)
						filter.Status = parsed
					}
					stored, err := st.ListAlerts(cmd.Context(), filter)
					if err != nil {
						return err
					}
					alerts = api.FromAlerts(stored)
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, api.AlertListResponse{Alerts: alerts})
				}
				if len(alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No alerts recorded")
					return nil
				}
				table := renderTable(
					[]string{"UID", "Camera", "Severity", "Status", "Title", "Created"},
					buildAlertRows(alerts),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Only alerts in this status (pending, dispatched, failed, acknowledged)")
	cmd.Flags().StringVar(&cameraID, "camera", "", "Only alerts from this camera id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of alerts to show")
	return cmd
}

func newAlertsAckCommand(ctx *commandContext) *cobra.Command {
	var ackBy string

	cmd := &cobra.Command{
		Use:   "ack <uid>",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := strings.TrimSpace(args[0])
			actor := strings.TrimSpace(ackBy)
			if actor == "" {
				actor = currentUsername()
			}

			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var alert api.Alert
				if client != nil {
					resp, err := client.AlertAck(uid, actor)
					if err != nil {
						return err
					}
					alert = resp.Alert
				} else {
					stored, err := st.AcknowledgeAlert(cmd.Context(), uid, actor)
					if err != nil {
						return err
					}
					if stored == nil {
						return fmt.Errorf("alert %q not found", uid)
					}
					alert = api.FromAlert(stored)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.AlertResponse{Alert: alert})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %s acknowledged by %s\n", shortID(alert.UID), actor)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ackBy, "by", "", "Name recorded on the acknowledgement (defaults to the current user)")
	return cmd
}

func newAlertsTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AlertTest()
				if err != nil {
					if resp != nil && resp.Message != "" {
						fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					}
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				case resp.Sent:
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				}
				return nil
			})
		},
	}
}

func newAlertsRedeliverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redeliver",
		Short: "Requeue failed alert deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var updated int64
				if client != nil {
					resp, err := client.AlertRedeliver()
					if err != nil {
						return err
					}
					updated = resp.Updated
				} else {
					var err error
					updated, err = st.RetryFailedAlerts(cmd.Context())
					if err != nil {
						return err
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]int64{"updated": updated})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed alerts\n", updated)
				return nil
			})
		},
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "operator"
}
