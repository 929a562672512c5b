package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/ipc"
	"argus/internal/store"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and manage alert rules",
	}
	rulesCmd.AddCommand(newRulesListCommand(ctx))
	rulesCmd.AddCommand(newRulesShowCommand(ctx))
	rulesCmd.AddCommand(newRulesSetEnabledCommand(ctx, true))
	rulesCmd.AddCommand(newRulesSetEnabledCommand(ctx, false))
	return rulesCmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alert rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var rules []api.Rule
				if client != nil {
					resp, err := client.RuleList()
					if err != nil {
						return err
					}
					rules = resp.Rules
				} else {
					stored, err := st.ListRules(cmd.Context())
					if err != nil {
						return err
					}
					rules = api.FromRules(stored)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.RuleListResponse{Rules: rules})
				}
				if len(rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rules configured")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Name", "Enabled", "Priority", "Event Type", "Severity", "Camera"},
					buildRuleRows(rules),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newRulesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				stored, err := st.RuleByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if stored == nil {
					return fmt.Errorf("rule %d not found", id)
				}
				rule := api.FromRule(stored)
				if ctx.JSONMode() {
					return writeJSON(cmd, api.RuleResponse{Rule: rule})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID: %d\n", rule.ID)
				fmt.Fprintf(out, "Name: %s\n", rule.Name)
				fmt.Fprintf(out, "Enabled: %s\n", yesNo(rule.Enabled))
				fmt.Fprintf(out, "Priority: %d\n", rule.Priority)
				if rule.CameraID != "" {
					fmt.Fprintf(out, "Camera: %s\n", rule.CameraID)
				}
				if rule.EventType != "" {
					fmt.Fprintf(out, "Event type: %s\n", rule.EventType)
				}
				if rule.MinScore > 0 {
					fmt.Fprintf(out, "Min score: %.2f\n", rule.MinScore)
				}
				fmt.Fprintf(out, "Severity: %s\n", rule.Severity)
				if len(rule.Conditions) > 0 {
					fmt.Fprintf(out, "Conditions: %s\n", string(rule.Conditions))
				}
				if len(rule.Channels) > 0 {
					fmt.Fprintf(out, "Channels: %s\n", string(rule.Channels))
				}
				if rule.ThrottleSeconds > 0 {
					fmt.Fprintf(out, "Throttle: %ds\n", rule.ThrottleSeconds)
				}
				if rule.QuietFrom != "" || rule.QuietTo != "" {
					fmt.Fprintf(out, "Quiet hours: %s to %s\n", rule.QuietFrom, rule.QuietTo)
				}
				return nil
			})
		},
	}
}

func newRulesSetEnabledCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "disable <id>"
	short := "Disable a rule"
	verb := "disabled"
	if enable {
		use = "enable <id>"
		short = "Enable a rule"
		verb = "enabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				stored, err := st.RuleByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if stored == nil {
					return fmt.Errorf("rule %d not found", id)
				}
				if err := st.SetRuleEnabled(cmd.Context(), id, enable); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"id": id, "enabled": enable})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %q %s\n", stored.Name, verb)
				return nil
			})
		},
	}
}

func parseRuleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", arg)
	}
	return id, nil
}
