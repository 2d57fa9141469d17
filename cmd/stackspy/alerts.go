package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/storage"
)

var (
	alertsLimit    int
	alertsToolID   string
	alertsSeverity string
	alertsUnacked  bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show alert history",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.AlertFilter{
			ToolID:         alertsToolID,
			Severity:       alerts.Severity(alertsSeverity),
			Unacknowledged: alertsUnacked,
			Limit:          alertsLimit,
		}
		if filter.Severity != "" && !filter.Severity.IsValid() {
			return fmt.Errorf("invalid severity: %s", alertsSeverity)
		}

		list, err := store.ListAlerts(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No alerts match.")
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		for _, alert := range list {
			ack := ""
			if alert.AcknowledgedAt != nil {
				ack = fmt.Sprintf(" (ack by %s)", alert.AcknowledgedBy)
			}
			fmt.Printf("%s  %-8s  %s%s\n    %s\n",
				alert.CreatedAt.Format(time.RFC3339),
				bold(strings.ToUpper(string(alert.Severity))),
				alert.Title, ack, alert.ID)
		}
		return nil
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := os.Getenv("USER")
		if ackUser != "" {
			user = ackUser
		}
		if user == "" {
			return fmt.Errorf("cannot determine user; pass --user")
		}
		if err := store.AcknowledgeAlert(cmd.Context(), args[0], user); err != nil {
			return err
		}
		fmt.Printf("Acknowledged %s as %s\n", args[0], user)
		return nil
	},
}

var ackUser string

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "maximum alerts to list")
	alertsCmd.Flags().StringVar(&alertsToolID, "tool", "", "filter by tool id")
	alertsCmd.Flags().StringVar(&alertsSeverity, "severity", "", "filter by severity")
	alertsCmd.Flags().BoolVar(&alertsUnacked, "unacked", false, "only unacknowledged alerts")
	ackCmd.Flags().StringVar(&ackUser, "user", "", "acknowledging user")
	alertsCmd.AddCommand(ackCmd)
	rootCmd.AddCommand(alertsCmd)
}
