package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stackspy/stackspy/internal/storage"
	"github.com/stackspy/stackspy/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize tracked tools, recent jobs, and open alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tools, err := store.ListTools(ctx)
		if err != nil {
			return err
		}
		paused := 0
		byTier := make(map[types.Priority]int)
		for _, tool := range tools {
			if tool.Paused {
				paused++
			}
			byTier[tool.Priority]++
		}

		jobs, err := store.ListRecentJobs(ctx, 100)
		if err != nil {
			return err
		}
		byStatus := make(map[types.JobStatus]int)
		for _, job := range jobs {
			byStatus[job.Status]++
		}

		unacked, err := store.ListAlerts(ctx, storage.AlertFilter{Unacknowledged: true, Limit: 1000})
		if err != nil {
			return err
		}

		fmt.Printf("Tools: %d tracked, %d paused\n", len(tools), paused)
		for _, tier := range types.Priorities() {
			if byTier[tier] > 0 {
				fmt.Printf("  %-11s %d\n", tier, byTier[tier])
			}
		}
		fmt.Printf("Jobs (last %d): %d completed, %d failed, %d pending, %d running\n",
			len(jobs), byStatus[types.JobCompleted], byStatus[types.JobFailed],
			byStatus[types.JobPending], byStatus[types.JobRunning])
		fmt.Printf("Alerts: %d unacknowledged\n", len(unacked))
		if len(unacked) > 0 {
			newest := unacked[0]
			fmt.Printf("  newest: [%s] %s (%s)\n", newest.Severity, newest.Title,
				newest.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
