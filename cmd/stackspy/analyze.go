package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <tool-id>",
	Short: "Analyze one tool immediately",
	Long: `Fetch and analyze a single tool right now, bypassing the scheduler.

Detected changes are evaluated against the alert rules and dispatched to
the configured channels.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.manager.Close()

		job, err := rt.scheduler.TriggerImmediate(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		// One-shot: run the scheduler just long enough to drain the job
		if err := rt.scheduler.Start(cmd.Context()); err != nil {
			return err
		}
		defer rt.scheduler.Stop(cmd.Context())

		final, err := rt.scheduler.AwaitJob(cmd.Context(), job.ID)
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("Job %s: %s (%d ok, %d failed)\n",
			final.ID, bold(string(final.Status)), final.SucceededCount(), final.FailedCount())
		for _, result := range final.Results {
			if !result.OK {
				fmt.Printf("  %s: failed: %s\n", result.ToolID, result.Error)
				continue
			}
			if len(result.Changes) == 0 {
				fmt.Printf("  %s: no changes\n", result.ToolID)
				continue
			}
			for _, change := range result.Changes {
				fmt.Printf("  %s: %s\n", result.ToolID, change.Summary)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
