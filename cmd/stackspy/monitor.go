package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stackspy/stackspy/internal/logger"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring scheduler",
	Long: `Run the monitoring scheduler in the foreground.

The scheduler periodically discovers tools due for re-analysis, batches
them into priority-ordered jobs, and routes detected changes through the
alert rules. Stop with Ctrl-C; in-flight jobs get a grace period to
finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.manager.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := rt.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		logger.Named("monitor").Infow("scheduler started", "db", dbPath)

		<-ctx.Done()
		logger.Named("monitor").Infow("shutting down")

		// Detached context: the signal context is already canceled
		return rt.scheduler.Stop(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
