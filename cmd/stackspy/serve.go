package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stackspy/stackspy/internal/api"
	"github.com/stackspy/stackspy/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler with the operator HTTP API",
	Long: `Run the monitoring scheduler together with the operator HTTP API.

The API exposes job submission and inspection, tool management, alert
history, and rule administration. See /health for liveness.`,
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

		handler := api.NewHandler(rt.scheduler, store, rt.engine, logger.Named("api"))
		server := api.NewServer(serveAddr, handler, logger.Named("api"))

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				stopErr := rt.scheduler.Stop(cmd.Context())
				if stopErr != nil {
					logger.Named("api").Warnw("scheduler stop failed", "error", stopErr)
				}
				return err
			}
		}

		logger.Named("api").Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Named("api").Warnw("api shutdown failed", "error", err)
		}
		return rt.scheduler.Stop(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address for the HTTP API")
	rootCmd.AddCommand(serveCmd)
}
