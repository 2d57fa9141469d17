// stackspy is a competitive intelligence monitor: it tracks competitor
// tools, schedules periodic re-analysis, and raises alerts when pricing,
// versions, or features change.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stackspy/stackspy/internal/config"
	"github.com/stackspy/stackspy/internal/logger"
	"github.com/stackspy/stackspy/internal/storage"
)

var (
	dbPath     string
	configPath string
	jsonLogs   bool
	debug      bool

	cfg   *config.Config
	store storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "stackspy",
	Short: "Competitive intelligence monitoring for software tools",
	Long: `stackspy tracks competitor tools and raises alerts when they change.

It periodically fetches each tracked tool's page, extracts structured
fields (version, price, features), diffs them against the previous
snapshot, and routes detected changes through configurable alert rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs, debug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath == "" {
			dbPath = cfg.Database.Path
		}

		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: dbPath})
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default .stackspy/stackspy.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
