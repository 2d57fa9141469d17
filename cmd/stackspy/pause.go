package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <tool-id>",
	Short: "Suspend monitoring for a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.SetToolPaused(cmd.Context(), args[0], true); err != nil {
			return err
		}
		fmt.Printf("Paused monitoring for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
}
