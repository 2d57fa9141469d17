package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <tool-id>",
	Short: "Reinstate monitoring for a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.SetToolPaused(cmd.Context(), args[0], false); err != nil {
			return err
		}
		fmt.Printf("Resumed monitoring for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
