package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stackspy/stackspy/internal/types"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage tracked tools",
}

var (
	addToolCategory string
	addToolPriority string
)

var addToolCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Track a new tool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		tool := &types.Tool{
			ID:        uuid.New().String(),
			Name:      args[0],
			URL:       args[1],
			Category:  addToolCategory,
			Priority:  types.Priority(addToolPriority),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tool.Validate(); err != nil {
			return err
		}
		if err := store.CreateTool(cmd.Context(), tool); err != nil {
			return err
		}
		fmt.Printf("Tracking %s (%s) [%s] id=%s\n", tool.Name, tool.URL, tool.Priority, tool.ID)
		return nil
	},
}

var listToolsCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		tools, err := store.ListTools(cmd.Context())
		if err != nil {
			return err
		}
		if len(tools) == 0 {
			fmt.Println("No tools tracked yet. Add one with: stackspy tools add <name> <url>")
			return nil
		}
		for _, tool := range tools {
			state := ""
			if tool.Paused {
				state = " (paused)"
			}
			last := "never"
			if tool.LastAnalyzedAt != nil {
				last = tool.LastAnalyzedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-36s  %-20s  %-11s  last=%s%s\n", tool.ID, tool.Name, tool.Priority, last, state)
		}
		return nil
	},
}

func init() {
	addToolCmd.Flags().StringVar(&addToolCategory, "category", "", "tool category")
	addToolCmd.Flags().StringVar(&addToolPriority, "priority", "normal", "monitoring tier (urgent, high, normal, low, maintenance)")
	toolsCmd.AddCommand(addToolCmd)
	toolsCmd.AddCommand(listToolsCmd)
	rootCmd.AddCommand(toolsCmd)
}
