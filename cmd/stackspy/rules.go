package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show stored alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := store.ListRules(cmd.Context())
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			fmt.Println("No rules stored. Define rules in the config file or via the API.")
			return nil
		}
		for _, rule := range rules {
			state := "active"
			if !rule.Active {
				state = "disabled"
			}
			types := make([]string, len(rule.ChangeTypes))
			for i, ct := range rule.ChangeTypes {
				types[i] = string(ct)
			}
			channels := make([]string, len(rule.Channels))
			for i, ch := range rule.Channels {
				channels[i] = string(ch)
			}
			fmt.Printf("%-36s  %-24s  %s\n    watches=%s threshold=%s cooldown=%v channels=%s\n",
				rule.ID, rule.Name, state,
				strings.Join(types, ","), rule.SeverityThreshold, rule.Cooldown,
				strings.Join(channels, ","))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
