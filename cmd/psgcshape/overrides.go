package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psgc-shape/internal/override"
)

func createOverridesCmd() *cobra.Command {
	overridesCmd := &cobra.Command{
		Use:   "overrides",
		Short: "Inspect override tables",
	}
	overridesCmd.AddCommand(createOverridesCheckCmd())
	return overridesCmd
}

func createOverridesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [table.yaml]",
		Short: "Review an override table (default: the built-in table)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var table *override.Table
			var err error
			if len(args) == 1 {
				table, err = override.Load(args[0])
			} else {
				table, err = override.Default()
			}
			if err != nil {
				return err
			}

			total := 0
			for _, rules := range table.Levels {
				total += len(rules)
			}
			fmt.Printf("Override table %s: %d rules, %d registry fixes\n", table.Version, total, len(table.Registry))

			findings := override.Check(table)
			for _, f := range findings {
				fmt.Printf("  %s #%d %s: %s\n", f.Level, f.Position, f.Rule, f.Message)
			}
			if len(findings) == 0 {
				fmt.Println("No findings")
			}
			return nil
		},
	}
}
