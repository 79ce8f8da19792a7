package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/psgc-shape/internal/audit"
	"github.com/psgc-shape/internal/db"
)

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test run store connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			conn, err := db.NewConnection(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Println("Database connection successful!")

			var count int
			if err := conn.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM reconcile_run").Scan(&count); err != nil {
				fmt.Println("Run store not initialised yet")
				return nil
			}
			fmt.Printf("Stored runs: %d\n", count)
			return nil
		},
	}
}

// createRunsCmd prints the stage counts of a stored run
func createRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <run-id>",
		Short: "Show the stage counts of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			ctx := commandContext(cmd)
			conn, err := db.NewConnection(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			counts, err := audit.NewTracker(conn.DB).StageCounts(ctx, runID)
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				return fmt.Errorf("run %s not found", runID)
			}
			for _, c := range counts {
				fmt.Printf("%-12s %d %-22s matched %6d  unmatched registry %5d  boundaries %5d  ambiguous %3d\n",
					c.Tier, c.Stage, c.StageName, c.Matched, c.UnmatchedCanonical, c.UnmatchedGeometry, c.Ambiguous)
			}
			return nil
		},
	}
}
