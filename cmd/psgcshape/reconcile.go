package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/psgc-shape/internal/audit"
	"github.com/psgc-shape/internal/db"
	"github.com/psgc-shape/internal/etl"
	import_pkg "github.com/psgc-shape/internal/import"
	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/override"
)

// runFlags are the flags shared by every command that runs the pipeline.
type runFlags struct {
	geometry     map[normalize.Tier]*string
	levels       []string
	overrides    string
	out          string
	sample       int
	watch        []string
	keepReserved bool
	debug        bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	f.geometry = make(map[normalize.Tier]*string)
	for t := normalize.TierRegion; t <= normalize.TierBarangay; t++ {
		f.geometry[t] = cmd.Flags().String(t.String(), "", fmt.Sprintf("%s boundary GeoJSON (adm%d)", t, int(t)))
	}
	cmd.Flags().StringSliceVar(&f.levels, "level", nil, "only reconcile these levels (region, province, municipality, barangay)")
	cmd.Flags().StringVar(&f.overrides, "overrides", "", "override table YAML (default: built-in 2023-4Q table)")
	cmd.Flags().StringVar(&f.out, "out", "", "output directory")
	cmd.Flags().IntVar(&f.sample, "sample", 0, "unmatched rows kept per stage snapshot")
	cmd.Flags().StringSliceVar(&f.watch, "watch", nil, "trace these record names through every stage")
	cmd.Flags().BoolVar(&f.keepReserved, "keep-reserved", false, "keep reserved barangay areas (forest reserves, unclaimed land)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "print pipeline timings")
}

// options merges the flags over the loaded configuration.
func (f *runFlags) options(cmd *cobra.Command, args []string) (etl.Options, error) {
	opts := etl.Options{
		RegistryPath: args[0],
		Geometry:     make(map[normalize.Tier]string),
		OutputDir:    cfg.OutputDir,
		SampleSize:   cfg.SampleSize,
		Watch:        cfg.Watch,
		Boundary:     import_pkg.DefaultGeometryOptions(),
		LocalDebug:   f.debug,
	}
	if len(args) > 1 {
		opts.Sheet = args[1]
	}

	for t, path := range cfg.Geometry {
		opts.Geometry[t] = path
	}
	for t, path := range f.geometry {
		if *path != "" {
			opts.Geometry[t] = *path
		}
	}

	for _, level := range f.levels {
		t, ok := normalize.ParseTier(level)
		if !ok {
			return opts, fmt.Errorf("unknown level %q", level)
		}
		opts.Tiers = append(opts.Tiers, t)
	}

	overridesPath := cfg.Overrides
	if f.overrides != "" {
		overridesPath = f.overrides
	}
	if overridesPath != "" {
		table, err := override.Load(overridesPath)
		if err != nil {
			return opts, err
		}
		opts.Table = table
	}

	if cmd.Flags().Changed("out") {
		opts.OutputDir = f.out
	}
	if f.sample > 0 {
		opts.SampleSize = f.sample
	}
	if len(f.watch) > 0 {
		opts.Watch = f.watch
	}
	if f.keepReserved {
		opts.Boundary = import_pkg.GeometryOptions{}
	}
	return opts, nil
}

func createReconcileCmd() *cobra.Command {
	var flags runFlags
	var store bool

	cmd := &cobra.Command{
		Use:   "reconcile <registry.xlsx|registry.csv> [sheet]",
		Short: "Reconcile the registry with the boundary files and write the joined tables",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			opts, err := flags.options(cmd, args)
			if err != nil {
				return err
			}

			started := time.Now().UTC()
			report, err := etl.NewPipeline(opts).Run(ctx)
			if err != nil {
				return err
			}
			printReport(report)

			if store || cfg.Store {
				return storeRun(ctx, report, started)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&store, "store", false, "record the run in the Postgres run store")
	return cmd
}

func storeRun(ctx context.Context, report *etl.Report, started time.Time) error {
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	tracker := audit.NewTracker(conn.DB)
	if err := tracker.EnsureSchema(ctx); err != nil {
		return err
	}

	run := &audit.Run{
		Label:           report.Label,
		OverrideVersion: report.OverrideVersion,
		StartedAt:       started,
		CompletedAt:     time.Now().UTC(),
		Results:         report.Results(),
	}
	if err := tracker.RecordRun(ctx, false, run); err != nil {
		return err
	}

	logging.FromContext(ctx).Info().Str("run_id", run.ID.String()).Msg("run stored")
	fmt.Printf("Run stored: %s\n", run.ID)
	return nil
}

func printReport(report *etl.Report) {
	fmt.Printf("=== PSGC reconciliation (%s) ===\n", report.OverrideVersion)
	fmt.Printf("Registry: %d rows loaded, %d skipped, %d invalid codes\n",
		report.Registry.Loaded, report.Registry.Skipped, report.Registry.InvalidCodes)

	for _, result := range report.Results() {
		tr := report.Tiers[result.Tier]
		fmt.Printf("\n--- adm%d %s: %d registry, %d boundaries ---\n",
			int(result.Tier), result.Tier, len(result.Canonical), len(result.Geometry))
		for _, s := range result.Stages {
			fmt.Printf("  %d %-22s matched %6d  unmatched registry %5d  boundaries %5d  ambiguous %3d\n",
				int(s.Stage), s.Name, s.Matched, s.UnmatchedCanonical, s.UnmatchedGeometry, s.Ambiguous)
		}
		if stale := result.StaleOverrides(); len(stale) > 0 {
			rules := make([]string, 0, len(stale))
			for _, o := range stale {
				rules = append(rules, o.Rule.String())
			}
			fmt.Printf("  stale overrides: %s\n", strings.Join(rules, "; "))
		}
		if len(tr.Findings) > 0 {
			fmt.Printf("  validation findings: %d\n", len(tr.Findings))
		}
		if tr.Files.Table != "" {
			fmt.Printf("  wrote %s\n", tr.Files.Table)
		}
	}
}
