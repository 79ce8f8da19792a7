package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psgc-shape/internal/config"
	"github.com/psgc-shape/internal/logging"
)

var (
	// Resolved configuration, loaded before any subcommand runs
	cfg *config.Config

	logLevel string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "psgcshape",
		Short: "PSGC registry and boundary reconciliation",
		Long: `Joins the PSGC registry to the PSA/NAMRIA administrative boundaries
through a staged cascade of unique-candidate matches, and reports
everything left unmatched so the override table can be extended.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			logging.Configure(&logging.Config{
				Level:   cfg.LogLevel,
				Format:  cfg.LogFormat,
				Output:  cfg.LogOutput,
				NoColor: cfg.NoColor,
			})
			if cfg.ConfigFile != "" {
				logging.Default().Debug().Str("file", cfg.ConfigFile).Msg("config file loaded")
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(createReconcileCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createOverridesCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createRunsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext attaches the default logger to the command's context.
func commandContext(cmd *cobra.Command) context.Context {
	return logging.WithLogger(cmd.Context(), logging.Default())
}
