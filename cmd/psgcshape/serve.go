package main

import (
	"github.com/spf13/cobra"

	"github.com/psgc-shape/internal/etl"
	"github.com/psgc-shape/internal/web"
)

func createServeCmd() *cobra.Command {
	var flags runFlags
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve <registry.xlsx|registry.csv> [sheet]",
		Short: "Reconcile once and serve the report as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			opts, err := flags.options(cmd, args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("out") {
				opts.OutputDir = ""
			}

			report, err := etl.NewPipeline(opts).Run(ctx)
			if err != nil {
				return err
			}

			server := cfg.Server
			if cmd.Flags().Changed("host") {
				server.Host = host
			}
			if cmd.Flags().Changed("port") {
				server.Port = port
			}

			return web.NewServer(web.DefaultConfig(server.Addr()), report).Start(ctx)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	return cmd
}
