package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			ctx, stop := signalContext()
			defer stop()
			return server.Run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
