package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/store"
)

func migrateCmd() *cobra.Command {
	var dir, dsn, direction string
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				if cfg, err := config.Load(cfgPath); err == nil && cfg.Postgres.Enabled {
					dsn = cfg.Postgres.DSN()
				}
			}
			return store.Migrate(dir, dsn, direction, steps)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres dsn (falls back to config, then env)")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
