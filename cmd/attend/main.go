package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	migrations "github.com/attendhq/attend/db"
	"github.com/attendhq/attend/internal/config"
	"github.com/attendhq/attend/internal/db"
	"github.com/attendhq/attend/internal/logger"
)

func main() {
	root := &cobra.Command{
		Use:          "attend",
		Short:        "Multi-branch WhatsApp attendant service",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and channel sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|version|force N>",
		Short: "Apply database migrations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			sub, err := migrationsFS()
			if err != nil {
				return err
			}
			return db.RunMigrate(logger.L, cfg.Postgres, sub, args[0], args[1:])
		},
	}
}

func migrationsFS() (fs.FS, error) {
	return fs.Sub(migrations.MigrationsFS, "migrations")
}
