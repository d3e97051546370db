package main

import (
	"github.com/mohammad-safakhou/tosclarity/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	var migDir string
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*cfgPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			if migDir == "" {
				migDir = cfg.Storage.Postgres.MigrationsDir
			}
			dsn := cfg.Storage.Postgres.DSN()
			if err := migrations.Run(migDir, dsn, direction, steps); err != nil {
				log.Error("migration failed", zap.String("direction", direction), zap.Int("steps", steps), zap.Error(err))
				return err
			}
			version, dirty, err := migrations.Version(migDir, dsn)
			if err != nil {
				return err
			}
			log.Info("migrations complete", zap.String("direction", direction), zap.Uint("version", version), zap.Bool("dirty", dirty))
			return nil
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "", "migrations source such as file://migrations (default embedded)")
	migrate.Flags().StringVar(&direction, "direction", migrations.DirectionUp, "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	return migrate
}
