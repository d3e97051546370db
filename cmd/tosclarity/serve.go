package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/tosclarity/internal/jobs"
	srv "github.com/mohammad-safakhou/tosclarity/internal/server"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
	"github.com/mohammad-safakhou/tosclarity/internal/telemetry"
	"github.com/mohammad-safakhou/tosclarity/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var listen string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*cfgPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if listen != "" {
				cfg.Server.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tel, err := telemetry.Setup(telemetry.Options{
				ServiceName:    "tosclarity-api",
				ServiceVersion: cfg.General.Version,
			})
			if err != nil {
				log.Error("telemetry setup failed", zap.Error(err))
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					log.Warn("telemetry shutdown", zap.Error(err))
				}
			}()

			pg := cfg.Storage.Postgres
			if pg.AutoMigrate {
				if err := migrations.Run(pg.MigrationsDir, pg.DSN(), migrations.DirectionUp, 0); err != nil {
					log.Error("migrations failed", zap.Error(err))
					return err
				}
				log.Info("migrations applied")
			}

			st, err := store.NewWithDSN(ctx, pg.DSN(), store.PoolConfig{
				MaxOpenConns:    pg.MaxOpenConns,
				MaxIdleConns:    pg.MaxIdleConns,
				ConnMaxLifetime: pg.ConnMaxLifetime,
			})
			if err != nil {
				log.Error("postgres connection failed", zap.Error(err))
				return err
			}
			defer st.Close()

			js, err := jobs.Connect(ctx, cfg.Storage.Redis.URL, cfg.Storage.Redis.JobTTL)
			if err != nil {
				log.Error("redis connection failed", zap.Error(err))
				return err
			}
			defer js.Close()

			err = srv.New(cfg, log, st, js, tel.Handler()).Run(ctx)
			log.Info("server exited")
			return err
		},
	}
	serve.Flags().StringVar(&listen, "addr", "", "listen address (overrides server.listen)")
	return serve
}
