package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/tosclarity/internal/clarity"
	"github.com/mohammad-safakhou/tosclarity/internal/jobs"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func ingestCMD(cfgPath *string) *cobra.Command {
	var jobID string

	ingest := &cobra.Command{
		Use:   "ingest <analysis.json>",
		Short: "Record a finished analysis (document and summary) from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*cfgPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx := cmd.Context()

			var job uuid.UUID
			if jobID != "" {
				if job, err = uuid.Parse(jobID); err != nil {
					return fmt.Errorf("invalid --job id: %w", err)
				}
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var analysis clarity.Analysis
			if err := json.Unmarshal(raw, &analysis); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			pg := cfg.Storage.Postgres
			st, err := store.NewWithDSN(ctx, pg.DSN(), store.PoolConfig{
				MaxOpenConns:    pg.MaxOpenConns,
				MaxIdleConns:    pg.MaxIdleConns,
				ConnMaxLifetime: pg.ConnMaxLifetime,
			})
			if err != nil {
				return err
			}
			defer st.Close()

			var js *jobs.Store
			if job != uuid.Nil {
				if js, err = jobs.Connect(ctx, cfg.Storage.Redis.URL, cfg.Storage.Redis.JobTTL); err != nil {
					return err
				}
				defer js.Close()
			}

			res, recErr := clarity.NewIngestor(st, nil, log).
				WithDefaultModel(cfg.Providers.Anthropic.Model).
				Record(ctx, analysis)
			if js != nil {
				status := jobs.StatusCompleted
				if recErr != nil {
					status = jobs.StatusFailed
				}
				if err := js.Set(ctx, job, status); err != nil {
					log.Warn("job status update failed", zap.String("job_id", job.String()), zap.Error(err))
				}
			}
			if recErr != nil {
				return recErr
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	ingest.Flags().StringVar(&jobID, "job", "", "analysis job id whose status is updated to completed or failed")
	return ingest
}
