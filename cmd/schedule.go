package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/extract"
	"github.com/vinayakanadinni99/ETL-Finance/load"
	"github.com/vinayakanadinni99/ETL-Finance/pipeline"
	"github.com/vinayakanadinni99/ETL-Finance/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var (
		spec       string
		runOnStart bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs the pipeline on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			if spec == "" {
				spec = cfg.Schedule.Cron
			}
			if !cmd.Flags().Changed("run-on-start") {
				runOnStart = cfg.Schedule.RunOnStart
			}

			client, err := extract.NewAlphaVantageClient(cfg, log)
			if err != nil {
				return fmt.Errorf("error creating Alpha Vantage HTTP client: %w", err)
			}
			db, err := load.NewDB(cfg, log)
			if err != nil {
				return fmt.Errorf("error creating DB connection: %w", err)
			}
			defer db.Close()

			p, err := pipeline.New(client, db, log, pipeline.Options{
				Symbol:     cfg.AlphaVantage.Symbol,
				OutputSize: cfg.AlphaVantage.OutputSize,
			})
			if err != nil {
				return err
			}

			s, err := scheduler.New(p, log, spec)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if runOnStart {
				// a failed first run is logged and left for the next trigger
				_, _ = s.RunNow(ctx)
			}

			s.Start()
			<-ctx.Done()

			log.Info("Shutdown signal received, waiting for a running pipeline to finish")
			<-s.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron spec, overrides schedule.cron (default @daily)")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run the pipeline once before waiting for the first trigger")
	return cmd
}
