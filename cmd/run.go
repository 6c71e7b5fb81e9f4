package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/config"
	"github.com/vinayakanadinni99/ETL-Finance/extract"
	"github.com/vinayakanadinni99/ETL-Finance/load"
	"github.com/vinayakanadinni99/ETL-Finance/pipeline"
	"github.com/vinayakanadinni99/ETL-Finance/utils"
)

func newRunCmd() *cobra.Command {
	var (
		symbol     string
		outputSize string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the daily time series pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger(func(cfg *config.Config) {
				if symbol != "" {
					cfg.AlphaVantage.Symbol = symbol
				}
				if outputSize != "" {
					cfg.AlphaVantage.OutputSize = outputSize
				}
			})
			if err != nil {
				return err
			}

			client, err := extract.NewAlphaVantageClient(cfg, log)
			if err != nil {
				return fmt.Errorf("error creating Alpha Vantage HTTP client: %w", err)
			}

			opts := pipeline.Options{
				Symbol:       cfg.AlphaVantage.Symbol,
				OutputSize:   cfg.AlphaVantage.OutputSize,
				DryRun:       dryRun,
				Output:       os.Stdout,
				TimeProvider: utils.RealTimeProvider{},
			}

			var store pipeline.Store
			if !dryRun {
				db, err := load.NewDB(cfg, log)
				if err != nil {
					return fmt.Errorf("error creating DB connection: %w", err)
				}
				defer db.Close()
				store = db
			}

			p, err := pipeline.New(client, store, log, opts)
			if err != nil {
				return err
			}

			report, err := p.Run(cmd.Context())
			if err != nil {
				log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Pipeline completed without errors. Loaded %d of %d rows", report.RowsLoaded, report.RowsExtracted))
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol, overrides alphavantage.symbol")
	cmd.Flags().StringVar(&outputSize, "output-size", "", "compact or full, overrides alphavantage.output_size")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the normalized rows as CSV instead of loading them")
	return cmd
}
