package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/load"
	"github.com/vinayakanadinni99/ETL-Finance/pipeline"
)

// fileExtractor serves a saved provider payload in place of the HTTP client.
type fileExtractor struct {
	path string
}

func (f fileExtractor) GetDailyTimeSeries(context.Context, string, string) ([]byte, error) {
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	return body, nil
}

func newLoadFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-file <payload.json>",
		Short: "Normalizes a saved Alpha Vantage payload and upserts it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			db, err := load.NewDB(cfg, log)
			if err != nil {
				return fmt.Errorf("error creating DB connection: %w", err)
			}
			defer db.Close()

			p, err := pipeline.New(fileExtractor{path: args[0]}, db, log, pipeline.Options{
				Symbol: cfg.AlphaVantage.Symbol,
			})
			if err != nil {
				return err
			}

			report, err := p.Run(cmd.Context())
			if err != nil {
				log.Error(fmt.Sprintf("Error loading %s: %v", args[0], err))
				return err
			}
			log.Info(fmt.Sprintf("Loaded %d rows from %s", report.RowsLoaded, args[0]))
			return nil
		},
	}
}
