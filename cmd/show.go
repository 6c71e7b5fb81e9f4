package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/load"
	"github.com/vinayakanadinni99/ETL-Finance/transform"
)

func newShowCmd() *cobra.Command {
	var (
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "show <symbol>",
		Short: "Prints the stored rows of a symbol as CSV",
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

			if summary {
				sum, err := db.Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if sum.RowCount == 0 {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: no rows stored\n", sum.Symbol)
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows from %s to %s\n", sum.Symbol, sum.RowCount, sum.FirstDate, sum.LastDate)
				return err
			}

			rows, err := db.ReadRows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			// keep the most recent trading days
			if limit > 0 && len(rows) > limit {
				rows = rows[len(rows)-limit:]
			}

			csv, err := transform.RowsToCSV(rows)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(csv)
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "only print the last N trading days (0 prints all)")
	cmd.Flags().BoolVar(&summary, "summary", false, "print the row count and trading date range instead of the rows")
	return cmd
}
