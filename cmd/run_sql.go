package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/load"
)

func newRunSQLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-sql <file.sql>",
		Short: "Executes a SQL file against the configured database, {{.Table}} is the time series table",
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

			if err := db.RunQueryFile(cmd.Context(), args[0]); err != nil {
				log.Error(fmt.Sprintf("Error running %s: %v", args[0], err))
				return err
			}
			log.Info(fmt.Sprintf("Executed %s against %s", args[0], db.Table))
			return nil
		},
	}
}
