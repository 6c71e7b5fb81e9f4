package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/load"
)

func newCreateTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-table",
		Short: "Creates the time series table if it does not exist",
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

			if err := db.CreateTable(cmd.Context()); err != nil {
				log.Error(fmt.Sprintf("Error creating table: %v", err))
				return err
			}
			log.Info(fmt.Sprintf("Table %s is ready", db.Table))
			return nil
		},
	}
}
