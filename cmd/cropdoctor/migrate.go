package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/config"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/sqlite"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the diagnosis history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("db") {
				cfg, err := config.Read(flags.configFile)
				if err != nil {
					return err
				}
				dbPath = cfg.Storage.DBPath
			}
			if dbPath == "" {
				return usageError{fmt.Errorf("--db (or DB_PATH / storage.db_path) is required")}
			}
			db, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := sqlite.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", dbPath, v) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from DB_PATH or storage.db_path)")
	return cmd
}
