package cmd

import (
	"enrol-sync/core/database"
	"enrol-sync/feature/enrol/models"

	"github.com/spf13/cobra"
)

// migrateCmd creates or extends the tables enrol-sync uses.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and columns",
	Long:  `Auto-migrates every table used by enrol-sync. Intended for local sqlite databases and fresh installs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.logger.Sync()

		if err := database.Migrate(env.db, models.All()...); err != nil {
			return err
		}
		env.logger.Info("Database migrated")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
