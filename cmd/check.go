package cmd

import (
	"fmt"

	"enrol-sync/core/database"
	"enrol-sync/feature/enrol/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// checkCmd verifies the database schema and the storage bucket.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database schema and storage access",
	Long:  `Checks that every table and column used by enrol-sync exists, and that the configured storage bucket is reachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.logger.Sync()
		logg := env.logger

		logg.Info("Checking database schema...", zap.String("driver", env.cfg.Database.Driver))
		report, err := database.CheckSchema(env.db, models.All()...)
		if err != nil {
			return err
		}
		for table, tbl := range report.Tables {
			if tbl.Status != "ok" {
				logg.Warn("Missing Columns", zap.String("table", table), zap.Strings("columns", tbl.MissingColumns))
			}
		}
		for _, e := range report.Errors {
			logg.Error("Inspection Error", zap.String("error", e))
		}

		if env.client != nil && env.cfg.Storage.Bucket != "" {
			exists, err := env.client.BucketExists(cmd.Context(), env.cfg.Storage.Bucket)
			switch {
			case err != nil:
				logg.Error("Storage check failed", zap.Error(err))
				report.Matched = false
			case !exists:
				logg.Error("Log archive bucket does not exist", zap.String("bucket", env.cfg.Storage.Bucket))
				report.Matched = false
			default:
				logg.Info("Log archive bucket reachable", zap.String("bucket", env.cfg.Storage.Bucket))
			}
		}

		if !report.Matched {
			return fmt.Errorf("check failed")
		}
		logg.Info("Database schema matches expected definition.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(checkCmd)
}
