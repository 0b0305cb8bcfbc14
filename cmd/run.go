package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"enrol-sync/feature/enrol"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the run command
	runFile   string
	runForce  bool
	runDryRun bool
	runJSON   bool
)

// runCmd performs one end-to-end enrolment run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the enrolment feed once",
	Long: `Checks the feed, processes it when it changed since the last run, runs the
course auto-hide sweep and notifies the administrators.

Examples:
  # Process the configured feed if it changed
  run

  # Process another file even if unchanged
  run --file /data/enrol/full.xml --force

  # Report snapshot retractions without applying them
  run --dry-run --json`,
	RunE: runEnrolment,
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "Feed location overriding enrol.feed_location (path or s3://bucket/key)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Process the feed even when it is unchanged")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Plan snapshot retractions without applying them")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")

	RootCmd.AddCommand(runCmd)
}

func runEnrolment(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := setup()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	report, err := env.runner().Run(ctx, enrol.RunOptions{
		Location: runFile,
		Force:    runForce,
		DryRun:   runDryRun,
	})
	if report != nil {
		env.logger.Info("Run report",
			zap.String("run_id", report.RunID),
			zap.Bool("processed", report.Processed),
			zap.String("decision", report.Decision),
			zap.Int("courses_created", report.Tally.CoursesCreated),
			zap.Int("users_created", report.Tally.UsersCreated),
			zap.Int("enrolled", report.Tally.Enrolled),
			zap.Int("unenrolled", report.Tally.Unenrolled+report.Tally.Retracted),
			zap.Int("warnings", report.Tally.Warnings),
			zap.Int("errors", report.Tally.Errors),
		)
		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				env.logger.Error("Failed to print report", zap.Error(encErr))
			}
		}
	}
	return err
}
