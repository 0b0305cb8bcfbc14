package cmd

import (
	"fmt"
	"os"

	"enrol-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configDir is where .env and config.yaml are looked up.
var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "enrol-sync",
	Short: "IMS Enterprise enrolment synchronisation",
	Long: `enrol-sync reads an IMS Enterprise XML feed from a file or an S3 bucket and
reconciles courses, users and enrolments of the learning platform database with it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// "debug" selects ISO8601 timestamps instead of epoch
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding .env and config.yaml")
}
