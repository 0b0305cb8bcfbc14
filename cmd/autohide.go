package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// autohideCmd runs only the course auto-hide sweep.
var autohideCmd = &cobra.Command{
	Use:   "autohide",
	Short: "Hide courses whose end date has passed",
	Long: `Runs the course auto-hide sweep on its own. The sweep still honours the
configured hour of day and runs at most once per day.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.logger.Sync()

		res, err := env.runner().AutoHide(cmd.Context())
		if err != nil {
			return err
		}
		env.logger.Info("Auto-hide finished",
			zap.Bool("ran", res.Ran),
			zap.String("reason", res.Reason),
			zap.Int("hidden", res.Hidden))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(autohideCmd)
}
