package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker",
	Long: `Run the outbox processor, the settlement scheduler, and the billing
renewal scheduler. Blocks until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Worker == nil {
			return errors.New("worker requires database connection")
		}
		return app.Worker.Run(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  `Serve the contract API, the payment webhook, and the settlement control endpoints. Blocks until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.API == nil {
			return errors.New("serve requires database connection")
		}
		return app.API.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(serveCmd)
}
