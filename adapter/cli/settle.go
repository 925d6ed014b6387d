package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Manage settlement batches",
	Long:  `Trigger a settlement batch and inspect settlement run history.`,
}

var settleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a settlement batch now",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Settlement == nil {
			return errors.New("settlement requires database connection")
		}

		result, err := app.Settlement.Run(cmd.Context())
		if err != nil {
			return err
		}
		if !result.Ran {
			fmt.Fprintln(cmd.OutOrStdout(), "Settlement is disabled.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed:   %d\n", result.Processed)
		fmt.Fprintf(out, "Skipped KYC: %d\n", result.SkippedKyc)
		fmt.Fprintf(out, "Below min:   %d\n", result.BelowMin)
		fmt.Fprintf(out, "Failed:      %d\n", result.Failed)
		fmt.Fprintf(out, "Total moved: %d %s\n", result.TotalMoved, result.Currency)
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		return nil
	},
}

var settleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest settlement run",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Runs == nil {
			return errors.New("settlement status requires database connection")
		}

		run, err := app.Runs.FindLatest(cmd.Context())
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No settlement runs recorded.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Started:     %s\n", run.StartedAt().Local().Format(time.RFC1123))
		if finished := run.FinishedAt(); finished != nil {
			fmt.Fprintf(out, "Finished:    %s\n", finished.Local().Format(time.RFC1123))
		} else {
			fmt.Fprintln(out, "Finished:    in progress")
		}
		result := run.Result()
		fmt.Fprintf(out, "Processed:   %d\n", result.Processed)
		fmt.Fprintf(out, "Skipped KYC: %d\n", result.SkippedKyc)
		fmt.Fprintf(out, "Below min:   %d\n", result.BelowMin)
		fmt.Fprintf(out, "Failed:      %d\n", result.Failed)
		fmt.Fprintf(out, "Total moved: %d %s\n", result.TotalMoved, result.Currency)
		return nil
	},
}

func init() {
	settleCmd.AddCommand(settleRunCmd)
	settleCmd.AddCommand(settleStatusCmd)
	rootCmd.AddCommand(settleCmd)
}
