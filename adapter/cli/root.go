package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/trustline/pkg/observability"
)

var (
	cfgFile string
	verbose bool
	logger  *slog.Logger
)

// commandRun tracks one CLI invocation from pre-run to post-run.
type commandRun struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandRunKey struct{}

var rootCmd = &cobra.Command{
	Use:   "trustline",
	Short: "Trustline - Escrow Contract & Settlement Engine",
	Long: `Trustline holds payments in escrow across staged service contracts,
releases funds on confirmation, and settles payee balances in daily
batches.`,
	PersistentPreRun:  beginCommandRun,
	PersistentPostRun: endCommandRun,
}

// beginCommandRun stamps a correlation ID onto the command context so
// every log line of the invocation can be tied together.
func beginCommandRun(cmd *cobra.Command, args []string) {
	if logger == nil {
		logger = slog.Default()
	}

	run := commandRun{
		correlationID: uuid.New(),
		startedAt:     time.Now(),
	}
	ctx := observability.WithCorrelationID(cmd.Context(), run.correlationID.String())
	cmd.SetContext(context.WithValue(ctx, commandRunKey{}, run))

	logger.Info("command start",
		"command", cmd.CommandPath(),
		"correlation_id", run.correlationID.String(),
	)
}

func endCommandRun(cmd *cobra.Command, args []string) {
	if logger == nil {
		logger = slog.Default()
	}
	run, ok := cmd.Context().Value(commandRunKey{}).(commandRun)
	if !ok {
		return
	}
	logger.Info("command end",
		"command", cmd.CommandPath(),
		"correlation_id", run.correlationID.String(),
		"duration_ms", time.Since(run.startedAt).Milliseconds(),
	)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// AddCommand registers a subcommand on the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the logger the CLI hooks write to.
func SetLogger(l *slog.Logger) {
	logger = l
}
