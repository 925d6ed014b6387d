package cli

import (
	"context"

	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
)

// SettlementRunner executes one settlement batch on demand.
type SettlementRunner interface {
	Run(ctx context.Context) (settlementDomain.RunResult, error)
}

// RunHistory reads persisted settlement run records.
type RunHistory interface {
	FindLatest(ctx context.Context) (*settlementDomain.SettlementRun, error)
}

// Runner is a long-running loop that blocks until its context is
// cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// App holds the CLI application dependencies. Fields are nil when the
// corresponding backend is unavailable (no database connection).
type App struct {
	Settlement SettlementRunner
	Runs       RunHistory
	Worker     Runner
	API        Runner
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
