package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/trustline/adapter/api"
	"github.com/felixgeelhaar/trustline/adapter/cli"
	"github.com/felixgeelhaar/trustline/internal/app"
	"github.com/felixgeelhaar/trustline/pkg/config"
	"github.com/felixgeelhaar/trustline/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cli.SetLogger(logger)

	var cliApp *cli.App
	if cfg.IsLocalMode() {
		container, err := app.NewLocalContainer(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize local container", "error", err)
			os.Exit(1)
		}
		defer container.Close()

		// Only billing runs locally; the escrow ledger and
		// settlement need postgres.
		cliApp = &cli.App{
			Worker: app.NewWorker(container, cfg, logger),
		}
	} else {
		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			if cfg.IsDevelopment() {
				logger.Warn("failed to initialize container, running in limited mode", "error", err)
			} else {
				logger.Error("failed to initialize container", "error", err)
				os.Exit(1)
			}
		} else {
			defer container.Close()
			cliApp = &cli.App{
				Settlement: container.SettlementBatch,
				Runs:       container.RunRepo,
				Worker:     app.NewWorker(container, cfg, logger),
				API:        buildAPIServer(container, cfg, logger),
			}
		}
	}

	cli.SetApp(cliApp)
	cli.Execute()
}

func buildAPIServer(container *app.Container, cfg *config.Config, logger *slog.Logger) *api.Server {
	contracts := api.NewContractHandler(api.ContractHandlerConfig{
		Create:          container.CreateContractHandler,
		Confirm:         container.ConfirmContractHandler,
		AcceptTerms:     container.AcceptTermsHandler,
		InitiatePayment: container.InitiateStagePaymentHandler,
		Complete:        container.ConfirmServiceCompleteHandler,
		Dispute:         container.RaiseDisputeHandler,
		Cancel:          container.CancelContractHandler,
		Refund:          container.ProcessRefundHandler,
		Release:         container.ReleaseEscrowHandler,
		GetContract:     container.GetContractHandler,
		ListContracts:   container.ListContractsHandler,
		Logger:          logger,
	})
	webhooks := api.NewWebhookHandler(container.WebhookVerifier, container.RedisClient, container.HandlePaymentCompleteHandler, logger)
	settlement := api.NewSettlementHandler(container.SettlementScheduler, logger)

	serverCfg := api.DefaultServerConfig()
	if cfg.APIAddr != "" {
		serverCfg.Addr = cfg.APIAddr
	}
	return api.NewServer(serverCfg, contracts, webhooks, settlement, container.Ready, logger)
}
