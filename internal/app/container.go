// Package app wires the application's dependency graph.
package app

import (
	"context"
	"fmt"
	"log/slog"

	billingApp "github.com/felixgeelhaar/trustline/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/trustline/internal/billing/domain"
	billingCredentials "github.com/felixgeelhaar/trustline/internal/billing/infrastructure/credentials"
	billingPersistence "github.com/felixgeelhaar/trustline/internal/billing/infrastructure/persistence"
	escrowCommands "github.com/felixgeelhaar/trustline/internal/escrow/application/commands"
	escrowQueries "github.com/felixgeelhaar/trustline/internal/escrow/application/queries"
	escrowDomain "github.com/felixgeelhaar/trustline/internal/escrow/domain"
	escrowPersistence "github.com/felixgeelhaar/trustline/internal/escrow/infrastructure/persistence"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	settlementApp "github.com/felixgeelhaar/trustline/internal/settlement/application"
	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
	settlementPersistence "github.com/felixgeelhaar/trustline/internal/settlement/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/trustline/internal/shared/application"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/database/sqlite" // Register SQLite driver
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/trustline/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/felixgeelhaar/trustline/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/trustline/pkg/config"
	"github.com/felixgeelhaar/trustline/pkg/observability"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DB       *pgxpool.Pool
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Health checks
	Health *observability.HealthRegistry

	// Repositories
	ContractRepo     escrowDomain.ContractRepository
	TransactionRepo  escrowDomain.TransactionRepository
	AccountRepo      escrowDomain.AccountRepository
	PayoutRepo       settlementDomain.PayoutRepository
	RunRepo          settlementDomain.RunRepository
	RunLock          settlementDomain.RunLock
	SubscriptionRepo billingDomain.SubscriptionRepository
	PlanRepo         billingDomain.PlanRepository
	OutboxRepo       outbox.Repository

	// Publishers
	EventPublisher eventbus.Publisher

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Payment gateway
	GatewayClient   gateway.Client
	WebhookVerifier *gateway.SignatureVerifier

	// Escrow command handlers
	CreateContractHandler         *escrowCommands.CreateContractHandler
	ConfirmContractHandler        *escrowCommands.ConfirmContractHandler
	AcceptTermsHandler            *escrowCommands.AcceptTermsHandler
	InitiateStagePaymentHandler   *escrowCommands.InitiateStagePaymentHandler
	HandlePaymentCompleteHandler  *escrowCommands.HandlePaymentCompleteHandler
	ConfirmServiceCompleteHandler *escrowCommands.ConfirmServiceCompleteHandler
	RaiseDisputeHandler           *escrowCommands.RaiseDisputeHandler
	CancelContractHandler         *escrowCommands.CancelContractHandler
	ProcessRefundHandler          *escrowCommands.ProcessRefundHandler
	ReleaseEscrowHandler          *escrowCommands.ReleaseEscrowHandler

	// Escrow query handlers
	GetContractHandler   *escrowQueries.GetContractHandler
	ListContractsHandler *escrowQueries.ListContractsHandler

	// Settlement
	SettlementBatch     *settlementApp.Batch
	SettlementScheduler *settlementApp.Scheduler

	// Billing
	RenewalService   *billingApp.Renewal
	BillingScheduler *billingApp.Scheduler

	// Outbox
	OutboxProcessor *outbox.Processor
}

// NewContainer creates and wires all dependencies for the full service.
// It needs PostgreSQL; Redis and RabbitMQ degrade gracefully outside
// production.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
		Health: observability.NewHealthRegistry(),
	}

	// Connect to PostgreSQL
	conn, err := database.NewConnection(ctx, database.Config{
		Driver: database.DriverPostgres,
		URL:    cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pool := conn.(*postgres.Connection).Pool()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.DB = pool
	c.DBConn = conn
	c.DBDriver = database.DriverPostgres
	c.Health.Register("database", observability.DatabaseHealthChecker(pool.Ping))
	logger.Info("connected to database")

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Connect to Redis (optional in development)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				pool.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, webhook dedup fast path disabled", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					pool.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, webhook dedup fast path disabled", "error", err)
			} else {
				c.RedisClient = redisClient
				c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
					return redisClient.Ping(ctx).Err()
				}))
				logger.Info("connected to Redis")
			}
		}
	}

	// Create repositories
	c.ContractRepo = escrowPersistence.NewPostgresContractRepository(pool)
	c.TransactionRepo = escrowPersistence.NewPostgresTransactionRepository(pool)
	c.AccountRepo = escrowPersistence.NewPostgresAccountRepository(pool)
	c.PayoutRepo = settlementPersistence.NewPostgresPayoutRepository(pool)
	c.RunRepo = settlementPersistence.NewPostgresRunRepository(pool)
	c.RunLock = settlementPersistence.NewPostgresRunLock(pool)
	c.SubscriptionRepo = billingPersistence.NewPostgresSubscriptionRepository(pool)
	c.PlanRepo = billingPersistence.NewPostgresPlanRepository(pool)
	c.OutboxRepo = outbox.NewPostgresRepository(pool)
	c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)

	// Create event publisher
	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		// Fall back to noop publisher in development
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	} else {
		c.EventPublisher = publisher
	}

	c.wireGateway()
	c.wireEscrow()
	c.wireSettlement()
	c.wireBilling()
	c.wireOutboxProcessor()

	return c, nil
}

// NewLocalContainer creates a container for local mode with SQLite. Only
// billing runs in this mode; the escrow ledger and settlement need
// PostgreSQL and stay unwired.
func NewLocalContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
		Health: observability.NewHealthRegistry(),
	}

	if err := database.EnsureDirectory(cfg.SQLitePath); err != nil {
		return nil, fmt.Errorf("failed to prepare SQLite directory: %w", err)
	}

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = database.DriverSQLite
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	logger.Info("opened local database", "path", cfg.SQLitePath)

	factory := NewRepositoryFactory(conn)
	db, err := factory.getSQLiteDB()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	c.SubscriptionRepo, err = factory.SubscriptionRepository()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.PlanRepo, err = factory.PlanRepository()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.OutboxRepo, err = factory.OutboxRepository()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)
	// Local mode has no broker; events are dispatched synchronously to
	// in-process consumers.
	c.EventPublisher = eventbus.NewInProcessEventBus(logger)

	c.wireGateway()
	c.wireBilling()
	c.wireOutboxProcessor()

	return c, nil
}

// wireGateway selects the provider client. Real transfers need an
// explicit opt-in plus credentials; everything else runs on the mock.
func (c *Container) wireGateway() {
	cfg := c.Config
	if cfg.SettlementRealTransfers && cfg.GatewayBaseURL != "" && cfg.GatewayAPISecret != "" {
		httpCfg := gateway.DefaultHTTPClientConfig()
		httpCfg.BaseURL = cfg.GatewayBaseURL
		httpCfg.APISecret = cfg.GatewayAPISecret
		c.GatewayClient = gateway.NewHTTPClient(httpCfg, c.Logger)
		c.Logger.Info("using HTTP payment gateway", "base_url", cfg.GatewayBaseURL)
	} else {
		c.GatewayClient = gateway.NewMockClient(c.Logger)
		c.Logger.Info("using mock payment gateway")
	}
	c.WebhookVerifier = gateway.NewSignatureVerifier(cfg.WebhookSecret, cfg.WebhookStrict)
}

func (c *Container) wireEscrow() {
	cfg := c.Config
	c.CreateContractHandler = escrowCommands.NewCreateContractHandler(c.ContractRepo, c.OutboxRepo, c.UnitOfWork, cfg.PlatformFeeBps)
	c.ConfirmContractHandler = escrowCommands.NewConfirmContractHandler(c.ContractRepo, c.OutboxRepo, c.UnitOfWork)
	c.AcceptTermsHandler = escrowCommands.NewAcceptTermsHandler(c.ContractRepo, c.OutboxRepo, c.UnitOfWork)
	c.InitiateStagePaymentHandler = escrowCommands.NewInitiateStagePaymentHandler(c.ContractRepo)
	c.HandlePaymentCompleteHandler = escrowCommands.NewHandlePaymentCompleteHandler(c.ContractRepo, c.TransactionRepo, c.OutboxRepo, c.UnitOfWork, c.Logger)
	c.ConfirmServiceCompleteHandler = escrowCommands.NewConfirmServiceCompleteHandler(c.ContractRepo, c.TransactionRepo, c.AccountRepo, c.OutboxRepo, c.UnitOfWork)
	c.RaiseDisputeHandler = escrowCommands.NewRaiseDisputeHandler(c.ContractRepo, c.TransactionRepo, c.OutboxRepo, c.UnitOfWork)
	c.CancelContractHandler = escrowCommands.NewCancelContractHandler(c.ContractRepo, c.OutboxRepo, c.UnitOfWork)
	c.ProcessRefundHandler = escrowCommands.NewProcessRefundHandler(c.ContractRepo, c.TransactionRepo, c.GatewayClient, c.OutboxRepo, c.UnitOfWork, c.Logger)
	c.ReleaseEscrowHandler = escrowCommands.NewReleaseEscrowHandler(c.ContractRepo, c.TransactionRepo, c.AccountRepo, c.PayoutRepo, c.OutboxRepo, c.UnitOfWork)

	c.GetContractHandler = escrowQueries.NewGetContractHandler(c.ContractRepo)
	c.ListContractsHandler = escrowQueries.NewListContractsHandler(c.ContractRepo)
}

func (c *Container) wireSettlement() {
	cfg := c.Config
	c.SettlementBatch = settlementApp.NewBatch(
		c.TransactionRepo,
		c.ContractRepo,
		c.AccountRepo,
		c.PayoutRepo,
		c.RunRepo,
		c.GatewayClient,
		c.OutboxRepo,
		c.UnitOfWork,
		c.Logger,
		settlementApp.BatchConfig{
			Enabled:       cfg.SettlementEnabled,
			MinimumPayout: cfg.SettlementMinimumPayout,
			Currency:      cfg.SettlementCurrency,
		},
	)

	schedulerCfg := settlementApp.DefaultSchedulerConfig()
	schedulerCfg.TargetHour = cfg.SettlementTargetHour
	c.SettlementScheduler = settlementApp.NewScheduler(
		c.SettlementBatch,
		c.RunLock,
		schedulerCfg,
		cfg.SettlementEnabled,
		nil,
		c.Logger,
	)
}

func (c *Container) wireBilling() {
	cfg := c.Config
	resolver := billingCredentials.NewStaticResolver(cfg.BillingDefaultCredential)
	c.RenewalService = billingApp.NewRenewal(
		c.SubscriptionRepo,
		c.PlanRepo,
		resolver,
		c.GatewayClient,
		c.OutboxRepo,
		c.UnitOfWork,
		c.Logger,
	)
	c.BillingScheduler = billingApp.NewScheduler(c.RenewalService, cfg.BillingTargetHour, nil, c.Logger)
}

func (c *Container) wireOutboxProcessor() {
	cfg := c.Config
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, c.Logger)
}

// Ready reports whether the container's backing services respond.
func (c *Container) Ready(ctx context.Context) error {
	health := c.Health.GetOverallHealth(ctx)
	if health.Status != observability.HealthStatusUnhealthy {
		return nil
	}
	for name, result := range health.Checks {
		if result.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("%s not ready: %s", name, result.Message)
		}
	}
	return fmt.Errorf("not ready")
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	// Close SQLite connection if using local mode
	if c.DBConn != nil && c.DBDriver == database.DriverSQLite {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		} else {
			c.Logger.Info("SQLite connection closed")
		}
	}
}
