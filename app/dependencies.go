package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/proppicks/auth-gateway/config"
	"github.com/proppicks/auth-gateway/handlers"
	"github.com/proppicks/auth-gateway/internal/observability"
	"github.com/proppicks/auth-gateway/middleware"
	"github.com/proppicks/auth-gateway/repositories"
	"github.com/proppicks/auth-gateway/repositories/postgres"
	"github.com/proppicks/auth-gateway/services/audit"
	"github.com/proppicks/auth-gateway/services/auth"
	"go.uber.org/zap"
)

const defaultAuditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	DB       *postgres.DB
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Services
	Tokens       *auth.TokenIssuer
	AuditService *audit.AuditService
	AuthService  *auth.Service

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies connects to PostgreSQL and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesWithRepositories wires the application around existing repositories.
// No database handle is attached, so readiness reports the database as not initialized.
func NewDependenciesWithRepositories(cfg *config.Config, logger *zap.Logger, repos *repositories.Repositories, txManager repositories.TransactionManager) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Users:     repos.Users,
		AuditLogs: repos.AuditLogs,
		TxManager: txManager,
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP()
	return deps, nil
}

// initDatabase opens the pool, checks it and applies migrations when enabled
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database, d.Logger); err != nil {
			_ = factory.Close()
			return err
		}
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

func migrateUp(cfg config.DatabaseConfig, logger *zap.Logger) error {
	migrator, err := postgres.NewMigrator(cfg.URL(), logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices builds the metrics registry, the token issuer, the audit pipeline and the auth service
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Registry = observability.NewRegistry()
	d.Metrics = observability.NewMetrics(d.Registry)

	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth)
	if err != nil {
		return err
	}
	d.Tokens = tokens

	d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := d.AuditService.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.AuthService = auth.NewService(d.Users, hasher, tokens, d.Logger,
		auth.WithAudit(d.AuditService),
		auth.WithMetrics(d.Metrics),
		auth.WithTransactionManager(d.TxManager),
	)

	d.Logger.Info("auth service initialized",
		zap.Duration("token_ttl", tokens.TTL()),
		zap.Int("bcrypt_cost", hasher.Cost()))

	return nil
}

func (d *Dependencies) initHTTP() {
	d.AuthMiddleware = middleware.NewAuthMiddleware(&tokenValidatorAdapter{tokens: d.Tokens}, d.AuthService, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.AuthService, d.AuditService, d.Logger)

	// a nil *postgres.DB must not reach the interface as a typed nil
	var checker handlers.HealthChecker
	if d.DB != nil {
		checker = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(checker, d.Logger)
}

// tokenValidatorAdapter adapts auth.TokenIssuer to middleware.TokenValidator
type tokenValidatorAdapter struct {
	tokens *auth.TokenIssuer
}

func (a *tokenValidatorAdapter) ValidateToken(_ context.Context, token string) (*middleware.Claims, error) {
	verified, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		UserID:    verified.UserID,
		TokenID:   verified.ID,
		ExpiresAt: verified.ExpiresAt,
	}, nil
}

// Close drains the audit queue, then closes the database
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditService != nil && d.AuditService.GetStats().Started {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if timeout <= 0 {
			timeout = defaultAuditStopTimeout
		}
		if err := d.AuditService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
