package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource"
	_ "github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource/mssql"
	_ "github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource/mysql"
	_ "github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource/postgres"
	_ "github.com/sqlagent-dev/sqlagent-engine/pkg/adapters/datasource/sqlite"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/auth"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/config"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/crypto"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/database"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/handlers"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/llm"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/logging"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/middleware"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/repositories"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/retry"
	"github.com/sqlagent-dev/sqlagent-engine/pkg/services"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// App database and migrations.
	if err := migrateDatabase(cfg, logger); err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	encryptor, err := crypto.NewEncryptor(cfg.CredentialsKey)
	if err != nil {
		return err
	}

	// Target-database execution layer.
	manager := datasource.NewManager(datasource.ManagerConfig{
		TTLMinutes:   cfg.Execution.ConnectionTTLMinutes,
		PoolMaxConns: cfg.Execution.PoolMaxConns,
	}, logger)
	defer func() { _ = manager.Close() }()

	executor := datasource.NewExecutor(manager, datasource.ExecutorConfig{
		StatementTimeout: cfg.Execution.StatementTimeout(),
		AcquireTimeout:   cfg.Execution.PoolAcquireTimeout(),
		MaxRows:          cfg.Execution.MaxRows,
	}, logger)

	llmClient, err := llm.NewClientFromConfig(cfg.LLM, logger)
	if err != nil {
		return err
	}
	llmClient = llm.NewRetryingClient(llmClient, retry.DefaultConfig())
	llmTimeout := cfg.LLM.RequestTimeout()

	// Repositories and services.
	connectionRepo := repositories.NewConnectionRepository(db)
	schemaCacheRepo := repositories.NewSchemaCacheRepository(db)
	historyRepo := repositories.NewHistoryRepository(db)
	feedbackRepo := repositories.NewFeedbackRepository(db)

	connectionService := services.NewConnectionService(connectionRepo, schemaCacheRepo, encryptor, executor, manager, logger)
	schemaService := services.NewSchemaService(connectionService, schemaCacheRepo, executor, logger)
	parameterService := services.NewParameterService(schemaService, llmClient, llmTimeout, logger)
	generatorService := services.NewGeneratorService(connectionService, schemaService, feedbackRepo, llmClient, llmTimeout, logger)
	historyService := services.NewHistoryService(historyRepo, feedbackRepo, connectionService, logger)
	suggestionService := services.NewSuggestionService(schemaService, llmClient, llmTimeout, logger)
	pipelineService := services.NewPipelineService(connectionService, parameterService, generatorService, historyService, executor, logger)

	// HTTP surface.
	authMiddleware := auth.NewMiddleware(cfg.Auth.Secret, cfg.Auth.EnableVerification, logger)
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(connectionService, schemaService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewQueryHandler(pipelineService, generatorService, parameterService, historyService, suggestionService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewVisualizationsHandler(suggestionService, logger).RegisterRoutes(mux, authMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting sqlagent-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// migrateDatabase applies pending app-database migrations over a short-lived
// stdlib connection.
func migrateDatabase(cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return database.RunMigrations(db, cfg.MigrationsPath, logger)
}
