package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/auth"
	"github.com/corebridge/corebridge/pkg/config"
	"github.com/corebridge/corebridge/pkg/database"
	"github.com/corebridge/corebridge/pkg/datamesh"
	"github.com/corebridge/corebridge/pkg/gateway"
	"github.com/corebridge/corebridge/pkg/handlers"
	"github.com/corebridge/corebridge/pkg/logging"
	"github.com/corebridge/corebridge/pkg/middleware"
	"github.com/corebridge/corebridge/pkg/repositories"
	"github.com/corebridge/corebridge/pkg/retry"
	"github.com/corebridge/corebridge/pkg/seed"
	"github.com/corebridge/corebridge/pkg/specs"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	seedFile := flag.String("seed", "", "YAML seed file to import before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Host))

	ctx := context.Background()

	// Connect to PostgreSQL with retry; the database may still be starting.
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Repositories
	moduleRepo := repositories.NewLogicModuleRepository(db)
	relationshipRepo := repositories.NewRelationshipRepository(db)
	joinRepo := repositories.NewJoinRecordRepository(db)

	// Spec cache, dispatcher, and mesh orchestration
	fetcher := specs.NewHTTPFetcher(cfg.Gateway.BackendTimeout, logger)
	specCache := specs.NewCache(fetcher, cfg.Gateway.SpecCacheTTL, redisClient, logger)

	client := gateway.NewClient(specCache, cfg.Gateway.BackendTimeout, logger)
	dispatcher := gateway.NewDispatcher(moduleRepo, client, logger)

	resolver := datamesh.NewResolver(moduleRepo, relationshipRepo)
	joinService := datamesh.NewJoinService(joinRepo, logger)
	orchestrator := datamesh.NewOrchestrator(resolver, joinService, dispatcher, logger)

	// Authentication
	validator, err := auth.NewValidator(&cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to create token validator", zap.Error(err))
	}
	authService := auth.NewAuthService(validator, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	// Optional seed import before serving
	if path := seedPath(*seedFile, cfg); path != "" {
		seeder := seed.NewSeeder(moduleRepo, relationshipRepo, joinService, logger)
		if err := seeder.LoadFile(ctx, path); err != nil {
			logger.Fatal("Failed to apply seed file", zap.String("path", path), zap.Error(err))
		}
	}

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewLogicModuleHandler(moduleRepo, specCache, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewRelationshipHandler(moduleRepo, relationshipRepo, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewGatewayHandler(dispatcher, orchestrator, cfg.Gateway.RequestTimeout, logger).RegisterRoutes(mux, authMiddleware)

	// Outermost first: host filter, CORS, query inspection, request logging.
	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.InspectRequests(cfg.Gateway.InspectRequests, logger)(handler)
	handler = middleware.CORS(&cfg.CORS)(handler)
	handler = middleware.AllowedHosts(cfg)(handler)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Mesh fan-out can legitimately take a while; cap a little above
		// the request timeout so the handler's deadline fires first.
		WriteTimeout: cfg.Gateway.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting corebridge",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}

// runMigrations applies pending migrations through database/sql, which
// golang-migrate requires.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}

// seedPath prefers the -seed flag over GATEWAY_SEED_FILE.
func seedPath(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Gateway.SeedFile
}
