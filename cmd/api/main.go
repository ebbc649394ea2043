// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/stockops/stock-api/internal/adapters/db"
	redis_a "github.com/stockops/stock-api/internal/adapters/redis_adapter"
	"github.com/stockops/stock-api/internal/core/ports"
	"github.com/stockops/stock-api/internal/core/services"
	"github.com/stockops/stock-api/internal/handlers"
	"github.com/stockops/stock-api/internal/handlers/middleware"
	"github.com/stockops/stock-api/internal/pkg/config"
	"github.com/stockops/stock-api/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Initialize structured logger
	appLogger := logger.SetupLogger("debug", "json")
	slogger := appLogger.Logger

	slogger.Info("starting stock management service",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
	)

	// Load configuration
	slogger.Info("loading configuration")
	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	appLogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger = appLogger.Logger
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Create application context
	ctx := context.Background()

	// Run database migrations outside production
	if !cfg.IsProduction() {
		if err := runMigrations(ctx, cfg, slogger); err != nil {
			slogger.Error("failed to run migrations", slog.String("error", err.Error()))
			// Don't exit in development, just warn
		}
	}

	// Initialize dependencies
	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	// Setup HTTP server
	server := setupHTTPServer(cfg, deps, appLogger)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
		)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received",
			slog.String("signal", sig.String()),
		)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database      *db.Database
	redisClient   *redis.Client
	cache         ports.CacheRepository
	stockService  ports.StockService
	stockHandler  *handlers.StockHandler
	healthHandler *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.database != nil {
		d.database.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, slogger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	// Initialize database connection. The store is the source of truth,
	// so a failure here is fatal.
	slogger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, slogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	// Initialize the Redis cache when enabled. An unreachable cache at
	// startup is not fatal: the service serves from the store and the
	// cache joins in once it becomes reachable.
	if cfg.Cache.Enabled {
		slogger.Info("connecting to Redis",
			slog.String("host", cfg.Redis.Host),
			slog.String("port", cfg.Redis.Port),
		)

		redisClient := redis.NewClient(&redis.Options{
			Addr:            cfg.GetRedisAddress(),
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			MaxRetries:      cfg.Redis.MaxRetries,
			MinRetryBackoff: cfg.Redis.MinRetryBackoff,
			MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
			DialTimeout:     cfg.Redis.DialTimeout,
			ReadTimeout:     cfg.Redis.ReadTimeout,
			WriteTimeout:    cfg.Redis.WriteTimeout,
			PoolSize:        cfg.Redis.PoolSize,
			MinIdleConns:    cfg.Redis.MinIdleConns,
			PoolTimeout:     cfg.Redis.PoolTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			slogger.Warn("redis unreachable at startup, continuing without cache",
				slog.String("error", err.Error()))
		}
		deps.redisClient = redisClient
		deps.cache = redis_a.NewCache(redisClient, cfg.Cache.RecordTTL, slogger)
	} else {
		slogger.Info("cache disabled by configuration")
	}

	// Initialize repositories
	stockRepo := db.NewStockRepository(database, slogger)

	// Initialize services
	deps.stockService = services.NewStockService(stockRepo, deps.cache, services.CacheSettings{
		Enabled:   cfg.Cache.Enabled,
		RecordTTL: cfg.Cache.RecordTTL,
		QueryTTL:  cfg.Cache.QueryTTL,
	}, slogger)

	// Initialize handlers
	deps.stockHandler = handlers.NewStockHandler(deps.stockService, slogger)
	deps.healthHandler = handlers.NewHealthHandler(database, deps.cache, cfg, slogger)

	slogger.Info("all dependencies initialized successfully")
	return deps, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, appLogger *logger.Logger) *http.Server {
	mux := http.NewServeMux()

	// Setup middleware chain
	var handler http.Handler = mux

	// Apply middleware in reverse order (innermost first)
	handler = middleware.Metrics(handler)
	if cfg.App.Environment != "test" {
		handler = middleware.RequestID(handler)
		handler = middleware.Logger(appLogger)(handler)
		handler = middleware.Recovery(appLogger.Logger)(handler)
	}

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}

	handler = middleware.Compression(handler)
	handler = middleware.SecureHeaders(handler)

	// Register routes using Go 1.22 method-specific routing
	registerRoutes(mux, deps, cfg)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(appLogger.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies, cfg *config.Config) {
	apiV1 := "/api/v1"

	// Health and readiness endpoints
	mux.HandleFunc("GET /health", deps.healthHandler.Health)
	mux.HandleFunc("GET /ready", deps.healthHandler.Readiness)
	mux.HandleFunc("GET "+apiV1+"/health", deps.healthHandler.Health)

	// Stock endpoints
	mux.HandleFunc("GET "+apiV1+"/stocks", deps.stockHandler.ListStocks)
	mux.HandleFunc("POST "+apiV1+"/stocks", deps.stockHandler.CreateStock)
	mux.HandleFunc("GET "+apiV1+"/stocks/{product_id}", deps.stockHandler.GetStock)
	mux.HandleFunc("PUT "+apiV1+"/stocks/{product_id}", deps.stockHandler.UpdateStock)
	mux.HandleFunc("DELETE "+apiV1+"/stocks/{product_id}", deps.stockHandler.DeleteStock)
	mux.HandleFunc("POST "+apiV1+"/stocks/{product_id}/add", deps.stockHandler.AddStock)
	mux.HandleFunc("POST "+apiV1+"/stocks/{product_id}/remove", deps.stockHandler.RemoveStock)
	mux.HandleFunc("GET "+apiV1+"/stocks/{product_id}/history", deps.stockHandler.GetHistory)

	// Cache observability endpoint
	mux.HandleFunc("GET "+apiV1+"/cache/stats", deps.stockHandler.CacheStats)

	// Metrics endpoint
	if cfg.Server.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, slogger *slog.Logger) error {
	slogger.Info("running database migrations")

	migrationConfig := &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}

	return db.RunMigrationsWithRetry(ctx, migrationConfig, slogger, 3)
}
