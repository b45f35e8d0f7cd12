package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/stockroom-erp/stockroom/internal/app"
	"github.com/stockroom-erp/stockroom/internal/auth"
	"github.com/stockroom-erp/stockroom/internal/catalog"
	"github.com/stockroom-erp/stockroom/internal/catalog/categories"
	"github.com/stockroom-erp/stockroom/internal/catalog/products"
	"github.com/stockroom-erp/stockroom/internal/catalog/warehouses"
	"github.com/stockroom-erp/stockroom/internal/dashboard"
	"github.com/stockroom-erp/stockroom/internal/observability"
	"github.com/stockroom-erp/stockroom/internal/operations"
	"github.com/stockroom-erp/stockroom/internal/platform/cache"
	"github.com/stockroom-erp/stockroom/internal/platform/db"
	"github.com/stockroom-erp/stockroom/internal/shared"
	"github.com/stockroom-erp/stockroom/internal/stock"
	"github.com/stockroom-erp/stockroom/jobs"
	"github.com/stockroom-erp/stockroom/migrations"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	goose.SetBaseFS(migrations.FS)
	return goose.Up(sqlDB, ".")
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := runMigrations(cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokenStore)
	authHandler := auth.NewHandler(logger, authService, validate)

	productService := products.NewService(products.NewRepository(pool))
	productHandler := products.NewHandler(logger, productService, validate)
	categoryService := categories.NewService(categories.NewRepository(pool))
	categoryHandler := categories.NewHandler(logger, categoryService, validate)
	warehouseService := warehouses.NewService(warehouses.NewRepository(pool))
	warehouseHandler := warehouses.NewHandler(logger, warehouseService, validate)

	stockRepo := stock.NewRepository(pool)
	stockHandler := stock.NewHandler(logger, stockRepo)
	engine := stock.NewEngine(stock.EngineConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
		LogZeroChanges:     cfg.LogZeroAdjustments,
	})

	dashboardService := dashboard.NewService(
		dashboard.NewRepository(pool),
		dashboard.NewCache(redisClient, cfg.DashboardCacheTTL),
	)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	refs := catalog.NewRefs(pool)
	operationsStore := operations.NewPGStore(pool, idempotencyStore)
	operationsService := operations.NewService(logger, operationsStore, engine, refs, auditLogger).
		WithInvalidator(dashboardService)
	operationsHandler := operations.NewHandler(logger, operationsService, validate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		TokenStore:        tokenStore,
		AuthHandler:       authHandler,
		ProductHandler:    productHandler,
		CategoryHandler:   categoryHandler,
		WarehouseHandler:  warehouseHandler,
		StockHandler:      stockHandler,
		OperationsHandler: operationsHandler,
		DashboardHandler:  dashboardHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
