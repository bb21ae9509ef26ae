package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/config"
	"fuel-reconciliation-service/internal/database"
	"fuel-reconciliation-service/internal/handlers"
	"fuel-reconciliation-service/internal/logger"
	"fuel-reconciliation-service/internal/metrics"
	"fuel-reconciliation-service/internal/ratelimit"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
	"fuel-reconciliation-service/internal/services"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Migration command (up/down/version)")
	steps := flag.Int("steps", 0, "Number of migration steps (0 means all)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer zl.Sync()

	if *migrateCmd != "" {
		if err := handleMigration(cfg, zl, *migrateCmd, *steps); err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
		return
	}

	db, err := database.NewConnection(cfg, zl)
	if err != nil {
		zl.Fatal("error connecting to database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	attempts, closeAttempts, err := newAttemptCounter(cfg, zl)
	if err != nil {
		zl.Fatal("error connecting to redis", zap.Error(err))
	}
	defer closeAttempts()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	clk := clock.New()

	orders := repositories.NewOrderRepository(db)
	taxes := repositories.NewTaxRepository(db)
	banks := repositories.NewBankRepository(db)
	payments := repositories.NewPaymentRepository(db)

	router := handlers.SetupRouter(handlers.Services{
		Tax:          services.NewTaxService(orders, taxes, clk, m, zl, cfg.Currency),
		Allocation:   services.NewAllocationService(banks, orders, taxes, clk, m, zl, cfg.Currency),
		Banks:        services.NewBankService(banks, payments, taxes, zl),
		Shareholders: services.NewShareholderService(orders, repositories.NewSharedTaxRepository(db), shareholders(cfg), clk, zl),
		Clients:      services.NewClientService(orders, payments, m, zl),
		Orders:       services.NewOrderService(orders, clk, zl),
		Payments:     services.NewPaymentIngestionService(payments, clk, zl),
		ShareLinks: services.NewShareLinkService(repositories.NewShareLinkRepository(db), orders,
			attempts, cfg.ShareLinks.MaxAttempts, clk, m, zl),
	}, reg, zl)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		zl.Info("server is running", zap.String("addr", cfg.ServerAddress), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
		return
	}
	zl.Info("server exited gracefully")
}

func shareholders(cfg *config.Config) []reconcile.Shareholder {
	out := make([]reconcile.Shareholder, 0, len(cfg.Shareholders))
	for _, sh := range cfg.Shareholders {
		out = append(out, reconcile.Shareholder{Name: sh.Name, Fraction: sh.Fraction})
	}
	return out
}

// newAttemptCounter uses redis when REDIS_ADDR is set so limits hold across
// instances, and process memory otherwise.
func newAttemptCounter(cfg *config.Config, zl *zap.Logger) (ratelimit.AttemptCounter, func(), error) {
	window := cfg.ShareLinks.AttemptWindow
	if cfg.Redis.Addr == "" {
		zl.Info("share link attempts kept in memory")
		return ratelimit.NewMemoryAttempts(window, clock.New()), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", cfg.Redis.Addr, err)
	}
	zl.Info("share link attempts kept in redis", zap.String("addr", cfg.Redis.Addr))
	return ratelimit.NewRedisAttempts(client, window), func() { client.Close() }, nil
}

func handleMigration(cfg *config.Config, zl *zap.Logger, command string, steps int) error {
	if cfg.Database.Driver != "mysql" {
		return fmt.Errorf("migrations apply to mysql only; the %s driver is migrated from the models", cfg.Database.Driver)
	}

	// Connecting first creates the schema when it does not exist yet.
	db, err := database.NewConnection(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", cfg.Migration.Dir), cfg.GetMigrationDBURL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrate: %w", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verErr := m.Version()
		if errors.Is(verErr, migrate.ErrNilVersion) {
			zl.Info("no migrations have been applied yet")
			return nil
		}
		if verErr != nil {
			return fmt.Errorf("failed to get version: %w", verErr)
		}
		zl.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("invalid migration command: %s", command)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		zl.Info("no migration changes to apply")
		return nil
	}
	if err != nil {
		return err
	}
	zl.Info("migration completed successfully", zap.String("command", command))
	return nil
}
