// cmd/seeder/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockops/stock-api/internal/adapters/db"
	"github.com/stockops/stock-api/internal/core/domain"
	"github.com/stockops/stock-api/internal/core/services"
	"github.com/stockops/stock-api/internal/pkg/config"
	"github.com/stockops/stock-api/internal/pkg/logger"
)

type seedItem struct {
	productID string
	name      string
	category  string
	supplier  string
	quantity  int
	price     string
	minStock  int
	maxStock  int
}

var seedItems = []seedItem{
	{"seed-keyboard-01", "Mechanical Keyboard", "electronics", "Keychron", 120, "89.99", 20, 500},
	{"seed-mouse-01", "Wireless Mouse", "electronics", "Logitech", 340, "24.50", 50, 800},
	{"seed-monitor-01", "27in 4K Monitor", "electronics", "Dell", 45, "379.00", 10, 200},
	{"seed-desk-01", "Standing Desk", "furniture", "Fully", 18, "549.00", 5, 60},
	{"seed-chair-01", "Ergonomic Chair", "furniture", "Herman Miller", 9, "1095.00", 5, 40},
	{"seed-cable-01", "USB-C Cable 2m", "accessories", "Anker", 950, "12.99", 100, 2000},
	{"seed-hub-01", "7-Port USB Hub", "accessories", "Anker", 210, "34.99", 30, 600},
	{"seed-ssd-01", "1TB NVMe SSD", "storage", "Samsung", 160, "99.00", 25, 400},
	{"seed-hdd-01", "4TB External HDD", "storage", "Seagate", 80, "109.00", 15, 300},
	{"seed-lamp-01", "LED Desk Lamp", "general", "BenQ", 64, "59.00", 10, 150},
}

func main() {
	truncate := flag.Bool("truncate", false, "truncate stock tables before seeding")
	flag.Parse()

	appLogger := logger.SetupLogger("info", "text")
	slogger := appLogger.Logger

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, slogger, *truncate); err != nil {
		slogger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, slogger *slog.Logger, truncate bool) error {
	migrationConfig := &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}
	if err := db.RunMigrationsWithRetry(ctx, migrationConfig, slogger, 3); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Database:       cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, slogger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close()

	if truncate {
		if _, err := database.Exec(ctx, "TRUNCATE stock_history, stock_records"); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		slogger.Info("stock tables truncated")
	}

	// Seed through the service so validation, defaults and history events
	// all behave exactly as they do for API writes. No cache here: the
	// seeder has nothing to keep coherent.
	repo := db.NewStockRepository(database, slogger)
	service := services.NewStockService(repo, nil, services.CacheSettings{Enabled: false}, slogger)

	seeded := 0
	for _, item := range seedItems {
		price, err := decimal.NewFromString(item.price)
		if err != nil {
			return fmt.Errorf("bad seed price %q: %w", item.price, err)
		}

		record := &domain.StockRecord{
			ProductID: item.productID,
			Name:      item.name,
			Category:  item.category,
			Supplier:  item.supplier,
			Quantity:  item.quantity,
			Price:     price,
			MinStock:  item.minStock,
			MaxStock:  item.maxStock,
		}

		if err := service.CreateRecord(ctx, record); err != nil {
			if errors.Is(err, domain.ErrDuplicateProduct) {
				slogger.Warn("skipping existing product",
					slog.String("product_id", item.productID))
				continue
			}
			return fmt.Errorf("seed %s: %w", item.productID, err)
		}
		seeded++
	}

	slogger.Info("seeding complete",
		slog.Int("seeded", seeded),
		slog.Int("skipped", len(seedItems)-seeded))
	return nil
}
