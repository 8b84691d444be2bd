package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// runtimeDependencies — хранилище, выбранное конфигурацией.
type runtimeDependencies struct {
	tx             domain.TxManager
	outboxRepo     domain.OutboxRepository
	storageChecker healthcheck.Checker
	memoryStore    *memory.Store
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			tx:             store,
			outboxRepo:     store.Outbox(),
			storageChecker: healthcheck.NewSimpleChecker("storage", store.Ping),
			memoryStore:    store,
			closeFn:        func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres dsn is required for storage driver %q", StorageDriverPostgres)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			if state, err := store.MigrationStatus(ctx); err == nil {
				logger.WithField("schema_version", state.Version).Info("postgres migrations applied")
			}
		}
		logger.Info("using postgres storage")
		return &runtimeDependencies{
			tx:             store,
			outboxRepo:     store.Outbox(),
			storageChecker: healthcheck.NewSimpleChecker("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// demoProducts — каталог для локального запуска на памяти.
func demoProducts() []domain.Product {
	now := time.Now().UTC()
	return []domain.Product{
		{ID: "sku-keyboard", Name: "Mechanical Keyboard", PriceMinor: 12900, StockQuantity: 25, CreatedAt: now, UpdatedAt: now},
		{ID: "sku-mouse", Name: "Wireless Mouse", PriceMinor: 4900, StockQuantity: 40, CreatedAt: now, UpdatedAt: now},
		{ID: "sku-monitor", Name: "27\" Monitor", PriceMinor: 32900, StockQuantity: 5, CreatedAt: now, UpdatedAt: now},
		{ID: "sku-cable", Name: "USB-C Cable", PriceMinor: 990, StockQuantity: 0, CreatedAt: now, UpdatedAt: now},
	}
}
