package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"
	"assetwatch/internal/infra/rates"
	"assetwatch/internal/infra/storage"
	"assetwatch/internal/service"
)

const defaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Store   domain.SnapshotStore
	Rates   *rates.Converter
	Manager *service.Manager

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, sets up logging and builds the components.
// Nothing talks to the network yet; that happens in Start.
func (b *Bootstrap) Initialize() error {
	path := os.Getenv("ASSETWATCH_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("🚀 Bootstrapping AssetWatch...",
		slog.String("config", path),
		slog.Int("assets", len(cfg.Assets)),
	)

	store, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}
	b.Store = store
	if store != nil {
		slog.Info("✅ Snapshot store ready", slog.String("driver", cfg.Storage.Driver))
	}

	b.Rates = rates.NewConverter(cfg.Rates.URL, cfg.Rates.Anchor, cfg.Rates.RefreshIntervalSec)
	b.Manager = service.NewManager(cfg, b.Rates, service.DefaultRegistry())
	return nil
}

func openSnapshotStore(cfg *infra.Config) (domain.SnapshotStore, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		path := cfg.Storage.Path
		if path == "" {
			path = "data/snapshots.db"
		}
		return storage.NewSQLiteStore(path)
	case "redis":
		return storage.NewRedisStore(cfg.Storage.Addr, cfg.Storage.Password, cfg.Storage.DB)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// Start brings the price feeds up. A failed initial rate fetch is the
// only fatal condition; everything after degrades and retries. The
// background work runs on an internal context so Stop can end it even
// while the caller's context is still alive.
func (b *Bootstrap) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	if err := b.Rates.Initialize(ctx); err != nil {
		return fmt.Errorf("initial exchange rate fetch failed: %w", err)
	}
	slog.Info("✅ Exchange rates loaded", slog.String("anchor", b.Rates.Anchor()))

	b.Manager.Initialize(ctx)

	if b.Store != nil {
		b.Manager.WarmStart(ctx, b.Store)
		b.runSnapshotWriter(ctx)
	}
	return nil
}

// runSnapshotWriter persists every accepted price sample so the next
// start can be warm. Write failures are logged and dropped.
func (b *Bootstrap) runSnapshotWriter(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-b.Manager.Updates():
				if err := b.Store.Save(ctx, update); err != nil {
					slog.Warn("snapshot write failed",
						slog.String("exchange", update.Exchange),
						slog.String("symbol", update.Data.Symbol),
						slog.Any("error", err),
					)
				}
			}
		}
	}()
}

// Stop tears everything down in reverse order.
func (b *Bootstrap) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.Manager.Stop()
	b.Rates.Stop()
	b.wg.Wait()
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("snapshot store close failed", slog.Any("error", err))
		}
	}
}
