package service

import (
	"context"
	"log/slog"
	"sync"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"
)

const updateBufferSize = 256

// Manager owns one Monitor per configured exchange and aggregates their
// views. Exchanges without a registered adapter are tracked as
// unsupported rather than failing startup.
type Manager struct {
	cfg      *infra.Config
	rates    domain.RateProvider
	registry Registry

	mu          sync.RWMutex
	monitors    map[string]*Monitor
	order       []string
	unsupported map[string][]domain.AssetConfig

	updates chan domain.PriceUpdate
}

// NewManager wires the manager; call Initialize to start the monitors.
func NewManager(cfg *infra.Config, rates domain.RateProvider, registry Registry) *Manager {
	return &Manager{
		cfg:         cfg,
		rates:       rates,
		registry:    registry,
		monitors:    make(map[string]*Monitor),
		unsupported: make(map[string][]domain.AssetConfig),
		updates:     make(chan domain.PriceUpdate, updateBufferSize),
	}
}

type assetGroup struct {
	exchange string
	assets   []domain.AssetConfig
}

// groupAssets buckets assets per exchange, preserving first-seen order.
func groupAssets(assets []domain.AssetConfig) []assetGroup {
	index := make(map[string]int)
	var groups []assetGroup
	for _, a := range assets {
		i, ok := index[a.Exchange]
		if !ok {
			i = len(groups)
			index[a.Exchange] = i
			groups = append(groups, assetGroup{exchange: a.Exchange})
		}
		groups[i].assets = append(groups[i].assets, a)
	}
	return groups
}

// Initialize starts a monitor for every exchange that has assets. An
// unknown exchange or a monitor that cannot start moves its assets to
// the unsupported set; startup itself never fails over it.
func (m *Manager) Initialize(ctx context.Context) {
	for _, group := range groupAssets(m.cfg.Assets) {
		factory, ok := m.registry[group.exchange]
		if !ok {
			slog.Warn("unsupported exchange, assets excluded from metrics",
				slog.String("exchange", group.exchange),
				slog.Int("assets", len(group.assets)),
			)
			m.markUnsupported(group)
			continue
		}

		adapter := factory(m.cfg, m.notifyFor(group.exchange))
		mon := NewMonitor(group.exchange, group.assets, adapter, m.rates, pollIntervalFor(m.cfg, group.exchange))
		if err := mon.Start(ctx); err != nil {
			slog.Error("monitor failed to start, assets excluded from metrics",
				slog.String("exchange", group.exchange),
				slog.Any("error", err),
			)
			m.markUnsupported(group)
			continue
		}

		m.mu.Lock()
		m.monitors[group.exchange] = mon
		m.order = append(m.order, group.exchange)
		m.mu.Unlock()

		slog.Info("monitor started",
			slog.String("exchange", group.exchange),
			slog.String("transport", mon.Status().Transport),
			slog.Int("assets", len(group.assets)),
		)
	}
}

func (m *Manager) markUnsupported(group assetGroup) {
	m.mu.Lock()
	m.unsupported[group.exchange] = group.assets
	m.mu.Unlock()
}

// notifyFor publishes accepted samples to the updates channel without
// ever blocking a price feed. A full buffer drops the update; the next
// sample carries fresher data anyway.
func (m *Manager) notifyFor(exchange string) func(domain.PriceData) {
	return func(pd domain.PriceData) {
		select {
		case m.updates <- domain.PriceUpdate{Exchange: exchange, Data: pd}:
		default:
		}
	}
}

// Updates exposes the stream of accepted price samples.
func (m *Manager) Updates() <-chan domain.PriceUpdate {
	return m.updates
}

// AssetMetrics concatenates per-exchange metrics in startup order.
func (m *Manager) AssetMetrics() []domain.AssetMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.AssetMetrics
	for _, exchange := range m.order {
		out = append(out, m.monitors[exchange].AssetMetrics()...)
	}
	return out
}

// WarmStart seeds every monitor from the snapshot store. Failures are
// logged and skipped; a cold start is always acceptable.
func (m *Manager) WarmStart(ctx context.Context, store domain.SnapshotStore) {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, exchange := range order {
		samples, err := store.Load(ctx, exchange)
		if err != nil {
			slog.Warn("snapshot load failed",
				slog.String("exchange", exchange),
				slog.Any("error", err),
			)
			continue
		}
		if len(samples) == 0 {
			continue
		}
		m.mu.RLock()
		mon := m.monitors[exchange]
		m.mu.RUnlock()
		mon.SeedPrices(samples)
		slog.Info("seeded prices from snapshot",
			slog.String("exchange", exchange),
			slog.Int("symbols", len(samples)),
		)
	}
}

// Status describes every exchange the manager knows about.
type Status struct {
	Exchanges   []MonitorStatus     `json:"exchanges"`
	Unsupported map[string][]string `json:"unsupported,omitempty"`
}

// Status reports per-exchange connectivity plus the unsupported set.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{}
	for _, exchange := range m.order {
		st.Exchanges = append(st.Exchanges, m.monitors[exchange].Status())
	}
	if len(m.unsupported) > 0 {
		st.Unsupported = make(map[string][]string, len(m.unsupported))
		for exchange, assets := range m.unsupported {
			for _, a := range assets {
				st.Unsupported[exchange] = append(st.Unsupported[exchange], a.Symbol)
			}
		}
	}
	return st
}

// Stop halts every monitor. The updates channel stays open so late
// deliveries never panic; consumers exit with their context.
func (m *Manager) Stop() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, exchange := range m.order {
		m.monitors[exchange].Stop()
	}
}
