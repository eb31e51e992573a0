package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"assetwatch/internal/domain"
)

const defaultPollInterval = 60 * time.Second

// Monitor binds one exchange connection to the configured assets that use
// it. It prefers push delivery when the adapter supports it and falls
// back to scheduled REST polling otherwise.
type Monitor struct {
	exchange     string
	assets       []domain.AssetConfig
	adapter      domain.ExchangeAdapter
	rates        domain.RateProvider
	pollInterval time.Duration

	mu        sync.Mutex
	transport string // "websocket" or "rest"
	cancel    context.CancelFunc
	stopped   bool
	wg        sync.WaitGroup
}

// NewMonitor creates a monitor for one exchange.
func NewMonitor(exchange string, assets []domain.AssetConfig, adapter domain.ExchangeAdapter, rates domain.RateProvider, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Monitor{
		exchange:     exchange,
		assets:       assets,
		adapter:      adapter,
		rates:        rates,
		pollInterval: pollInterval,
	}
}

// Start opens the price feed. A failed push connection degrades to REST
// polling with the first poll issued immediately.
func (m *Monitor) Start(ctx context.Context) error {
	symbols := m.symbols()

	if m.adapter.Streaming() {
		if err := m.adapter.Connect(ctx, symbols); err == nil {
			m.mu.Lock()
			m.transport = "websocket"
			m.mu.Unlock()
			return nil
		} else {
			slog.Warn("push connect failed, falling back to polling",
				slog.String("exchange", m.exchange),
				slog.Any("error", err),
			)
		}
	}

	m.mu.Lock()
	m.transport = "rest"
	m.mu.Unlock()
	m.startPolling(ctx, symbols)
	return nil
}

func (m *Monitor) startPolling(ctx context.Context, symbols []string) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.poll(ctx, symbols)

		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.poll(ctx, symbols)
			}
		}
	}()
}

func (m *Monitor) poll(ctx context.Context, symbols []string) {
	if _, err := m.adapter.FetchRest(ctx, symbols); err != nil {
		// Recoverable; the next tick retries.
		slog.Warn("poll failed",
			slog.String("exchange", m.exchange),
			slog.Any("error", err),
		)
	}
}

// AssetMetrics computes the current view of every configured asset.
// Assets without data or with a non-positive price are omitted. A failed
// currency conversion degrades to the price's native currency.
func (m *Monitor) AssetMetrics() []domain.AssetMetrics {
	assetType := domain.AssetTypeForExchange(m.exchange)
	out := make([]domain.AssetMetrics, 0, len(m.assets))

	for _, asset := range m.assets {
		pd, ok := m.adapter.CurrentPrice(asset.Symbol)
		if !ok || !pd.Price.IsPositive() {
			continue
		}

		price := pd.Price
		currency := asset.Currency
		if currency == "" {
			currency = pd.Currency
		} else if !strings.EqualFold(currency, pd.Currency) {
			converted, err := m.rates.Convert(pd.Price, pd.Currency, currency)
			if err != nil {
				slog.Warn("conversion failed, reporting native currency",
					slog.String("symbol", asset.Symbol),
					slog.String("from", pd.Currency),
					slog.String("to", currency),
					slog.Any("error", err),
				)
				currency = pd.Currency
			} else {
				price = converted
			}
		}

		out = append(out, domain.AssetMetrics{
			Symbol:       asset.Symbol,
			Quantity:     asset.Quantity,
			CurrentPrice: price,
			Value:        asset.Quantity.Mul(price),
			Currency:     currency,
			Exchange:     m.exchange,
			Owner:        asset.Owner,
			AssetType:    assetType,
		})
	}
	return out
}

// SeedPrices warms the adapter's price store from a snapshot, when the
// adapter supports it.
func (m *Monitor) SeedPrices(samples []domain.PriceData) {
	if seeder, ok := m.adapter.(domain.Seeder); ok {
		seeder.Seed(samples)
	}
}

// Stop halts polling and tears down the connection. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.adapter.Disconnect()
}

// MonitorStatus describes one exchange's connectivity.
type MonitorStatus struct {
	Exchange  string   `json:"exchange"`
	Transport string   `json:"transport"`
	Connected bool     `json:"connected"`
	Symbols   []string `json:"symbols"`
}

// Status reports the monitor's transport and covered symbols.
func (m *Monitor) Status() MonitorStatus {
	m.mu.Lock()
	transport := m.transport
	stopped := m.stopped
	m.mu.Unlock()

	connected := m.adapter.Connected()
	if transport == "rest" {
		connected = !stopped
	}
	return MonitorStatus{
		Exchange:  m.exchange,
		Transport: transport,
		Connected: connected,
		Symbols:   m.symbols(),
	}
}

// symbols returns the unique symbol set in first-seen order.
func (m *Monitor) symbols() []string {
	seen := make(map[string]bool, len(m.assets))
	out := make([]string, 0, len(m.assets))
	for _, a := range m.assets {
		if seen[a.Symbol] {
			continue
		}
		seen[a.Symbol] = true
		out = append(out, a.Symbol)
	}
	return out
}
