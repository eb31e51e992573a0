package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"

	"github.com/shopspring/decimal"
)

func fakeRegistry(adapters map[string]*fakeAdapter, notifies map[string]func(domain.PriceData)) Registry {
	reg := Registry{}
	for name, adapter := range adapters {
		name, adapter := name, adapter
		reg[name] = func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			if notifies != nil {
				notifies[name] = notify
			}
			return adapter
		}
	}
	return reg
}

func managerConfig(assets ...domain.AssetConfig) *infra.Config {
	cfg := &infra.Config{Assets: assets}
	cfg.Exchanges.Yahoo.PollIntervalSec = 3600
	cfg.Exchanges.Forex.PollIntervalSec = 3600
	cfg.Exchanges.Metals.PollIntervalSec = 3600
	return cfg
}

func TestManagerTracksUnsupportedExchanges(t *testing.T) {
	adapter := newFakeAdapter(true)
	adapter.setPrice("BTC", "50000", "USD", 1000)

	cfg := managerConfig(
		asset("BTC", "1", "binance", "USD", "alice"),
		asset("XYZ", "5", "unknown-ex", "USD", "alice"),
	)
	mgr := NewManager(cfg, usdtRates(), fakeRegistry(map[string]*fakeAdapter{"binance": adapter}, nil))
	mgr.Initialize(context.Background())
	defer mgr.Stop()

	metrics := mgr.AssetMetrics()
	if len(metrics) != 1 || metrics[0].Symbol != "BTC" {
		t.Fatalf("metrics = %+v, want only BTC", metrics)
	}

	st := mgr.Status()
	if len(st.Exchanges) != 1 {
		t.Fatalf("len(status.Exchanges) = %d, want 1", len(st.Exchanges))
	}
	symbols, ok := st.Unsupported["unknown-ex"]
	if !ok || len(symbols) != 1 || symbols[0] != "XYZ" {
		t.Errorf("unsupported = %v, want unknown-ex:[XYZ]", st.Unsupported)
	}
}

func TestManagerMetricsKeepStartupOrder(t *testing.T) {
	binanceAdapter := newFakeAdapter(true)
	binanceAdapter.setPrice("BTC", "50000", "USD", 1000)
	yahooAdapter := newFakeAdapter(true)
	yahooAdapter.setPrice("AAPL", "200", "USD", 1000)

	cfg := managerConfig(
		asset("BTC", "1", "binance", "USD", "alice"),
		asset("AAPL", "10", "yahoo", "USD", "bob"),
	)
	mgr := NewManager(cfg, usdtRates(), fakeRegistry(map[string]*fakeAdapter{
		"binance": binanceAdapter,
		"yahoo":   yahooAdapter,
	}, nil))
	mgr.Initialize(context.Background())
	defer mgr.Stop()

	metrics := mgr.AssetMetrics()
	if len(metrics) != 2 {
		t.Fatalf("len(metrics) = %d, want 2", len(metrics))
	}
	if metrics[0].Exchange != "binance" || metrics[1].Exchange != "yahoo" {
		t.Errorf("order = [%s %s], want [binance yahoo]", metrics[0].Exchange, metrics[1].Exchange)
	}
}

func TestManagerPublishesUpdates(t *testing.T) {
	adapter := newFakeAdapter(true)
	notifies := map[string]func(domain.PriceData){}

	cfg := managerConfig(asset("BTC", "1", "binance", "USD", "alice"))
	mgr := NewManager(cfg, usdtRates(), fakeRegistry(map[string]*fakeAdapter{"binance": adapter}, notifies))
	mgr.Initialize(context.Background())
	defer mgr.Stop()

	notify := notifies["binance"]
	if notify == nil {
		t.Fatal("factory did not receive a notify callback")
	}
	notify(domain.PriceData{Symbol: "BTC", Price: decimal.NewFromInt(50000), Currency: "USD", Timestamp: 1})

	select {
	case update := <-mgr.Updates():
		if update.Exchange != "binance" || update.Data.Symbol != "BTC" {
			t.Errorf("update = %+v, want binance/BTC", update)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}

type fakeSnapshotStore struct {
	samples map[string][]domain.PriceData
	loadErr error
}

func (f *fakeSnapshotStore) Save(ctx context.Context, update domain.PriceUpdate) error { return nil }

func (f *fakeSnapshotStore) Load(ctx context.Context, exchange string) ([]domain.PriceData, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.samples[exchange], nil
}

func (f *fakeSnapshotStore) Close() error { return nil }

func TestManagerWarmStart(t *testing.T) {
	adapter := newFakeAdapter(true)
	cfg := managerConfig(asset("BTC", "1", "binance", "USD", "alice"))
	mgr := NewManager(cfg, usdtRates(), fakeRegistry(map[string]*fakeAdapter{"binance": adapter}, nil))
	mgr.Initialize(context.Background())
	defer mgr.Stop()

	store := &fakeSnapshotStore{samples: map[string][]domain.PriceData{
		"binance": {{Symbol: "BTC", Price: decimal.NewFromInt(48000), Currency: "USD", Timestamp: 1}},
	}}
	mgr.WarmStart(context.Background(), store)

	if len(adapter.seeded) != 1 {
		t.Fatalf("seeded %d samples, want 1", len(adapter.seeded))
	}
	if metrics := mgr.AssetMetrics(); len(metrics) != 1 {
		t.Errorf("len(metrics) = %d, want 1 after warm start", len(metrics))
	}
}

func TestManagerWarmStartToleratesLoadFailure(t *testing.T) {
	adapter := newFakeAdapter(true)
	cfg := managerConfig(asset("BTC", "1", "binance", "USD", "alice"))
	mgr := NewManager(cfg, usdtRates(), fakeRegistry(map[string]*fakeAdapter{"binance": adapter}, nil))
	mgr.Initialize(context.Background())
	defer mgr.Stop()

	mgr.WarmStart(context.Background(), &fakeSnapshotStore{loadErr: errors.New("disk gone")})

	if len(adapter.seeded) != 0 {
		t.Errorf("seeded %d samples, want 0", len(adapter.seeded))
	}
}
