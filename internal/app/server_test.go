package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assetwatch/internal/domain"
	"assetwatch/internal/export"
	"assetwatch/internal/infra"
	"assetwatch/internal/service"

	"github.com/shopspring/decimal"
)

type stubAdapter struct {
	prices map[string]domain.PriceData
}

func (a *stubAdapter) Connect(ctx context.Context, symbols []string) error { return nil }
func (a *stubAdapter) Disconnect()                                         {}

func (a *stubAdapter) FetchRest(ctx context.Context, symbols []string) ([]domain.PriceData, error) {
	return a.AllPrices(), nil
}

func (a *stubAdapter) CurrentPrice(symbol string) (domain.PriceData, bool) {
	pd, ok := a.prices[symbol]
	return pd, ok
}

func (a *stubAdapter) AllPrices() []domain.PriceData {
	out := make([]domain.PriceData, 0, len(a.prices))
	for _, pd := range a.prices {
		out = append(out, pd)
	}
	return out
}

func (a *stubAdapter) Streaming() bool { return true }
func (a *stubAdapter) Connected() bool { return true }

type identityRates struct{}

func (identityRates) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	return amount, nil
}

func (identityRates) Rate(from, to string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	quantity, _ := decimal.NewFromString("0.5")
	cfg := &infra.Config{Assets: []domain.AssetConfig{
		{Symbol: "BTC", Quantity: quantity, Exchange: "binance", Currency: "USD", Owner: "alice"},
		{Symbol: "XYZ", Quantity: decimal.NewFromInt(1), Exchange: "unknown-ex", Currency: "USD", Owner: "alice"},
	}}

	adapter := &stubAdapter{prices: map[string]domain.PriceData{
		"BTC": {Symbol: "BTC", Price: decimal.NewFromInt(50000), Currency: "USD", Timestamp: 1},
	}}
	registry := service.Registry{
		"binance": func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			return adapter
		},
	}

	manager := service.NewManager(cfg, identityRates{}, registry)
	manager.Initialize(context.Background())
	t.Cleanup(manager.Stop)

	server := NewServer(cfg, manager)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != openMetricsContentType {
		t.Errorf("content type = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	want := `asset_value{symbol="BTC",currency="USD",owner="alice",exchange="binance"} 25000`
	if !strings.Contains(text, want+"\n") {
		t.Errorf("body missing %q:\n%s", want, text)
	}
	if !strings.HasSuffix(text, "# EOF\n") {
		t.Error("body does not end with # EOF")
	}
}

func TestSummaryEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/summary")
	if err != nil {
		t.Fatalf("GET /summary failed: %v", err)
	}
	defer resp.Body.Close()

	var s export.Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !s.TotalValue.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("total = %s, want 25000", s.TotalValue)
	}
	if s.AssetCount != 1 {
		t.Errorf("asset count = %d, want 1", s.AssetCount)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()

	var st service.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(st.Exchanges) != 1 || st.Exchanges[0].Exchange != "binance" {
		t.Errorf("exchanges = %+v", st.Exchanges)
	}
	if _, ok := st.Unsupported["unknown-ex"]; !ok {
		t.Errorf("unsupported = %v, want unknown-ex entry", st.Unsupported)
	}
}

func TestEndpointsRejectNonGet(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/metrics", "/summary", "/status"} {
		resp, err := http.Post(ts.URL+path, "text/plain", nil)
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s status = %d, want 405", path, resp.StatusCode)
		}
	}
}
