package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"

	"github.com/shopspring/decimal"
)

func newWorker(t *testing.T, restURL string) *Worker {
	t.Helper()
	cfg := &infra.Config{}
	cfg.Exchanges.Binance.WSURL = "wss://example.invalid/ws"
	cfg.Exchanges.Binance.RestURL = restURL
	return NewWorker(cfg, nil)
}

func TestHandleMessageMiniTicker(t *testing.T) {
	w := newWorker(t, "")

	w.handleMessage([]byte(`{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"50000.25"}`))

	pd, ok := w.CurrentPrice("BTC")
	if !ok {
		t.Fatal("expected BTC sample")
	}
	if !pd.Price.Equal(decimal.NewFromFloat(50000.25)) {
		t.Errorf("price = %s, want 50000.25", pd.Price)
	}
	if pd.Currency != "USDT" {
		t.Errorf("currency = %s, want USDT", pd.Currency)
	}
	if pd.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d", pd.Timestamp)
	}
}

func TestHandleMessageIgnoresControlFrames(t *testing.T) {
	w := newWorker(t, "")

	// Subscription ack and garbage must not produce samples or panic.
	w.handleMessage([]byte(`{"result":null,"id":1}`))
	w.handleMessage([]byte(`not json at all`))
	w.handleMessage([]byte(`{"e":"24hrMiniTicker","E":1,"s":"BTCUSDT","c":"not-a-number"}`))

	if len(w.AllPrices()) != 0 {
		t.Errorf("control frames should not create samples, got %d", len(w.AllPrices()))
	}
}

func TestFetchRest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			w.Write([]byte(`{"symbol":"BTCUSDT","price":"50000.00"}`))
		case "ETHUSDT":
			w.Write([]byte(`{"symbol":"ETHUSDT","price":"3000.50"}`))
		default:
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}
	}))
	defer server.Close()

	w := newWorker(t, server.URL)

	// NOPE is skipped, the others come through.
	prices, err := w.FetchRest(context.Background(), []string{"BTC", "NOPE", "ETH"})
	if err != nil {
		t.Fatalf("FetchRest failed: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("len(prices) = %d, want 2", len(prices))
	}

	pd, ok := w.CurrentPrice("ETH")
	if !ok || !pd.Price.Equal(decimal.NewFromFloat(3000.50)) {
		t.Errorf("ETH sample missing or wrong: %+v", pd)
	}
}

func TestFetchRestAllFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1003,"msg":"Too many requests."}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	w := newWorker(t, server.URL)
	_, err := w.FetchRest(context.Background(), []string{"BTC"})
	if err == nil {
		t.Fatal("expected error when nothing could be fetched")
	}
	if !domain.IsRetriable(err) {
		t.Error("rest failure should be retriable")
	}
}

func TestPairMapping(t *testing.T) {
	if pairFor("btc") != "BTCUSDT" {
		t.Errorf("pairFor(btc) = %s", pairFor("btc"))
	}
	if symbolFor("BTCUSDT") != "BTC" {
		t.Errorf("symbolFor(BTCUSDT) = %s", symbolFor("BTCUSDT"))
	}
}
