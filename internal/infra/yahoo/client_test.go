package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"

	"github.com/shopspring/decimal"
)

func chartBody(currency string, price float64, ts int64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":%q,"symbol":"AAPL","regularMarketPrice":%v,"regularMarketTime":%d}}],"error":null}}`,
		currency, price, ts)
}

func newClient(t *testing.T, restURL string) *Client {
	t.Helper()
	cfg := &infra.Config{}
	cfg.Exchanges.Yahoo.RestURL = restURL
	return NewClient(cfg, nil)
}

func TestFetchRestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v8/finance/chart/AAPL" {
			w.Write([]byte(chartBody("USD", 189.37, 1700000000)))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := newClient(t, server.URL)

	prices, err := c.FetchRest(context.Background(), []string{"AAPL", "GONE"})
	if err != nil {
		t.Fatalf("FetchRest failed: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("len(prices) = %d, want 1", len(prices))
	}
	pd := prices[0]
	if !pd.Price.Equal(decimal.NewFromFloat(189.37)) {
		t.Errorf("price = %s, want 189.37", pd.Price)
	}
	if pd.Currency != "USD" {
		t.Errorf("currency = %s, want USD", pd.Currency)
	}
	if pd.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d, want millis", pd.Timestamp)
	}

	if _, ok := c.CurrentPrice("AAPL"); !ok {
		t.Error("sample should be stored")
	}
}

func TestFetchRestForeignCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody("EUR", 72.5, 1700000000)))
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	prices, err := c.FetchRest(context.Background(), []string{"SAP"})
	if err != nil {
		t.Fatalf("FetchRest failed: %v", err)
	}
	if prices[0].Currency != "EUR" {
		t.Errorf("currency = %s, want EUR from response meta", prices[0].Currency)
	}
}

func TestFetchRestAllFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	_, err := c.FetchRest(context.Background(), []string{"AAPL"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsRetriable(err) {
		t.Error("transport failure should be retriable")
	}
}

func TestConnectUnsupported(t *testing.T) {
	c := newClient(t, "http://example.invalid")
	if err := c.Connect(context.Background(), []string{"AAPL"}); !errors.Is(err, domain.ErrPushUnsupported) {
		t.Errorf("Connect = %v, want ErrPushUnsupported", err)
	}
	if c.Streaming() || c.Connected() {
		t.Error("poll-only client must not report streaming support")
	}
}
