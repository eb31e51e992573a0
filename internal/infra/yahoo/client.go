// Package yahoo polls stock quotes from the Yahoo Finance chart endpoint.
// There is no push feed; the monitor schedules REST polling.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"

	"github.com/shopspring/decimal"
)

// chartResponse is the subset of the Yahoo chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"` // epoch seconds
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Client is the Yahoo Finance exchange connection.
type Client struct {
	store      *infra.PriceStore
	restURL    string
	httpClient *http.Client
}

// NewClient creates a Yahoo Finance client.
func NewClient(cfg *infra.Config, notify func(domain.PriceData)) *Client {
	return &Client{
		store:   infra.NewPriceStore(notify),
		restURL: strings.TrimRight(cfg.Exchanges.Yahoo.RestURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Connect always fails; Yahoo has no push feed.
func (c *Client) Connect(ctx context.Context, symbols []string) error {
	return domain.ErrPushUnsupported
}

// Disconnect is a no-op for a poll-only client.
func (c *Client) Disconnect() {}

// FetchRest pulls quotes for the given symbols.
func (c *Client) FetchRest(ctx context.Context, symbols []string) ([]domain.PriceData, error) {
	out := make([]domain.PriceData, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		pd, err := c.fetchQuote(ctx, symbol)
		if err != nil {
			lastErr = err
			slog.Warn("yahoo: quote fetch failed", slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		c.store.Put(pd)
		out = append(out, pd)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, domain.NewNetworkError("yahoo rest", lastErr)
	}
	return out, nil
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (domain.PriceData, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s", c.restURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PriceData{}, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.PriceData{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceData{}, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return domain.PriceData{}, err
	}
	if chart.Chart.Error != nil {
		return domain.PriceData{}, fmt.Errorf("chart error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return domain.PriceData{}, fmt.Errorf("%w: %s", domain.ErrNoPriceData, symbol)
	}

	meta := chart.Chart.Result[0].Meta
	currency := strings.ToUpper(meta.Currency)
	if currency == "" {
		currency = "USD"
	}
	ts := meta.RegularMarketTime * 1000
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	return domain.PriceData{
		Symbol:    symbol,
		Price:     decimal.NewFromFloat(meta.RegularMarketPrice),
		Currency:  currency,
		Timestamp: ts,
	}, nil
}

// CurrentPrice returns the last-known sample for a symbol.
func (c *Client) CurrentPrice(symbol string) (domain.PriceData, bool) {
	return c.store.Get(symbol)
}

// AllPrices returns every last-known sample.
func (c *Client) AllPrices() []domain.PriceData {
	return c.store.All()
}

// Seed warms the price store from a snapshot.
func (c *Client) Seed(samples []domain.PriceData) {
	c.store.Seed(samples)
}

// Streaming reports push support.
func (c *Client) Streaming() bool { return false }

// Connected is always false for a poll-only client.
func (c *Client) Connected() bool { return false }
