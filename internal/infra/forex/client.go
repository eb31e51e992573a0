// Package forex prices fiat cash positions in USD using a USD-anchored
// rate endpoint. The price of one unit of currency X is the inverse of
// X's USD rate. Poll-only.
package forex

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

type latestResponse struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	Rates              map[string]float64 `json:"rates"`
}

// Client is the forex exchange connection.
type Client struct {
	store      *infra.PriceStore
	restURL    string
	httpClient *http.Client
}

// NewClient creates a forex client.
func NewClient(cfg *infra.Config, notify func(domain.PriceData)) *Client {
	return &Client{
		store:   infra.NewPriceStore(notify),
		restURL: strings.TrimRight(cfg.Exchanges.Forex.RestURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Connect always fails; rate endpoints have no push feed.
func (c *Client) Connect(ctx context.Context, symbols []string) error {
	return domain.ErrPushUnsupported
}

// Disconnect is a no-op for a poll-only client.
func (c *Client) Disconnect() {}

// FetchRest pulls the USD-anchored rate table once and prices every
// requested currency from it.
func (c *Client) FetchRest(ctx context.Context, symbols []string) ([]domain.PriceData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+"/v6/latest/USD", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("forex rest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewNetworkError("forex rest", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var latest latestResponse
	if err := json.Unmarshal(body, &latest); err != nil {
		return nil, err
	}
	if len(latest.Rates) == 0 {
		return nil, fmt.Errorf("empty rate table")
	}

	ts := latest.TimeLastUpdateUnix * 1000
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	out := make([]domain.PriceData, 0, len(symbols))
	for _, symbol := range symbols {
		rate, ok := latest.Rates[strings.ToUpper(symbol)]
		if !ok || rate <= 0 {
			slog.Warn("forex: no rate for currency", slog.String("symbol", symbol))
			continue
		}
		// rate is symbol-units per USD; one symbol unit costs 1/rate USD.
		pd := domain.PriceData{
			Symbol:    strings.ToUpper(symbol),
			Price:     decimal.NewFromInt(1).Div(decimal.NewFromFloat(rate)),
			Currency:  "USD",
			Timestamp: ts,
		}
		c.store.Put(pd)
		out = append(out, pd)
	}
	return out, nil
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
