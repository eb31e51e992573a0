// Package rates maintains a base-currency-anchored exchange rate table,
// refreshed periodically from an external source. Conversion between any
// two supported currencies is two single-hop conversions through the
// anchor.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"

	"github.com/shopspring/decimal"
)

// rateAPIResponse matches the open.er-api.com "latest" payload: a map of
// currency code to units-per-anchor.
type rateAPIResponse struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	Rates              map[string]float64 `json:"rates"`
}

// stablecoinAliases are pegged 1:1 to the USD anchor. Forex sources never
// quote them, but exchange feeds price crypto in them.
var stablecoinAliases = []string{"USDT", "USDC", "BUSD"}

// Converter is the currency conversion service.
type Converter struct {
	mu     sync.RWMutex
	anchor string
	rates  map[string]decimal.Decimal // code -> units of code per 1 anchor

	apiURL     string
	refresh    time.Duration
	httpClient *http.Client
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewConverter creates a converter against the given rate source.
func NewConverter(apiURL, anchor string, refreshIntervalSec int) *Converter {
	if anchor == "" {
		anchor = "USD"
	}
	refresh := time.Duration(refreshIntervalSec) * time.Second
	if refresh <= 0 {
		refresh = time.Hour
	}
	return &Converter{
		anchor:  strings.ToUpper(anchor),
		rates:   make(map[string]decimal.Decimal),
		apiURL:  apiURL,
		refresh: refresh,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Initialize performs one synchronous rate fetch, then arms the periodic
// refresh. A failed initial fetch is returned to the caller; there is no
// table to fall back on yet.
func (c *Converter) Initialize(ctx context.Context) error {
	if err := c.fetchRates(ctx); err != nil {
		return fmt.Errorf("initial rate fetch: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("rate refresh stopped")
				return
			case <-ticker.C:
				// A failed refresh keeps the previous table intact.
				if err := c.fetchRates(ctx); err != nil {
					slog.Warn("rate refresh failed", slog.Any("error", err))
				}
			}
		}
	}()
	return nil
}

// Stop cancels the refresh timer.
func (c *Converter) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

// fetchRates fetches the rate table with retry.
func (c *Converter) fetchRates(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(infra.CalculateBackoff(i - 1)):
			}
		}
		if err := c.doFetch(ctx); err != nil {
			lastErr = err
			slog.Warn("rate fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
			continue
		}
		return nil
	}
	return lastErr
}

func (c *Converter) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("fetch rates", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewNetworkError("fetch rates", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var data rateAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}
	if len(data.Rates) == 0 {
		return fmt.Errorf("empty rate table in response")
	}
	if data.BaseCode != "" && !strings.EqualFold(data.BaseCode, c.anchor) {
		return fmt.Errorf("rate source anchored at %s, expected %s", data.BaseCode, c.anchor)
	}

	table := make(map[string]decimal.Decimal, len(data.Rates)+len(stablecoinAliases))
	for code, rate := range data.Rates {
		if rate <= 0 {
			continue
		}
		table[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	table[c.anchor] = decimal.NewFromInt(1)
	for _, alias := range stablecoinAliases {
		if _, ok := table[alias]; !ok {
			table[alias] = decimal.NewFromInt(1)
		}
	}

	c.mu.Lock()
	c.rates = table
	c.mu.Unlock()

	slog.Info("exchange rates updated",
		slog.String("anchor", c.anchor),
		slog.Int("currencies", len(table)),
	)
	return nil
}

// Convert converts amount from one currency code to another. Identity when
// the codes match. Otherwise the amount is divided by the source rate to
// reach anchor units and multiplied by the target rate to leave them.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := amount
	if from != c.anchor {
		rate, ok := c.rates[from]
		if !ok || rate.IsZero() {
			return decimal.Zero, &domain.UnknownCurrencyError{Code: from}
		}
		result = result.Div(rate)
	}
	if to != c.anchor {
		rate, ok := c.rates[to]
		if !ok {
			return decimal.Zero, &domain.UnknownCurrencyError{Code: to}
		}
		result = result.Mul(rate)
	}
	return result, nil
}

// Rate returns the exchange rate between two currency codes.
func (c *Converter) Rate(from, to string) (decimal.Decimal, error) {
	return c.Convert(decimal.NewFromInt(1), from, to)
}

// Anchor returns the anchor currency code.
func (c *Converter) Anchor() string {
	return c.anchor
}

// Known reports whether a currency code has a rate.
func (c *Converter) Known(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rates[strings.ToUpper(code)]
	return ok
}
