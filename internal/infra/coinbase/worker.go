// Package coinbase feeds spot prices from the Coinbase Exchange ticker
// channel, with the public spot price endpoint as the REST fallback. All
// products are quoted in USD.
package coinbase

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
	"assetwatch/internal/infra/ws"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const quoteCurrency = "USD"

// tickerMessage is the Coinbase Exchange websocket ticker payload.
type tickerMessage struct {
	Type      string `json:"type"` // ticker, subscriptions, error
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"` // RFC3339
	Message   string `json:"message"`
}

type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// spotResponse is the REST spot price payload.
type spotResponse struct {
	Data struct {
		Base     string `json:"base"`
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"data"`
}

// Worker is the Coinbase exchange connection.
type Worker struct {
	store      *infra.PriceStore
	session    *ws.Session
	restURL    string
	httpClient *http.Client
}

// NewWorker creates a Coinbase worker.
func NewWorker(cfg *infra.Config, notify func(domain.PriceData)) *Worker {
	w := &Worker{
		store:   infra.NewPriceStore(notify),
		restURL: strings.TrimRight(cfg.Exchanges.Coinbase.RestURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	w.session = ws.NewSession(ws.Config{
		Name:      "coinbase",
		URL:       cfg.Exchanges.Coinbase.WSURL,
		Subscribe: w.subscribe,
		OnMessage: w.handleMessage,
	})
	return w
}

// Connect opens the websocket feed for the given symbols.
func (w *Worker) Connect(ctx context.Context, symbols []string) error {
	return w.session.Connect(ctx, symbols)
}

// Disconnect tears down the websocket session.
func (w *Worker) Disconnect() {
	w.session.Disconnect()
}

func (w *Worker) subscribe(write ws.WriteFunc, symbols []string) error {
	products := make([]string, 0, len(symbols))
	for _, s := range symbols {
		products = append(products, productFor(s))
	}
	req := subscribeRequest{
		Type:       "subscribe",
		ProductIDs: products,
		Channels:   []string{"ticker"},
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return write(websocket.TextMessage, b)
}

func (w *Worker) handleMessage(msg []byte) {
	var tick tickerMessage
	if err := json.Unmarshal(msg, &tick); err != nil {
		slog.Debug("coinbase: dropping unparsable frame", slog.Any("error", err))
		return
	}
	switch tick.Type {
	case "ticker":
	case "error":
		slog.Warn("coinbase: feed error", slog.String("message", tick.Message))
		return
	default:
		return // subscriptions ack, heartbeats
	}

	price, err := decimal.NewFromString(tick.Price)
	if err != nil {
		slog.Debug("coinbase: dropping bad price", slog.String("raw", tick.Price), slog.Any("error", err))
		return
	}

	ts := time.Now().UnixMilli()
	if parsed, err := time.Parse(time.RFC3339Nano, tick.Time); err == nil {
		ts = parsed.UnixMilli()
	}

	w.store.Put(domain.PriceData{
		Symbol:    symbolFor(tick.ProductID),
		Price:     price,
		Currency:  quoteCurrency,
		Timestamp: ts,
	})
}

// FetchRest pulls spot prices over REST, one product at a time.
func (w *Worker) FetchRest(ctx context.Context, symbols []string) ([]domain.PriceData, error) {
	out := make([]domain.PriceData, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		pd, err := w.fetchSpot(ctx, symbol)
		if err != nil {
			lastErr = err
			slog.Warn("coinbase: spot fetch failed", slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		w.store.Put(pd)
		out = append(out, pd)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, domain.NewNetworkError("coinbase rest", lastErr)
	}
	return out, nil
}

func (w *Worker) fetchSpot(ctx context.Context, symbol string) (domain.PriceData, error) {
	url := fmt.Sprintf("%s/v2/prices/%s/spot", w.restURL, productFor(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PriceData{}, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := w.httpClient.Do(req)
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

	var spot spotResponse
	if err := json.Unmarshal(body, &spot); err != nil {
		return domain.PriceData{}, err
	}

	price, err := decimal.NewFromString(spot.Data.Amount)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("bad amount %q: %w", spot.Data.Amount, err)
	}

	currency := spot.Data.Currency
	if currency == "" {
		currency = quoteCurrency
	}
	return domain.PriceData{
		Symbol:    symbol,
		Price:     price,
		Currency:  currency,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// CurrentPrice returns the last-known sample for a symbol.
func (w *Worker) CurrentPrice(symbol string) (domain.PriceData, bool) {
	return w.store.Get(symbol)
}

// AllPrices returns every last-known sample.
func (w *Worker) AllPrices() []domain.PriceData {
	return w.store.All()
}

// Seed warms the price store from a snapshot.
func (w *Worker) Seed(samples []domain.PriceData) {
	w.store.Seed(samples)
}

// Streaming reports push support.
func (w *Worker) Streaming() bool { return true }

// Connected reports whether the websocket session is live.
func (w *Worker) Connected() bool { return w.session.Connected() }

func productFor(symbol string) string {
	return strings.ToUpper(symbol) + "-" + quoteCurrency
}

func symbolFor(productID string) string {
	return strings.TrimSuffix(strings.ToUpper(productID), "-"+quoteCurrency)
}
