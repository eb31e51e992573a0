// Package binance feeds spot prices from Binance, preferring the combined
// websocket mini-ticker stream and falling back to the REST price endpoint.
// All pairs are quoted in USDT.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"
	"assetwatch/internal/infra/ws"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const quoteCurrency = "USDT"

// miniTickerEvent is the Binance 24h mini ticker websocket payload.
type miniTickerEvent struct {
	Event     string `json:"e"` // 24hrMiniTicker
	EventTime int64  `json:"E"` // epoch millis
	Symbol    string `json:"s"` // BTCUSDT
	Close     string `json:"c"` // last price
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Worker is the Binance exchange connection.
type Worker struct {
	store   *infra.PriceStore
	session *ws.Session
	rest    *gobinance.Client
}

// NewWorker creates a Binance worker. notify is invoked for every accepted
// price sample and must not block.
func NewWorker(cfg *infra.Config, notify func(domain.PriceData)) *Worker {
	w := &Worker{store: infra.NewPriceStore(notify)}

	w.rest = gobinance.NewClient("", "")
	if cfg.Exchanges.Binance.RestURL != "" {
		w.rest.BaseURL = cfg.Exchanges.Binance.RestURL
	}

	w.session = ws.NewSession(ws.Config{
		Name:      "binance",
		URL:       cfg.Exchanges.Binance.WSURL,
		Subscribe: w.subscribe,
		OnMessage: w.handleMessage,
	})
	return w
}

// Connect opens the websocket stream for the given symbols.
func (w *Worker) Connect(ctx context.Context, symbols []string) error {
	return w.session.Connect(ctx, symbols)
}

// Disconnect tears down the websocket session.
func (w *Worker) Disconnect() {
	w.session.Disconnect()
}

func (w *Worker) subscribe(write ws.WriteFunc, symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, strings.ToLower(pairFor(s))+"@miniTicker")
	}
	req := subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: 1}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return write(websocket.TextMessage, b)
}

func (w *Worker) handleMessage(msg []byte) {
	var ev miniTickerEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		slog.Debug("binance: dropping unparsable frame", slog.Any("error", err))
		return
	}
	// Subscription acks and other control frames carry no event type.
	if ev.Event != "24hrMiniTicker" {
		return
	}

	price, err := decimal.NewFromString(ev.Close)
	if err != nil {
		slog.Debug("binance: dropping bad price", slog.String("raw", ev.Close), slog.Any("error", err))
		return
	}

	w.store.Put(domain.PriceData{
		Symbol:    symbolFor(ev.Symbol),
		Price:     price,
		Currency:  quoteCurrency,
		Timestamp: ev.EventTime,
	})
}

// FetchRest pulls current prices over REST, one pair at a time. A failed
// symbol is logged and skipped; the fetch only errors when nothing at all
// could be retrieved.
func (w *Worker) FetchRest(ctx context.Context, symbols []string) ([]domain.PriceData, error) {
	out := make([]domain.PriceData, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		prices, err := w.rest.NewListPricesService().Symbol(pairFor(symbol)).Do(ctx)
		if err != nil {
			lastErr = err
			slog.Warn("binance: rest price fetch failed", slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		if len(prices) == 0 {
			lastErr = fmt.Errorf("%w: %s", domain.ErrNoPriceData, symbol)
			continue
		}

		price, err := decimal.NewFromString(prices[0].Price)
		if err != nil {
			lastErr = err
			slog.Warn("binance: bad rest price", slog.String("symbol", symbol), slog.String("raw", prices[0].Price))
			continue
		}

		pd := domain.PriceData{
			Symbol:    symbol,
			Price:     price,
			Currency:  quoteCurrency,
			Timestamp: time.Now().UnixMilli(),
		}
		w.store.Put(pd)
		out = append(out, pd)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, domain.NewNetworkError("binance rest", lastErr)
	}
	return out, nil
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

func pairFor(symbol string) string {
	return strings.ToUpper(symbol) + quoteCurrency
}

func symbolFor(pair string) string {
	return strings.TrimSuffix(strings.ToUpper(pair), quoteCurrency)
}
