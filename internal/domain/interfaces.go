package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExchangeAdapter is the capability surface of one exchange connection.
// Connect is only meaningful for adapters with push delivery; the rest
// poll through FetchRest.
type ExchangeAdapter interface {
	// Connect opens the push feed for the given symbols. Idempotent while
	// connecting or connected. Returns ErrPushUnsupported on poll-only
	// adapters.
	Connect(ctx context.Context, symbols []string) error

	// Disconnect tears down any open session and cancels all timers.
	// Safe to call in any state.
	Disconnect()

	// FetchRest pulls current prices for the given symbols over REST,
	// normalizes them and writes them into the adapter's price store.
	FetchRest(ctx context.Context, symbols []string) ([]PriceData, error)

	// CurrentPrice returns the last-known sample for a symbol.
	CurrentPrice(symbol string) (PriceData, bool)

	// AllPrices returns every last-known sample, sorted by symbol.
	AllPrices() []PriceData

	// Streaming reports whether the exchange supports push delivery.
	Streaming() bool

	// Connected reports whether a push session is currently open.
	Connected() bool
}

// Seeder is implemented by adapters whose price store can be warmed from
// a snapshot.
type Seeder interface {
	Seed(samples []PriceData)
}

// RateProvider converts amounts between currency codes.
type RateProvider interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	Rate(from, to string) (decimal.Decimal, error)
}

// SnapshotStore persists the latest sample per exchange+symbol so a
// restart does not begin blind. It never keeps history.
type SnapshotStore interface {
	Save(ctx context.Context, update PriceUpdate) error
	Load(ctx context.Context, exchange string) ([]PriceData, error)
	Close() error
}
