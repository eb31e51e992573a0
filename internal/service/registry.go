package service

import (
	"time"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"
	"assetwatch/internal/infra/binance"
	"assetwatch/internal/infra/coinbase"
	"assetwatch/internal/infra/forex"
	"assetwatch/internal/infra/metals"
	"assetwatch/internal/infra/yahoo"
)

// AdapterFactory builds an exchange adapter wired to a price callback.
type AdapterFactory func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter

// Registry maps the exchange name used in asset config to its factory.
type Registry map[string]AdapterFactory

// DefaultRegistry lists every supported exchange.
func DefaultRegistry() Registry {
	return Registry{
		"binance": func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			return binance.NewWorker(cfg, notify)
		},
		"coinbase": func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			return coinbase.NewWorker(cfg, notify)
		},
		"yahoo": func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			return yahoo.NewClient(cfg, notify)
		},
		"forex": func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			return forex.NewClient(cfg, notify)
		},
		"metals": func(cfg *infra.Config, notify func(domain.PriceData)) domain.ExchangeAdapter {
			return metals.NewClient(cfg, notify)
		},
	}
}

// pollIntervalFor returns the configured poll cadence for exchanges that
// are polled (or fall back to polling).
func pollIntervalFor(cfg *infra.Config, exchange string) time.Duration {
	switch exchange {
	case "yahoo":
		return time.Duration(cfg.Exchanges.Yahoo.PollIntervalSec) * time.Second
	case "forex":
		return time.Duration(cfg.Exchanges.Forex.PollIntervalSec) * time.Second
	case "metals":
		return time.Duration(cfg.Exchanges.Metals.PollIntervalSec) * time.Second
	default:
		return defaultPollInterval
	}
}
