package domain

import "github.com/shopspring/decimal"

// AssetType is a coarse classification derived from the exchange an asset
// is priced on. Used for portfolio breakdown reporting.
type AssetType string

const (
	AssetTypeCrypto AssetType = "crypto"
	AssetTypeStock  AssetType = "stock"
	AssetTypeMetal  AssetType = "metal"
	AssetTypeFiat   AssetType = "fiat"
	AssetTypeOther  AssetType = "other"
)

// AssetTypeForExchange maps an exchange identifier to its asset type.
func AssetTypeForExchange(exchange string) AssetType {
	switch exchange {
	case "binance", "coinbase":
		return AssetTypeCrypto
	case "yahoo":
		return AssetTypeStock
	case "metals":
		return AssetTypeMetal
	case "forex":
		return AssetTypeFiat
	default:
		return AssetTypeOther
	}
}

// AssetConfig identifies one portfolio holding. Immutable once loaded.
// Multiple entries may share symbol+exchange (different owners) or even
// owner+symbol; they are summed at read time, never deduplicated.
type AssetConfig struct {
	Symbol   string          `yaml:"symbol" json:"symbol"`
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	Exchange string          `yaml:"exchange" json:"exchange"`
	Currency string          `yaml:"currency" json:"currency"`
	Owner    string          `yaml:"owner" json:"owner"`
}

// PriceData is the most recent observation for one symbol on one exchange.
// Replaced only by the owning exchange connection; no history is kept.
type PriceData struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
}

// PriceUpdate is the notification payload emitted when a price store
// accepts a new sample.
type PriceUpdate struct {
	Exchange string    `json:"exchange"`
	Data     PriceData `json:"data"`
}

// AssetMetrics is the derived, per-request view of one holding. Recomputed
// on every read and never stored.
type AssetMetrics struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Value        decimal.Decimal `json:"value"`
	Currency     string          `json:"currency"`
	Exchange     string          `json:"exchange"`
	Owner        string          `json:"owner"`
	AssetType    AssetType       `json:"assetType"`
}
