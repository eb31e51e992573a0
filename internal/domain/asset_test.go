package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAssetTypeForExchange(t *testing.T) {
	cases := map[string]AssetType{
		"binance":    AssetTypeCrypto,
		"coinbase":   AssetTypeCrypto,
		"yahoo":      AssetTypeStock,
		"metals":     AssetTypeMetal,
		"forex":      AssetTypeFiat,
		"unknown-ex": AssetTypeOther,
		"":           AssetTypeOther,
	}

	for exchange, want := range cases {
		if got := AssetTypeForExchange(exchange); got != want {
			t.Errorf("AssetTypeForExchange(%q) = %q, want %q", exchange, got, want)
		}
	}
}

func TestAssetConfigFractionalQuantity(t *testing.T) {
	qty, err := decimal.NewFromString("-0.12345678")
	if err != nil {
		t.Fatalf("NewFromString failed: %v", err)
	}

	asset := AssetConfig{
		Symbol:   "BTC",
		Quantity: qty,
		Exchange: "binance",
		Currency: "USD",
		Owner:    "default",
	}

	price := decimal.NewFromInt(50000)
	value := asset.Quantity.Mul(price)
	want, _ := decimal.NewFromString("-6172.839")
	if !value.Equal(want) {
		t.Errorf("value = %s, want %s", value, want)
	}
}
