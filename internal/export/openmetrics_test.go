package export

import (
	"strings"
	"testing"

	"assetwatch/internal/domain"

	"github.com/shopspring/decimal"
)

func metric(symbol, quantity, price, currency, exchange, owner string) domain.AssetMetrics {
	q, _ := decimal.NewFromString(quantity)
	p, _ := decimal.NewFromString(price)
	return domain.AssetMetrics{
		Symbol:       symbol,
		Quantity:     q,
		CurrentPrice: p,
		Value:        q.Mul(p),
		Currency:     currency,
		Exchange:     exchange,
		Owner:        owner,
		AssetType:    domain.AssetTypeForExchange(exchange),
	}
}

func TestRenderOpenMetricsPortfolioTotals(t *testing.T) {
	out := RenderOpenMetrics([]domain.AssetMetrics{
		metric("BTC", "1", "100", "USD", "binance", "alice"),
		metric("AAPL", "1", "300", "USD", "yahoo", "alice"),
	})

	for _, want := range []string{
		`asset_value{symbol="BTC",currency="USD",owner="alice",exchange="binance"} 100`,
		`asset_value{symbol="AAPL",currency="USD",owner="alice",exchange="yahoo"} 300`,
		`asset_value_percentage{symbol="BTC",currency="USD",owner="alice",exchange="binance"} 25`,
		`asset_value_percentage{symbol="AAPL",currency="USD",owner="alice",exchange="yahoo"} 75`,
		`portfolio_total_value{owner="alice"} 400`,
		`portfolio_assets{owner="alice"} 2`,
		`portfolio_asset_type_value{owner="alice",asset_type="crypto"} 100`,
		`portfolio_asset_type_percentage{owner="alice",asset_type="stock"} 75`,
		`portfolio_currency_percentage{owner="alice",currency="USD"} 100`,
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("output missing line %q\n%s", want, out)
		}
	}
}

func TestRenderOpenMetricsSeparatesOwners(t *testing.T) {
	out := RenderOpenMetrics([]domain.AssetMetrics{
		metric("BTC", "1", "100", "USD", "binance", "alice"),
		metric("BTC", "1", "100", "USD", "binance", "bob"),
	})

	for _, want := range []string{
		`portfolio_total_value{owner="alice"} 100`,
		`portfolio_total_value{owner="bob"} 100`,
		`asset_value_percentage{symbol="BTC",currency="USD",owner="alice",exchange="binance"} 100`,
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("output missing line %q\n%s", want, out)
		}
	}
}

func TestRenderOpenMetricsFamilyHeaders(t *testing.T) {
	out := RenderOpenMetrics(nil)

	for _, family := range []string{
		"asset_price", "asset_quantity", "asset_value", "asset_value_percentage",
		"portfolio_total_value", "portfolio_assets",
		"portfolio_currency_percentage", "portfolio_asset_type_value", "portfolio_asset_type_percentage",
	} {
		if !strings.Contains(out, "# HELP "+family+" ") {
			t.Errorf("missing HELP for %s", family)
		}
		if !strings.Contains(out, "# TYPE "+family+" gauge\n") {
			t.Errorf("missing TYPE for %s", family)
		}
	}
	if !strings.HasSuffix(out, "# EOF\n") {
		t.Error("output does not end with # EOF")
	}
}

func TestRenderOpenMetricsEscapesLabels(t *testing.T) {
	m := metric(`A"B`, "1", "10", "USD", "binance", "team\nalpha")
	out := RenderOpenMetrics([]domain.AssetMetrics{m})

	if !strings.Contains(out, `symbol="A\"B"`) {
		t.Errorf("quote not escaped:\n%s", out)
	}
	if !strings.Contains(out, `owner="team\nalpha"`) {
		t.Errorf("newline not escaped:\n%s", out)
	}
}

func TestRenderOpenMetricsZeroTotalGivesZeroPercent(t *testing.T) {
	m := metric("BTC", "0", "100", "USD", "binance", "alice")
	out := RenderOpenMetrics([]domain.AssetMetrics{m})

	want := `asset_value_percentage{symbol="BTC",currency="USD",owner="alice",exchange="binance"} 0`
	if !strings.Contains(out, want+"\n") {
		t.Errorf("output missing line %q\n%s", want, out)
	}
}

func TestRenderOpenMetricsDeterministic(t *testing.T) {
	metrics := []domain.AssetMetrics{
		metric("BTC", "1", "100", "USD", "binance", "alice"),
		metric("ETH", "2", "50", "EUR", "binance", "bob"),
		metric("AAPL", "3", "10", "USD", "yahoo", "alice"),
	}
	first := RenderOpenMetrics(metrics)
	for i := 0; i < 5; i++ {
		if got := RenderOpenMetrics(metrics); got != first {
			t.Fatal("render output varies across calls")
		}
	}
}
