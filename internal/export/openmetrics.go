// Package export renders portfolio views for the HTTP surface. Both
// renderers are pure functions over a metrics slice; they hold no state
// and perform no IO.
package export

import (
	"fmt"
	"strings"

	"assetwatch/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ownerAggregate accumulates one owner's totals while rendering.
type ownerAggregate struct {
	owner      string
	total      decimal.Decimal
	count      int
	currencies []string
	byCurrency map[string]decimal.Decimal
	types      []string
	byType     map[string]decimal.Decimal
}

func aggregateByOwner(metrics []domain.AssetMetrics) []*ownerAggregate {
	index := make(map[string]*ownerAggregate)
	var owners []*ownerAggregate
	for _, m := range metrics {
		agg, ok := index[m.Owner]
		if !ok {
			agg = &ownerAggregate{
				owner:      m.Owner,
				byCurrency: make(map[string]decimal.Decimal),
				byType:     make(map[string]decimal.Decimal),
			}
			index[m.Owner] = agg
			owners = append(owners, agg)
		}
		agg.total = agg.total.Add(m.Value)
		agg.count++
		if _, seen := agg.byCurrency[m.Currency]; !seen {
			agg.currencies = append(agg.currencies, m.Currency)
		}
		agg.byCurrency[m.Currency] = agg.byCurrency[m.Currency].Add(m.Value)
		typ := string(m.AssetType)
		if _, seen := agg.byType[typ]; !seen {
			agg.types = append(agg.types, typ)
		}
		agg.byType[typ] = agg.byType[typ].Add(m.Value)
	}
	return owners
}

// percentOf returns part/total*100, or zero when the total is zero.
func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(v string) string {
	return labelEscaper.Replace(v)
}

func assetLabels(m domain.AssetMetrics) string {
	return fmt.Sprintf(`symbol="%s",currency="%s",owner="%s",exchange="%s"`,
		escapeLabel(m.Symbol), escapeLabel(m.Currency), escapeLabel(m.Owner), escapeLabel(m.Exchange))
}

func writeFamily(b *strings.Builder, name, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
}

// RenderOpenMetrics produces the OpenMetrics text exposition of the
// given metrics. Per-asset samples keep input order; per-owner samples
// follow first-seen owner order, so repeated renders of the same input
// are byte-identical.
func RenderOpenMetrics(metrics []domain.AssetMetrics) string {
	owners := aggregateByOwner(metrics)
	totals := make(map[string]decimal.Decimal, len(owners))
	for _, agg := range owners {
		totals[agg.owner] = agg.total
	}

	var b strings.Builder

	writeFamily(&b, "asset_price", "Current unit price of the asset in its display currency.")
	for _, m := range metrics {
		fmt.Fprintf(&b, "asset_price{%s} %s\n", assetLabels(m), m.CurrentPrice)
	}

	writeFamily(&b, "asset_quantity", "Configured quantity held of the asset.")
	for _, m := range metrics {
		fmt.Fprintf(&b, "asset_quantity{%s} %s\n", assetLabels(m), m.Quantity)
	}

	writeFamily(&b, "asset_value", "Quantity times price in the display currency.")
	for _, m := range metrics {
		fmt.Fprintf(&b, "asset_value{%s} %s\n", assetLabels(m), m.Value)
	}

	writeFamily(&b, "asset_value_percentage", "Share of the owner's total portfolio value.")
	for _, m := range metrics {
		fmt.Fprintf(&b, "asset_value_percentage{%s} %s\n", assetLabels(m), percentOf(m.Value, totals[m.Owner]))
	}

	writeFamily(&b, "portfolio_total_value", "Total portfolio value per owner.")
	for _, agg := range owners {
		fmt.Fprintf(&b, "portfolio_total_value{owner=\"%s\"} %s\n", escapeLabel(agg.owner), agg.total)
	}

	writeFamily(&b, "portfolio_assets", "Number of priced assets per owner.")
	for _, agg := range owners {
		fmt.Fprintf(&b, "portfolio_assets{owner=\"%s\"} %d\n", escapeLabel(agg.owner), agg.count)
	}

	writeFamily(&b, "portfolio_currency_percentage", "Share of the owner's value held per display currency.")
	for _, agg := range owners {
		for _, currency := range agg.currencies {
			fmt.Fprintf(&b, "portfolio_currency_percentage{owner=\"%s\",currency=\"%s\"} %s\n",
				escapeLabel(agg.owner), escapeLabel(currency), percentOf(agg.byCurrency[currency], agg.total))
		}
	}

	writeFamily(&b, "portfolio_asset_type_value", "Owner's value held per asset type.")
	for _, agg := range owners {
		for _, typ := range agg.types {
			fmt.Fprintf(&b, "portfolio_asset_type_value{owner=\"%s\",asset_type=\"%s\"} %s\n",
				escapeLabel(agg.owner), escapeLabel(typ), agg.byType[typ])
		}
	}

	writeFamily(&b, "portfolio_asset_type_percentage", "Share of the owner's value held per asset type.")
	for _, agg := range owners {
		for _, typ := range agg.types {
			fmt.Fprintf(&b, "portfolio_asset_type_percentage{owner=\"%s\",asset_type=\"%s\"} %s\n",
				escapeLabel(agg.owner), escapeLabel(typ), percentOf(agg.byType[typ], agg.total))
		}
	}

	b.WriteString("# EOF\n")
	return b.String()
}
