package export

import (
	"sort"
	"strings"

	"assetwatch/internal/domain"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const topAssetLimit = 10

// OwnerSummary is the per-owner slice of the portfolio.
type OwnerSummary struct {
	TotalValue         decimal.Decimal            `json:"totalValue"`
	AssetCount         int                        `json:"assetCount"`
	CurrencyBreakdown  map[string]decimal.Decimal `json:"currencyBreakdown"`
	AssetTypeBreakdown map[string]decimal.Decimal `json:"assetTypeBreakdown"`
}

// Summary is the JSON portfolio view served next to the metrics page.
type Summary struct {
	TotalValue         decimal.Decimal            `json:"totalValue"`
	AssetCount         int                        `json:"assetCount"`
	CurrencyBreakdown  map[string]decimal.Decimal `json:"currencyBreakdown"`
	AssetTypeBreakdown map[string]decimal.Decimal `json:"assetTypeBreakdown"`
	TopAssets          []domain.AssetMetrics      `json:"topAssets"`
	Owners             map[string]OwnerSummary    `json:"owners"`
}

// roundForCurrency rounds to the currency's minor unit count. Unknown
// codes round to two places.
func roundForCurrency(v decimal.Decimal, code string) decimal.Decimal {
	fraction := 2
	if c := money.GetCurrency(strings.ToUpper(code)); c != nil {
		fraction = c.Fraction
	}
	return v.Round(int32(fraction))
}

// BuildSummary aggregates the metrics into the JSON summary. Values are
// rounded for display using each asset's currency.
func BuildSummary(metrics []domain.AssetMetrics) Summary {
	s := Summary{
		CurrencyBreakdown:  make(map[string]decimal.Decimal),
		AssetTypeBreakdown: make(map[string]decimal.Decimal),
		Owners:             make(map[string]OwnerSummary),
	}

	rounded := make([]domain.AssetMetrics, 0, len(metrics))
	for _, m := range metrics {
		m.Value = roundForCurrency(m.Value, m.Currency)
		rounded = append(rounded, m)

		s.TotalValue = s.TotalValue.Add(m.Value)
		s.AssetCount++
		s.CurrencyBreakdown[m.Currency] = s.CurrencyBreakdown[m.Currency].Add(m.Value)
		s.AssetTypeBreakdown[string(m.AssetType)] = s.AssetTypeBreakdown[string(m.AssetType)].Add(m.Value)

		owner := s.Owners[m.Owner]
		if owner.CurrencyBreakdown == nil {
			owner.CurrencyBreakdown = make(map[string]decimal.Decimal)
			owner.AssetTypeBreakdown = make(map[string]decimal.Decimal)
		}
		owner.TotalValue = owner.TotalValue.Add(m.Value)
		owner.AssetCount++
		owner.CurrencyBreakdown[m.Currency] = owner.CurrencyBreakdown[m.Currency].Add(m.Value)
		owner.AssetTypeBreakdown[string(m.AssetType)] = owner.AssetTypeBreakdown[string(m.AssetType)].Add(m.Value)
		s.Owners[m.Owner] = owner
	}

	sort.SliceStable(rounded, func(i, j int) bool {
		return rounded[i].Value.GreaterThan(rounded[j].Value)
	})
	if len(rounded) > topAssetLimit {
		rounded = rounded[:topAssetLimit]
	}
	s.TopAssets = rounded
	return s
}
