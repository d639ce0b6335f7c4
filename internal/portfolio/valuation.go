package portfolio

import (
	"finflow/internal/models"
	"finflow/internal/quotes"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary aggregates the valued portfolio. TotalDayChange only counts
// holdings with a fresh quote: a day change computed off a stale snapshot
// would be comparing against the wrong close.
type Summary struct {
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalGainLoss      decimal.Decimal `json:"total_gain_loss"`
	GainLossPercentage decimal.Decimal `json:"gain_loss_percentage"`
	TotalDayChange     decimal.Decimal `json:"total_day_change"`
}

// ApplyPrices attaches quote results (keyed by normalized ticker) to the
// reconciled holdings and computes the aggregate metrics.
//
// Holdings without a usable quote — error result, or no ticker at all, e.g.
// cash — are valued at cost and flagged price-unavailable. They still count
// toward the portfolio total so the percentage-of-portfolio column sums to
// 100 regardless of how many prices were available.
func ApplyPrices(holdings []models.Holding, results map[string]quotes.Result) ([]models.Holding, Summary) {
	out := make([]models.Holding, len(holdings))
	copy(out, holdings)

	var sum Summary
	for i := range out {
		h := &out[i]
		sum.TotalCost = sum.TotalCost.Add(h.TotalCost)

		var r quotes.Result
		ok := false
		if h.Key.Kind == models.KeyTicker {
			r, ok = results[h.Key.Value]
		}
		if ok && r.OK() {
			price := r.Quote.Price
			h.CurrentPrice = &price
			h.CurrentValue = h.TotalQuantity.Mul(price)
			h.UnrealizedGainLoss = h.CurrentValue.Sub(h.TotalCost)
			if h.TotalCost.IsPositive() {
				h.GainLossPercentage = h.UnrealizedGainLoss.Div(h.TotalCost).Mul(hundred)
			}
			h.PriceStale = r.Status == quotes.StatusStale
			if r.Status == quotes.StatusFresh {
				sum.TotalDayChange = sum.TotalDayChange.Add(r.Quote.Change.Mul(h.TotalQuantity))
			}
		} else {
			// No price: assume unchanged and let the UI annotate the row.
			h.PriceUnavailable = true
			h.CurrentValue = h.TotalCost
		}
		sum.TotalValue = sum.TotalValue.Add(h.CurrentValue)
		sum.TotalGainLoss = sum.TotalGainLoss.Add(h.UnrealizedGainLoss)
	}

	for i := range out {
		h := &out[i]
		if sum.TotalValue.IsPositive() {
			h.PercentageOfPortfolio = h.CurrentValue.Div(sum.TotalValue).Mul(hundred)
		} else {
			h.PercentageOfPortfolio = decimal.Zero
		}
	}
	if sum.TotalCost.IsPositive() {
		sum.GainLossPercentage = sum.TotalGainLoss.Div(sum.TotalCost).Mul(hundred)
	}
	return out, sum
}

// Tickers lists the distinct normalized tickers across the holdings, in
// holding order, for a batch quote lookup.
func Tickers(holdings []models.Holding) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, h := range holdings {
		if h.Key.Kind != models.KeyTicker || seen[h.Key.Value] {
			continue
		}
		seen[h.Key.Value] = true
		out = append(out, h.Key.Value)
	}
	return out
}
