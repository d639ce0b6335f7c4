// Package portfolio derives holdings from the transaction ledger and merges
// live quotes into a valued portfolio view. Both steps are pure functions:
// the ledger is the only source of truth and holdings are recomputed from
// scratch on every run.
package portfolio

import (
	"fmt"
	"sort"
	"time"

	"finflow/internal/models"
	"finflow/internal/quotes"

	"github.com/shopspring/decimal"
)

// Warning flags a ledger inconsistency found during reconciliation, e.g. a
// sell that exceeds the held quantity. The position is clamped to closed
// rather than going negative; the warning is for the user to resolve.
type Warning struct {
	Key           models.AssetKey `json:"key"`
	TransactionID string          `json:"transaction_id"`
	Message       string          `json:"message"`
}

// Income aggregates dividend and interest payments at portfolio level.
// They never touch quantity or cost basis.
type Income struct {
	Dividends decimal.Decimal `json:"dividends"`
	Interest  decimal.Decimal `json:"interest"`
}

type ReconcileResult struct {
	Holdings []models.Holding `json:"holdings"`
	Income   Income           `json:"income"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

// KeyFor picks the holding key for a transaction: normalized ticker when
// one exists, asset name otherwise.
func KeyFor(tx models.Transaction) models.AssetKey {
	if sym := quotes.Normalize(tx.Ticker); sym != "" {
		return models.AssetKey{Kind: models.KeyTicker, Value: sym}
	}
	return models.AssetKey{Kind: models.KeyName, Value: tx.AssetName}
}

type accumulator struct {
	assetName   string
	assetType   models.AssetType
	quantity    decimal.Decimal
	totalCost   decimal.Decimal
	averageCost decimal.Decimal
}

// Reconcile replays the ledger in date order (id as tie-break) and returns
// the open holdings under average-cost accounting:
//
//   - buys add quantity and cost, average cost is total cost over quantity
//   - sells reduce quantity at the existing average cost; the average
//     itself never changes on a sell
//   - dividends and interest accumulate into Income only
//
// Positions whose quantity reaches zero are removed. Given the same input
// list the output is identical run to run; only LastUpdated carries the
// wall clock, stamped once per run.
func Reconcile(transactions []models.Transaction) ReconcileResult {
	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	accs := map[models.AssetKey]*accumulator{}
	var res ReconcileResult

	for _, tx := range sorted {
		key := KeyFor(tx)
		switch tx.Type {
		case models.TxBuy:
			acc, ok := accs[key]
			if !ok {
				acc = &accumulator{assetName: tx.AssetName, assetType: tx.AssetType}
				accs[key] = acc
			}
			acc.quantity = acc.quantity.Add(tx.Quantity)
			acc.totalCost = acc.totalCost.Add(tx.TotalAmount)
			if acc.quantity.IsPositive() {
				acc.averageCost = acc.totalCost.Div(acc.quantity)
			} else {
				acc.averageCost = decimal.Zero
			}

		case models.TxSell:
			acc, ok := accs[key]
			if !ok {
				res.Warnings = append(res.Warnings, Warning{
					Key:           key,
					TransactionID: tx.ID,
					Message:       "sell with no prior holding",
				})
				continue
			}
			acc.quantity = acc.quantity.Sub(tx.Quantity)
			if acc.quantity.IsPositive() {
				acc.totalCost = acc.quantity.Mul(acc.averageCost)
			} else {
				if acc.quantity.IsNegative() {
					res.Warnings = append(res.Warnings, Warning{
						Key:           key,
						TransactionID: tx.ID,
						Message: fmt.Sprintf("sell of %s exceeds held quantity, position closed",
							tx.Quantity.String()),
					})
				}
				acc.quantity = decimal.Zero
				acc.totalCost = decimal.Zero
				acc.averageCost = decimal.Zero
			}

		case models.TxDividend:
			res.Income.Dividends = res.Income.Dividends.Add(tx.TotalAmount)
		case models.TxInterest:
			res.Income.Interest = res.Income.Interest.Add(tx.TotalAmount)
		}
	}

	keys := make([]models.AssetKey, 0, len(accs))
	for key, acc := range accs {
		if acc.quantity.IsPositive() {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	now := time.Now().UTC()
	res.Holdings = make([]models.Holding, 0, len(keys))
	for _, key := range keys {
		acc := accs[key]
		res.Holdings = append(res.Holdings, models.Holding{
			Key:           key,
			AssetName:     acc.assetName,
			AssetType:     acc.assetType,
			TotalQuantity: acc.quantity,
			AverageCost:   acc.averageCost,
			TotalCost:     acc.totalCost,
			LastUpdated:   now,
		})
	}
	return res
}
