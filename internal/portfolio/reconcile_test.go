package portfolio

import (
	"testing"
	"time"

	"finflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func buy(id, ticker, qty, total string, d time.Time) models.Transaction {
	return tx(id, ticker, models.TxBuy, qty, total, d)
}

func sell(id, ticker, qty, total string, d time.Time) models.Transaction {
	return tx(id, ticker, models.TxSell, qty, total, d)
}

func tx(id, ticker string, typ models.TransactionType, qty, total string, d time.Time) models.Transaction {
	q, _ := decimal.NewFromString(qty)
	t, _ := decimal.NewFromString(total)
	return models.Transaction{
		ID:          id,
		UserID:      "u1",
		Ticker:      ticker,
		AssetName:   ticker,
		AssetType:   models.AssetStock,
		Type:        typ,
		Quantity:    q,
		TotalAmount: t,
		Currency:    "EUR",
		Date:        d,
	}
}

func TestReconcile_AveragesBuys(t *testing.T) {
	res := Reconcile([]models.Transaction{
		buy("a", "AAPL", "10", "1000", day(0)),
		buy("b", "AAPL", "5", "600", day(1)),
	})

	require.Len(t, res.Holdings, 1)
	h := res.Holdings[0]
	assert.Equal(t, models.AssetKey{Kind: models.KeyTicker, Value: "AAPL"}, h.Key)
	assert.True(t, h.TotalQuantity.Equal(decimal.NewFromInt(15)), "quantity %s", h.TotalQuantity)
	assert.True(t, h.TotalCost.Equal(decimal.NewFromInt(1600)), "total cost %s", h.TotalCost)
	avg, _ := h.AverageCost.Float64()
	assert.InDelta(t, 106.6667, avg, 0.001)
	assert.Empty(t, res.Warnings)
}

func TestReconcile_SellKeepsAverageCost(t *testing.T) {
	res := Reconcile([]models.Transaction{
		buy("a", "AAPL", "10", "1000", day(0)),
		sell("b", "AAPL", "4", "600", day(1)),
	})

	require.Len(t, res.Holdings, 1)
	h := res.Holdings[0]
	assert.True(t, h.TotalQuantity.Equal(decimal.NewFromInt(6)))
	assert.True(t, h.AverageCost.Equal(decimal.NewFromInt(100)), "average cost %s", h.AverageCost)
	assert.True(t, h.TotalCost.Equal(decimal.NewFromInt(600)), "total cost %s", h.TotalCost)
}

func TestReconcile_FullSellRemovesHolding(t *testing.T) {
	res := Reconcile([]models.Transaction{
		buy("a", "AAPL", "10", "1000", day(0)),
		sell("b", "AAPL", "10", "1500", day(1)),
	})

	assert.Empty(t, res.Holdings)
	assert.Empty(t, res.Warnings)
}

func TestReconcile_OverSellClampsAndWarns(t *testing.T) {
	res := Reconcile([]models.Transaction{
		buy("a", "AAPL", "10", "1000", day(0)),
		sell("b", "AAPL", "12", "1800", day(1)),
	})

	assert.Empty(t, res.Holdings)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "b", res.Warnings[0].TransactionID)
	assert.Contains(t, res.Warnings[0].Message, "exceeds held quantity")
}

func TestReconcile_SellWithoutHoldingWarns(t *testing.T) {
	res := Reconcile([]models.Transaction{
		sell("a", "AAPL", "5", "500", day(0)),
	})

	assert.Empty(t, res.Holdings)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "sell with no prior holding", res.Warnings[0].Message)
}

func TestReconcile_IncomeDoesNotTouchHoldings(t *testing.T) {
	div := tx("b", "AAPL", models.TxDividend, "0", "12.50", day(1))
	interest := tx("c", "", models.TxInterest, "0", "3.20", day(2))
	interest.AssetName = "Savings"
	interest.AssetType = models.AssetCash

	res := Reconcile([]models.Transaction{
		buy("a", "AAPL", "10", "1000", day(0)),
		div,
		interest,
	})

	require.Len(t, res.Holdings, 1)
	assert.True(t, res.Holdings[0].TotalQuantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, res.Income.Dividends.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, res.Income.Interest.Equal(decimal.RequireFromString("3.20")))
}

func TestReconcile_NameKeyedAssetsDoNotCollideWithTickers(t *testing.T) {
	gold := buy("b", "", "3", "450", day(0))
	gold.AssetName = "GOLD"
	gold.AssetType = models.AssetCommodity

	res := Reconcile([]models.Transaction{
		buy("a", "GOLD", "2", "300", day(0)),
		gold,
	})

	require.Len(t, res.Holdings, 2)
	keys := []models.AssetKey{res.Holdings[0].Key, res.Holdings[1].Key}
	assert.Contains(t, keys, models.AssetKey{Kind: models.KeyName, Value: "GOLD"})
	assert.Contains(t, keys, models.AssetKey{Kind: models.KeyTicker, Value: "GOLD"})
}

func TestReconcile_OrderIndependent(t *testing.T) {
	txs := []models.Transaction{
		buy("a", "AAPL", "10", "1000", day(0)),
		sell("c", "AAPL", "4", "600", day(2)),
		buy("b", "AAPL", "5", "600", day(1)),
		buy("d", "MSFT", "1", "350", day(0)),
	}
	shuffled := []models.Transaction{txs[2], txs[3], txs[0], txs[1]}

	first := Reconcile(txs)
	second := Reconcile(shuffled)

	require.Equal(t, len(first.Holdings), len(second.Holdings))
	for i := range first.Holdings {
		a, b := first.Holdings[i], second.Holdings[i]
		assert.Equal(t, a.Key, b.Key)
		assert.True(t, a.TotalQuantity.Equal(b.TotalQuantity))
		assert.True(t, a.TotalCost.Equal(b.TotalCost))
		assert.True(t, a.AverageCost.Equal(b.AverageCost))
	}
}

// Same-date transactions must replay in id order, so a same-day buy and
// sell of the full position never warns.
func TestReconcile_SameDateTieBreaksOnID(t *testing.T) {
	res := Reconcile([]models.Transaction{
		sell("b", "AAPL", "10", "1100", day(0)),
		buy("a", "AAPL", "10", "1000", day(0)),
	})

	assert.Empty(t, res.Holdings)
	assert.Empty(t, res.Warnings)
}

func TestReconcile_CostBasisInvariant(t *testing.T) {
	res := Reconcile([]models.Transaction{
		buy("a", "AAPL", "3", "471.33", day(0)),
		buy("b", "AAPL", "7", "1022.95", day(1)),
		sell("c", "AAPL", "4", "650", day(2)),
		buy("d", "MSFT", "2.5", "812.40", day(0)),
	})

	for _, h := range res.Holdings {
		want, _ := h.TotalQuantity.Mul(h.AverageCost).Float64()
		got, _ := h.TotalCost.Float64()
		assert.InDelta(t, want, got, 1e-6, "cost basis mismatch for %s", h.Key)
		assert.True(t, h.TotalQuantity.IsPositive())
	}
}
