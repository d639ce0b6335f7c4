package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetType string

const (
	AssetStock     AssetType = "stock"
	AssetETF       AssetType = "etf"
	AssetBond      AssetType = "bond"
	AssetCrypto    AssetType = "crypto"
	AssetCommodity AssetType = "commodity"
	AssetCash      AssetType = "cash"
	AssetOther     AssetType = "other"
)

func (a AssetType) Valid() bool {
	switch a {
	case AssetStock, AssetETF, AssetBond, AssetCrypto, AssetCommodity, AssetCash, AssetOther:
		return true
	}
	return false
}

type TransactionType string

const (
	TxBuy      TransactionType = "buy"
	TxSell     TransactionType = "sell"
	TxDividend TransactionType = "dividend"
	TxInterest TransactionType = "interest"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxBuy, TxSell, TxDividend, TxInterest:
		return true
	}
	return false
}

// Transaction is one row of the append-only ledger. Holdings are always
// derived from the full ledger, never edited in place.
type Transaction struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Ticker       string          `db:"ticker" json:"ticker,omitempty"` // empty for unlisted assets
	AssetName    string          `db:"asset_name" json:"asset_name"`
	AssetType    AssetType       `db:"asset_type" json:"asset_type"`
	Type         TransactionType `db:"tx_type" json:"type"`
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
	PricePerUnit decimal.Decimal `db:"price_per_unit" json:"price_per_unit"`
	TotalAmount  decimal.Decimal `db:"total_amount" json:"total_amount"`
	Fees         decimal.Decimal `db:"fees" json:"fees"`
	Currency     string          `db:"currency" json:"currency"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	Date         time.Time       `db:"date" json:"date"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type KeyKind string

const (
	KeyTicker KeyKind = "ticker"
	KeyName   KeyKind = "name"
)

// AssetKey identifies a holding. Listed assets are keyed by normalized
// ticker, unlisted ones by asset name, so "GOLD" the ticker and "Gold" the
// commodity never collapse into one entry.
type AssetKey struct {
	Kind  KeyKind `json:"kind"`
	Value string  `json:"value"`
}

func (k AssetKey) String() string {
	return string(k.Kind) + ":" + k.Value
}

// Holding is the derived position for one asset key. CurrentPrice and the
// valuation fields stay zero until quotes are applied.
type Holding struct {
	Key                   AssetKey         `json:"key"`
	AssetName             string           `json:"asset_name"`
	AssetType             AssetType        `json:"asset_type"`
	TotalQuantity         decimal.Decimal  `json:"total_quantity"`
	AverageCost           decimal.Decimal  `json:"average_cost"`
	TotalCost             decimal.Decimal  `json:"total_cost"`
	CurrentPrice          *decimal.Decimal `json:"current_price,omitempty"`
	CurrentValue          decimal.Decimal  `json:"current_value"`
	UnrealizedGainLoss    decimal.Decimal  `json:"unrealized_gain_loss"`
	GainLossPercentage    decimal.Decimal  `json:"gain_loss_percentage"`
	PercentageOfPortfolio decimal.Decimal  `json:"percentage_of_portfolio"`
	PriceStale            bool             `json:"price_stale,omitempty"`
	PriceUnavailable      bool             `json:"price_unavailable,omitempty"`
	LastUpdated           time.Time        `json:"last_updated"`
}

// Quote is a cached market snapshot for one ticker. Process-lifetime only.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Currency      string          `json:"currency"`
	MarketState   string          `json:"market_state"`
	FetchedAt     time.Time       `json:"fetched_at"`
}
