package database

import (
	"context"
	"database/sql"

	"finflow/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) CreateTransaction(ctx context.Context, tx models.Transaction) error {
	q := `INSERT INTO transactions
		(id, user_id, ticker, asset_name, asset_type, tx_type, quantity, price_per_unit, total_amount, fees, currency, notes, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11, $12, $13, now())`
	_, err := r.db.ExecContext(ctx, q,
		tx.ID, tx.UserID, tx.Ticker, tx.AssetName, tx.AssetType, tx.Type,
		tx.Quantity.String(), tx.PricePerUnit.String(), tx.TotalAmount.String(), tx.Fees.String(),
		tx.Currency, tx.Notes, tx.Date)
	return err
}

// ListTransactions returns the full ledger for a user in replay order. The
// id tie-break keeps reconciliation deterministic for same-day entries.
func (r *Repo) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	q := `SELECT id, user_id, ticker, asset_name, asset_type, tx_type, quantity, price_per_unit, total_amount, fees, currency, notes, date, created_at
		FROM transactions WHERE user_id = $1 ORDER BY date ASC, id ASC`
	rows, err := r.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.StructScan(&tx); err != nil {
			r.log.Warnf("scan transaction failed: %v", err)
			continue
		}
		res = append(res, tx)
	}
	return res, rows.Err()
}

func (r *Repo) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type holdingRow struct {
	UserID                string         `db:"user_id"`
	KeyKind               string         `db:"key_kind"`
	KeyValue              string         `db:"key_value"`
	AssetName             string         `db:"asset_name"`
	AssetType             string         `db:"asset_type"`
	TotalQuantity         string         `db:"total_quantity"`
	AverageCost           string         `db:"average_cost"`
	TotalCost             string         `db:"total_cost"`
	CurrentPrice          sql.NullString `db:"current_price"`
	CurrentValue          string         `db:"current_value"`
	UnrealizedGainLoss    string         `db:"unrealized_gain_loss"`
	PercentageOfPortfolio string         `db:"percentage_of_portfolio"`
	PriceStale            bool           `db:"price_stale"`
	PriceUnavailable      bool           `db:"price_unavailable"`
	LastUpdated           sql.NullTime   `db:"last_updated"`
}

// ReplaceHoldings swaps the persisted holdings snapshot for a user in one
// transaction. The snapshot is a cache of the last valuation run; the
// ledger stays authoritative.
func (r *Repo) ReplaceHoldings(ctx context.Context, userID string, holdings []models.Holding) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = $1`, userID); err != nil {
		return err
	}

	q := `INSERT INTO holdings
		(user_id, key_kind, key_value, asset_name, asset_type, total_quantity, average_cost, total_cost, current_price, current_value, unrealized_gain_loss, percentage_of_portfolio, price_stale, price_unavailable, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13, $14, $15)`
	for _, h := range holdings {
		var price interface{}
		if h.CurrentPrice != nil {
			price = h.CurrentPrice.String()
		}
		if _, err := tx.ExecContext(ctx, q,
			userID, h.Key.Kind, h.Key.Value, h.AssetName, h.AssetType,
			h.TotalQuantity.String(), h.AverageCost.String(), h.TotalCost.String(),
			price, h.CurrentValue.String(), h.UnrealizedGainLoss.String(),
			h.PercentageOfPortfolio.String(), h.PriceStale, h.PriceUnavailable, h.LastUpdated); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetHoldings reads back the persisted snapshot from the last valuation run.
func (r *Repo) GetHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	q := `SELECT user_id, key_kind, key_value, asset_name, asset_type, total_quantity, average_cost, total_cost, current_price, current_value, unrealized_gain_loss, percentage_of_portfolio, price_stale, price_unavailable, last_updated
		FROM holdings WHERE user_id = $1 ORDER BY key_kind, key_value`
	rows, err := r.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Holding{}
	for rows.Next() {
		var row holdingRow
		if err := rows.StructScan(&row); err != nil {
			r.log.Warnf("scan holding failed: %v", err)
			continue
		}
		h, err := row.toHolding()
		if err != nil {
			r.log.Warnf("decode holding %s:%s failed: %v", row.KeyKind, row.KeyValue, err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (row holdingRow) toHolding() (models.Holding, error) {
	h := models.Holding{
		Key:              models.AssetKey{Kind: models.KeyKind(row.KeyKind), Value: row.KeyValue},
		AssetName:        row.AssetName,
		AssetType:        models.AssetType(row.AssetType),
		PriceStale:       row.PriceStale,
		PriceUnavailable: row.PriceUnavailable,
	}
	if row.LastUpdated.Valid {
		h.LastUpdated = row.LastUpdated.Time
	}
	var err error
	if h.TotalQuantity, err = parseDecimal(row.TotalQuantity); err != nil {
		return h, err
	}
	if h.AverageCost, err = parseDecimal(row.AverageCost); err != nil {
		return h, err
	}
	if h.TotalCost, err = parseDecimal(row.TotalCost); err != nil {
		return h, err
	}
	if h.CurrentValue, err = parseDecimal(row.CurrentValue); err != nil {
		return h, err
	}
	if h.UnrealizedGainLoss, err = parseDecimal(row.UnrealizedGainLoss); err != nil {
		return h, err
	}
	if h.PercentageOfPortfolio, err = parseDecimal(row.PercentageOfPortfolio); err != nil {
		return h, err
	}
	if row.CurrentPrice.Valid {
		p, err := parseDecimal(row.CurrentPrice.String)
		if err != nil {
			return h, err
		}
		h.CurrentPrice = &p
	}
	return h, nil
}
