package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"finflow/internal/models"
	"finflow/internal/portfolio"
	"finflow/internal/quotes"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the handlers need.
type Store interface {
	CreateTransaction(ctx context.Context, tx models.Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ReplaceHoldings(ctx context.Context, userID string, holdings []models.Holding) error
	GetHoldings(ctx context.Context, userID string) ([]models.Holding, error)
}

// QuoteService is the quote cache surface the handlers need.
type QuoteService interface {
	GetQuote(ctx context.Context, ticker string) quotes.Result
	GetQuotes(ctx context.Context, tickers []string) ([]quotes.Result, error)
}

type Handler struct {
	store  Store
	quotes QuoteService
	log    *logrus.Logger
}

func NewHandler(store Store, q QuoteService, log *logrus.Logger) *Handler {
	return &Handler{store: store, quotes: q, log: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/transactions", h.PostTransaction)
	r.GET("/transactions/:userId", h.GetTransactions)
	r.DELETE("/transactions/:id", h.DeleteTransaction)
	r.GET("/portfolio/:userId", h.GetPortfolio)
	r.GET("/holdings/:userId", h.GetHoldings)
	r.GET("/quotes", h.GetQuotes)
}

type TransactionRequest struct {
	UserID       string    `json:"user_id" binding:"required"`
	Ticker       string    `json:"ticker"`
	AssetName    string    `json:"asset_name" binding:"required"`
	AssetType    string    `json:"asset_type" binding:"required"`
	Type         string    `json:"type" binding:"required"`
	Quantity     string    `json:"quantity"`
	PricePerUnit string    `json:"price_per_unit"`
	TotalAmount  string    `json:"total_amount" binding:"required"`
	Fees         string    `json:"fees"`
	Currency     string    `json:"currency"`
	Notes        string    `json:"notes"`
	Date         time.Time `json:"date" binding:"required"`
}

func (h *Handler) PostTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txType := models.TransactionType(req.Type)
	if !txType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown transaction type"})
		return
	}
	assetType := models.AssetType(req.AssetType)
	if !assetType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset type"})
		return
	}

	qty, err := parseAmount(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return
	}
	if (txType == models.TxBuy || txType == models.TxSell) && !qty.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required for buy and sell"})
		return
	}
	price, err := parseAmount(req.PricePerUnit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price_per_unit format"})
		return
	}
	total, err := parseAmount(req.TotalAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_amount format"})
		return
	}
	fees, err := parseAmount(req.Fees)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fees format"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	tx := models.Transaction{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Ticker:       quotes.Normalize(req.Ticker),
		AssetName:    req.AssetName,
		AssetType:    assetType,
		Type:         txType,
		Quantity:     qty,
		PricePerUnit: price,
		TotalAmount:  total,
		Fees:         fees,
		Currency:     currency,
		Notes:        req.Notes,
		Date:         req.Date,
	}
	if err := h.store.CreateTransaction(c.Request.Context(), tx); err != nil {
		h.log.Errorf("create transaction failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction_id": tx.ID})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	userID := c.Param("userId")
	txs, err := h.store.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorf("list transactions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteTransaction(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		h.log.Errorf("delete transaction failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	// Holdings are re-derived from the remaining ledger on the next
	// portfolio read; the stale snapshot is overwritten then.
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetPortfolio runs the full pipeline: ledger, reconcile, batch quotes,
// valuation, snapshot write-back.
func (h *Handler) GetPortfolio(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")

	txs, err := h.store.ListTransactions(ctx, userID)
	if err != nil {
		h.log.Errorf("list transactions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	rec := portfolio.Reconcile(txs)
	results := map[string]quotes.Result{}
	for _, chunk := range chunkTickers(portfolio.Tickers(rec.Holdings), quotes.DefaultMaxBatch) {
		batch, err := h.quotes.GetQuotes(ctx, chunk)
		if err != nil {
			h.log.Errorf("batch quote lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "quote lookup failed"})
			return
		}
		for _, r := range batch {
			results[r.Symbol] = r
		}
	}

	valued, summary := portfolio.ApplyPrices(rec.Holdings, results)

	if err := h.store.ReplaceHoldings(ctx, userID, valued); err != nil {
		// Snapshot write-back is best effort; the response is computed
		// from the ledger either way.
		h.log.Warnf("persist holdings snapshot failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"holdings": valued,
		"summary":  summary,
		"income":   rec.Income,
		"warnings": rec.Warnings,
	})
}

// GetHoldings serves the persisted snapshot from the last valuation run,
// without touching the quote source.
func (h *Handler) GetHoldings(c *gin.Context) {
	userID := c.Param("userId")
	holdings, err := h.store.GetHoldings(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorf("get holdings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, holdings)
}

func (h *Handler) GetQuotes(c *gin.Context) {
	raw := c.Query("symbols")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter is required"})
		return
	}
	symbols := []string{}
	for _, s := range strings.Split(raw, ",") {
		if strings.TrimSpace(s) != "" {
			symbols = append(symbols, s)
		}
	}

	results, err := h.quotes.GetQuotes(c.Request.Context(), symbols)
	if err != nil {
		if errors.Is(err, quotes.ErrBatchTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorf("batch quote lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": results})
}

func parseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func chunkTickers(tickers []string, size int) [][]string {
	var chunks [][]string
	for len(tickers) > size {
		chunks = append(chunks, tickers[:size])
		tickers = tickers[size:]
	}
	if len(tickers) > 0 {
		chunks = append(chunks, tickers)
	}
	return chunks
}
