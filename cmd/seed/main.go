// Seeds a demo ledger so the portfolio endpoint has something to value.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"finflow/internal/database"
	"finflow/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	repo := database.New(db, logrus.New())
	ctx := context.Background()
	userID := "demo-user"
	base := time.Now().UTC().AddDate(0, -6, 0)

	type seedTx struct {
		ticker, name string
		assetType    models.AssetType
		txType       models.TransactionType
		qty, total   string
		daysOffset   int
	}
	seeds := []seedTx{
		{"AAPL", "Apple Inc.", models.AssetStock, models.TxBuy, "10", "1000", 0},
		{"AAPL", "Apple Inc.", models.AssetStock, models.TxBuy, "5", "600", 30},
		{"VWCE.DE", "Vanguard FTSE All-World", models.AssetETF, models.TxBuy, "20", "2200", 10},
		{"AAPL", "Apple Inc.", models.AssetStock, models.TxDividend, "0", "12.50", 60},
		{"", "Emergency Fund", models.AssetCash, models.TxBuy, "5000", "5000", 0},
		{"AAPL", "Apple Inc.", models.AssetStock, models.TxSell, "4", "700", 90},
	}

	for _, s := range seeds {
		qty, _ := decimal.NewFromString(s.qty)
		total, _ := decimal.NewFromString(s.total)
		tx := models.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Ticker:      s.ticker,
			AssetName:   s.name,
			AssetType:   s.assetType,
			Type:        s.txType,
			Quantity:    qty,
			TotalAmount: total,
			Currency:    "EUR",
			Date:        base.AddDate(0, 0, s.daysOffset),
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			fmt.Printf("Warning: could not insert %s %s: %v\n", s.txType, s.name, err)
		}
	}

	fmt.Println("Seeded demo ledger for", userID)
	fmt.Println("Now fetch: http://localhost:8080/portfolio/" + userID)
}
