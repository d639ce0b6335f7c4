package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrNotFound    = errors.New("ticker not found")
	ErrRateLimited = errors.New("rate limited by price source")
)

// Fetcher retrieves a live quote for one normalized ticker.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (models.Quote, error)
}

const (
	defaultBaseURL      = "https://query2.finance.yahoo.com"
	defaultFetchTimeout = 8 * time.Second
	defaultRateLimit    = 5 // requests per second to the upstream
)

// YahooFetcher reads the Yahoo Finance v8 chart endpoint. All requests pass
// through a shared limiter so batch fetches cannot burst past the upstream
// rate limit.
type YahooFetcher struct {
	baseURL string
	cli     *http.Client
	limiter *rate.Limiter
	log     *logrus.Logger
}

type FetcherOption func(*YahooFetcher)

func WithBaseURL(u string) FetcherOption {
	return func(f *YahooFetcher) { f.baseURL = u }
}

func WithRateLimit(requestsPerSecond int) FetcherOption {
	return func(f *YahooFetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func WithTimeout(d time.Duration) FetcherOption {
	return func(f *YahooFetcher) { f.cli.Timeout = d }
}

func NewYahooFetcher(log *logrus.Logger, opts ...FetcherOption) *YahooFetcher {
	f := &YahooFetcher{
		baseURL: defaultBaseURL,
		cli:     &http.Client{Timeout: defaultFetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateLimit),
		log:     log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				MarketState        string  `json:"marketState"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

func (f *YahooFetcher) Fetch(ctx context.Context, symbol string) (models.Quote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", f.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Quote{}, err
	}
	req.Header.Set("User-Agent", "finflow/1.0")

	resp, err := f.cli.Do(req)
	if err != nil {
		return models.Quote{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return models.Quote{}, ErrNotFound
	case http.StatusTooManyRequests:
		return models.Quote{}, ErrRateLimited
	default:
		return models.Quote{}, fmt.Errorf("price source http %d", resp.StatusCode)
	}

	var raw chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Quote{}, err
	}
	if len(raw.Chart.Result) == 0 {
		return models.Quote{}, ErrNotFound
	}

	meta := raw.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.Quote{}, ErrNotFound
	}

	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	prev := decimal.NewFromFloat(meta.ChartPreviousClose)
	change := price.Sub(prev)
	changePct := decimal.Zero
	if !prev.IsZero() {
		changePct = change.Div(prev).Mul(decimal.NewFromInt(100))
	}

	return models.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: prev,
		Change:        change,
		ChangePercent: changePct,
		Currency:      meta.Currency,
		MarketState:   meta.MarketState,
		FetchedAt:     time.Now().UTC(),
	}, nil
}
