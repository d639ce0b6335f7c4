// Package quotes caches market quotes fetched from an external price source.
// Entries stay fresh for a configurable window; when the upstream fails the
// cache serves the last known quote marked stale, so portfolio views can
// always render with partial data.
package quotes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"finflow/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTTL      = 60 * time.Second
	DefaultMaxBatch = 50

	// evictAfter multiples of the TTL before a dead entry is swept.
	evictAfter = 10
)

var ErrBatchTooLarge = errors.New("too many tickers in one batch")

type Status string

const (
	StatusFresh Status = "fresh"
	StatusStale Status = "stale"
	StatusError Status = "error"
)

// Result is the per-ticker outcome of a lookup. Quote is nil only when
// Status is StatusError.
type Result struct {
	Symbol string        `json:"symbol"`
	Status Status        `json:"status"`
	Quote  *models.Quote `json:"quote,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (r Result) OK() bool {
	return r.Status != StatusError
}

type flight struct {
	done chan struct{}
	res  Result
}

// Cache is the process-wide quote cache. Construct one in main, call Start
// for the eviction sweep, and pass it by reference to handlers.
type Cache struct {
	fetcher    Fetcher
	log        *logrus.Logger
	ttl        time.Duration
	maxBatch   int
	sweepEvery time.Duration

	mu       sync.Mutex
	entries  map[string]models.Quote
	inflight map[string]*flight

	stopOnce sync.Once
	stop     chan struct{}
}

type CacheOption func(*Cache)

func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = d
		c.sweepEvery = d
	}
}

func WithMaxBatch(n int) CacheOption {
	return func(c *Cache) { c.maxBatch = n }
}

func WithSweepInterval(d time.Duration) CacheOption {
	return func(c *Cache) { c.sweepEvery = d }
}

func NewCache(f Fetcher, log *logrus.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:    f,
		log:        log,
		ttl:        DefaultTTL,
		maxBatch:   DefaultMaxBatch,
		sweepEvery: DefaultTTL,
		entries:    map[string]models.Quote{},
		inflight:   map[string]*flight{},
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize maps raw user input onto the cache key: " aapl " and "AAPL"
// share one entry and one upstream call.
func Normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// GetQuote returns the cached quote when fresh, otherwise fetches. Fetch
// failures fall back to the prior entry (marked stale, FetchedAt untouched)
// or, with no prior entry, to an error-tagged result. It never returns a Go
// error: callers always get something renderable per ticker.
//
// Concurrent callers for the same ticker collapse into a single upstream
// fetch; the rest wait for the leader's result.
func (c *Cache) GetQuote(ctx context.Context, ticker string) Result {
	sym := Normalize(ticker)
	if sym == "" {
		return Result{Symbol: ticker, Status: StatusError, Error: "empty ticker"}
	}

	c.mu.Lock()
	if q, ok := c.entries[sym]; ok && time.Since(q.FetchedAt) < c.ttl {
		c.mu.Unlock()
		return Result{Symbol: sym, Status: StatusFresh, Quote: &q}
	}
	if fl, ok := c.inflight[sym]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.res
		case <-ctx.Done():
			return Result{Symbol: sym, Status: StatusError, Error: ctx.Err().Error()}
		}
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight[sym] = fl
	c.mu.Unlock()

	q, err := c.fetcher.Fetch(ctx, sym)

	c.mu.Lock()
	if err == nil {
		c.entries[sym] = q
		fl.res = Result{Symbol: sym, Status: StatusFresh, Quote: &q}
	} else if prev, ok := c.entries[sym]; ok {
		c.log.Warnf("quote fetch for %s failed, serving stale: %v", sym, err)
		fl.res = Result{Symbol: sym, Status: StatusStale, Quote: &prev}
	} else {
		c.log.Warnf("quote fetch for %s failed with no fallback: %v", sym, err)
		fl.res = Result{Symbol: sym, Status: StatusError, Error: err.Error()}
	}
	delete(c.inflight, sym)
	c.mu.Unlock()

	close(fl.done)
	return fl.res
}

// GetQuotes looks up every ticker concurrently and returns one result per
// input, in input order. One ticker failing never affects the others. Lists
// beyond the batch limit are rejected outright so callers never silently
// lose symbols.
func (c *Cache) GetQuotes(ctx context.Context, tickers []string) ([]Result, error) {
	if len(tickers) > c.maxBatch {
		return nil, ErrBatchTooLarge
	}

	results := make([]Result, len(tickers))
	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			results[i] = c.GetQuote(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return results, nil
}

// Start launches the periodic eviction sweep.
func (c *Cache) Start() {
	go func() {
		ticker := time.NewTicker(c.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				c.log.Info("quote cache sweep stopping")
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// sweep drops entries older than evictAfter×TTL. It snapshots candidate
// keys first so the lock is never held across the whole pass.
func (c *Cache) sweep() {
	cutoff := time.Now().Add(-time.Duration(evictAfter) * c.ttl)

	c.mu.Lock()
	expired := make([]string, 0)
	for sym, q := range c.entries {
		if q.FetchedAt.Before(cutoff) {
			expired = append(expired, sym)
		}
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	c.mu.Lock()
	for _, sym := range expired {
		// Re-check: a concurrent fetch may have refreshed the entry.
		if q, ok := c.entries[sym]; ok && q.FetchedAt.Before(cutoff) {
			delete(c.entries, sym)
		}
	}
	c.mu.Unlock()
	c.log.Debugf("quote cache swept %d expired entries", len(expired))
}

// Len reports the number of cached entries. Used by the sweep tests and the
// health endpoint.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
