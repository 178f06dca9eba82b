// Package oracle provides price oracle implementations backed by the
// brapi.dev quote API.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

const defaultBaseURL = "https://brapi.dev"

// Client is a brapi.dev price oracle with an in-memory TTL cache.
// The upstream API is rate-limited and sometimes unavailable; every failure
// is mapped to domain.ErrMissingPriceData so consumers can degrade
// per-ticker instead of aborting.
type Client struct {
	baseURL string
	token   string
	cli     *http.Client
	ttl     time.Duration
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

type cachedQuote struct {
	price   decimal.Decimal
	fetched time.Time
}

// NewClient creates a new brapi.dev client. An empty baseURL selects the
// public endpoint; the token may be empty for unauthenticated quota.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		cli:     &http.Client{Timeout: 10 * time.Second},
		ttl:     60 * time.Second,
		log:     log.With().Str("client", "brapi").Logger(),
		cache:   make(map[string]cachedQuote),
	}
}

type quoteResponse struct {
	Results []struct {
		Symbol              string  `json:"symbol"`
		RegularMarketPrice  float64 `json:"regularMarketPrice"`
		HistoricalDataPrice []struct {
			Date  int64   `json:"date"`
			Close float64 `json:"close"`
		} `json:"historicalDataPrice"`
	} `json:"results"`
}

// GetLatestPrice returns the most recent quote for a ticker
func (c *Client) GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return decimal.Zero, fmt.Errorf("%w: empty ticker", domain.ErrMissingPriceData)
	}

	cacheKey := ticker + "@latest"
	if price, ok := c.cached(cacheKey); ok {
		return price, nil
	}

	resp, err := c.fetch(ctx, ticker, "")
	if err != nil {
		return decimal.Zero, err
	}

	if resp.Results[0].RegularMarketPrice <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s has no market price", domain.ErrMissingPriceData, ticker)
	}

	price := decimal.NewFromFloat(resp.Results[0].RegularMarketPrice)
	c.store(cacheKey, price)
	return price, nil
}

// GetPrice returns the nearest close on or before the requested date.
// The history range requested from the API is sized to reach the date.
func (c *Client) GetPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return decimal.Zero, fmt.Errorf("%w: empty ticker", domain.ErrMissingPriceData)
	}
	date = domain.Day(date)

	cacheKey := ticker + "@" + date.Format("2006-01-02")
	if price, ok := c.cached(cacheKey); ok {
		return price, nil
	}

	resp, err := c.fetch(ctx, ticker, historyRange(date))
	if err != nil {
		return decimal.Zero, err
	}

	// History comes oldest-first; walk backwards for the nearest close <= date.
	history := resp.Results[0].HistoricalDataPrice
	cutoff := date.AddDate(0, 0, 1)
	for i := len(history) - 1; i >= 0; i-- {
		at := time.Unix(history[i].Date, 0).UTC()
		if at.Before(cutoff) && history[i].Close > 0 {
			price := decimal.NewFromFloat(history[i].Close)
			c.store(cacheKey, price)
			return price, nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %s has no close on or before %s",
		domain.ErrMissingPriceData, ticker, date.Format("2006-01-02"))
}

func (c *Client) fetch(ctx context.Context, ticker, rng string) (*quoteResponse, error) {
	url := fmt.Sprintf("%s/api/quote/%s", c.baseURL, ticker)
	sep := "?"
	if rng != "" {
		url += sep + "range=" + rng + "&interval=1d"
		sep = "&"
	}
	if c.token != "" {
		url += sep + "token=" + c.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMissingPriceData, ticker, err)
	}

	c.log.Debug().Str("ticker", ticker).Str("range", rng).Msg("Fetching quote")

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMissingPriceData, ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: brapi http %d", domain.ErrMissingPriceData, ticker, resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMissingPriceData, ticker, err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("%w: %s: no results", domain.ErrMissingPriceData, ticker)
	}

	return &parsed, nil
}

func (c *Client) cached(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.cache[key]
	if !ok || time.Since(q.fetched) >= c.ttl {
		return decimal.Zero, false
	}
	return q.price, true
}

func (c *Client) store(key string, price decimal.Decimal) {
	c.mu.Lock()
	c.cache[key] = cachedQuote{price: price, fetched: time.Now()}
	c.mu.Unlock()
}

// historyRange picks the smallest brapi range parameter that reaches back to
// the requested date.
func historyRange(date time.Time) string {
	age := time.Since(date)
	switch {
	case age < 25*24*time.Hour:
		return "1mo"
	case age < 85*24*time.Hour:
		return "3mo"
	case age < 360*24*time.Hour:
		return "1y"
	case age < 2*360*24*time.Hour:
		return "2y"
	case age < 5*360*24*time.Hour:
		return "5y"
	case age < 10*360*24*time.Hour:
		return "10y"
	}
	return "max"
}
