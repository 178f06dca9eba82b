package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerRepository defines the interface for transaction persistence operations
type LedgerRepository interface {
	// ListByPortfolio retrieves all confirmed transactions for a portfolio,
	// ordered by date (stable for same-day entries, preserving insert order)
	ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*Transaction, error)

	// CreateBatch persists a reconciled batch of transactions atomically
	CreateBatch(ctx context.Context, txs []*Transaction) error
}

// PortfolioRepository defines the interface for portfolio config persistence
type PortfolioRepository interface {
	// GetConfig retrieves the config for a portfolio, ErrNotFound if absent
	GetConfig(ctx context.Context, portfolioID uuid.UUID) (*PortfolioConfig, error)

	// SaveConfig creates or replaces the config for a portfolio
	SaveConfig(ctx context.Context, cfg *PortfolioConfig) error

	// List retrieves all portfolio configs
	List(ctx context.Context) ([]*PortfolioConfig, error)
}

// PriceOracle provides point-in-time and latest prices for tickers.
// It is external, rate-limited, sometimes unavailable, and read-only:
// an unpriceable (ticker, date) pair yields ErrMissingPriceData.
type PriceOracle interface {
	// GetPrice returns the price of a ticker at a date (nearest close on or
	// before the requested date)
	GetPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error)

	// GetLatestPrice returns the most recent known price of a ticker
	GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// PriceStore defines the interface for locally persisted historical prices,
// filled out-of-band by the backfill job and consulted before the remote
// oracle.
type PriceStore interface {
	// GetPrice returns the stored price for (ticker, date), ErrNotFound if absent
	GetPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error)

	// SavePrice stores the price for (ticker, date)
	SavePrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error

	// GetCursor returns the backfill resume position, empty if none
	GetCursor(ctx context.Context) (string, error)

	// SaveCursor stores the backfill resume position
	SaveCursor(ctx context.Context, cursor string) error
}
