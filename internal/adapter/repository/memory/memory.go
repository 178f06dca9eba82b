// Package memory provides in-memory repository implementations, used by
// tests and local runs without a database.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// LedgerRepository is an in-memory domain.LedgerRepository
type LedgerRepository struct {
	mu  sync.RWMutex
	txs map[uuid.UUID][]*domain.Transaction // keyed by portfolio, insert order
}

// NewLedgerRepository creates a new in-memory ledger repository
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{txs: make(map[uuid.UUID][]*domain.Transaction)}
}

// ListByPortfolio returns the portfolio's transactions ordered by date,
// preserving insert order within a day.
func (r *LedgerRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.txs[portfolioID]
	out := make([]*domain.Transaction, 0, len(stored))
	for _, tx := range stored {
		cp := *tx
		out = append(out, &cp)
	}

	// Insert order is already chronological per batch; a simple stable
	// insertion sort keeps cross-batch ordering correct.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Date.Before(out[j-1].Date); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	return out, nil
}

// CreateBatch appends a reconciled batch
func (r *LedgerRepository) CreateBatch(ctx context.Context, txs []*domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tx := range txs {
		cp := *tx
		r.txs[tx.PortfolioID] = append(r.txs[tx.PortfolioID], &cp)
	}
	return nil
}

// PortfolioRepository is an in-memory domain.PortfolioRepository
type PortfolioRepository struct {
	mu      sync.RWMutex
	configs map[uuid.UUID]*domain.PortfolioConfig
}

// NewPortfolioRepository creates a new in-memory portfolio repository
func NewPortfolioRepository() *PortfolioRepository {
	return &PortfolioRepository{configs: make(map[uuid.UUID]*domain.PortfolioConfig)}
}

// GetConfig returns the config for a portfolio, ErrNotFound if absent
func (r *PortfolioRepository) GetConfig(ctx context.Context, portfolioID uuid.UUID) (*domain.PortfolioConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[portfolioID]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio config %s", domain.ErrNotFound, portfolioID)
	}
	cp := *cfg
	return &cp, nil
}

// SaveConfig validates and stores the config
func (r *PortfolioRepository) SaveConfig(ctx context.Context, cfg *domain.PortfolioConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *cfg
	r.configs[cfg.PortfolioID] = &cp
	return nil
}

// List returns all stored configs
func (r *PortfolioRepository) List(ctx context.Context) ([]*domain.PortfolioConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.PortfolioConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		cp := *cfg
		out = append(out, &cp)
	}
	return out, nil
}

// PriceStore is an in-memory domain.PriceStore
type PriceStore struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal // ticker@date
	cursor string
}

// NewPriceStore creates a new in-memory price store
func NewPriceStore() *PriceStore {
	return &PriceStore{prices: make(map[string]decimal.Decimal)}
}

func priceKey(ticker string, date time.Time) string {
	return ticker + "@" + domain.Day(date).Format("2006-01-02")
}

// GetPrice returns the stored price for (ticker, date), ErrNotFound if absent
func (s *PriceStore) GetPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[priceKey(ticker, date)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s at %s", domain.ErrNotFound, ticker, date.Format("2006-01-02"))
	}
	return price, nil
}

// SavePrice stores the price for (ticker, date)
func (s *PriceStore) SavePrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[priceKey(ticker, date)] = price
	return nil
}

// GetCursor returns the backfill resume position
func (s *PriceStore) GetCursor(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, nil
}

// SaveCursor stores the backfill resume position
func (s *PriceStore) SaveCursor(ctx context.Context, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	return nil
}
