package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// priceRepository implements domain.PriceStore
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price store backed by postgres
func NewPriceRepository(db *DB) domain.PriceStore {
	return &priceRepository{db: db}
}

// GetPrice returns the stored price for (ticker, date)
func (r *priceRepository) GetPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT price FROM historical_prices WHERE ticker = $1 AND date = $2`,
		ticker, domain.Day(date)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s at %s", domain.ErrNotFound, ticker, date.Format("2006-01-02"))
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price: %w", err)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored price for %s: %w", ticker, err)
	}
	return price, nil
}

// SavePrice stores the price for (ticker, date)
func (r *priceRepository) SavePrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO historical_prices (ticker, date, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, date) DO UPDATE SET price = EXCLUDED.price
	`, ticker, domain.Day(date), price.String())
	if err != nil {
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}

// GetCursor returns the backfill resume position, empty if none
func (r *priceRepository) GetCursor(ctx context.Context) (string, error) {
	var cursor string
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor FROM backfill_cursor WHERE id = 1`).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get backfill cursor: %w", err)
	}
	return cursor, nil
}

// SaveCursor stores the backfill resume position
func (r *priceRepository) SaveCursor(ctx context.Context, cursor string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backfill_cursor (id, cursor)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET cursor = EXCLUDED.cursor
	`, cursor)
	if err != nil {
		return fmt.Errorf("failed to save backfill cursor: %w", err)
	}
	return nil
}
