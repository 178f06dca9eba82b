package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// StoreBacked is a PriceOracle that consults the local price store before
// the remote oracle. The store is filled out-of-band by the backfill job;
// remote hits are written through on a best-effort basis so repeated
// valuations stop paying for the same lookup.
type StoreBacked struct {
	store domain.PriceStore
	next  domain.PriceOracle
	log   zerolog.Logger
}

// NewStoreBacked creates a new store-first oracle
func NewStoreBacked(store domain.PriceStore, next domain.PriceOracle, log zerolog.Logger) *StoreBacked {
	return &StoreBacked{
		store: store,
		next:  next,
		log:   log.With().Str("client", "price-store").Logger(),
	}
}

// GetPrice checks the local store first and falls back to the remote oracle
func (o *StoreBacked) GetPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	price, err := o.store.GetPrice(ctx, ticker, date)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		o.log.Warn().Err(err).Str("ticker", ticker).Msg("Price store lookup failed, using remote oracle")
	}

	price, err = o.next.GetPrice(ctx, ticker, date)
	if err != nil {
		return decimal.Zero, err
	}

	if saveErr := o.store.SavePrice(ctx, ticker, date, price); saveErr != nil {
		o.log.Warn().Err(saveErr).Str("ticker", ticker).Msg("Failed to write price through to store")
	}
	return price, nil
}

// GetLatestPrice always goes to the remote oracle; the store only holds
// closed historical dates.
func (o *StoreBacked) GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return o.next.GetLatestPrice(ctx, ticker)
}
