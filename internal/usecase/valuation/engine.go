package valuation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// Engine replays a portfolio's ledger against the price oracle to produce
// its monthly evolution series.
//
// A run is strictly sequential: each anchor's state depends on the previous
// anchor's cursor position and running cash/holdings. Runs for different
// portfolios are independent and may execute concurrently; each run owns its
// own price memo, so the engine itself carries no mutable shared state.
type Engine struct {
	LedgerRepo domain.LedgerRepository
	Oracle     domain.PriceOracle

	log zerolog.Logger
}

// NewEngine creates a new valuation Engine instance
func NewEngine(ledgerRepo domain.LedgerRepository, oracle domain.PriceOracle, log zerolog.Logger) *Engine {
	return &Engine{
		LedgerRepo: ledgerRepo,
		Oracle:     oracle,
		log:        log.With().Str("component", "valuation").Logger(),
	}
}

// run is the per-invocation replay state: the forward cursor plus running
// balances, and the (ticker, date) price memo that keeps redundant oracle
// calls out of a single run.
type run struct {
	txs    []*domain.Transaction
	cursor int

	cash        decimal.Decimal
	invested    decimal.Decimal
	withdrawals decimal.Decimal
	quantities  map[string]decimal.Decimal

	prices map[string]decimal.Decimal
}

// Series produces one EvolutionPoint per calendar month from the first
// transaction's month through the month of now.
// Logic:
//  1. Generate first-of-month anchor dates (UTC)
//  2. Advance a single forward cursor per anchor, applying every transaction
//     dated <= the anchor exactly once. The cursor never rewinds: reapplying
//     prior transactions would balloon each month by the cumulative effect
//     of everything before it.
//  3. Closed months price at the anchor date and cut transaction replay at
//     the anchor date. The open (current) month uses now for BOTH: latest
//     prices AND a transaction cutoff of today.
//  4. totalValue = cash + sum(quantity * price). A ticker the oracle cannot
//     price is excluded from that anchor only, logged, never fatal.
//  5. investedCapital is the running sum of CASH_CREDIT amounts only.
//
// Anchors at which no transaction has been applied yet are skipped, so the
// series never starts with zero-valued points.
func (e *Engine) Series(ctx context.Context, portfolioID uuid.UUID, now time.Time) ([]domain.EvolutionPoint, error) {
	txs, err := e.LedgerRepo.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if len(txs) == 0 {
		return []domain.EvolutionPoint{}, nil
	}

	ordered := make([]*domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	r := &run{
		txs:        ordered,
		quantities: make(map[string]decimal.Decimal),
		prices:     make(map[string]decimal.Decimal),
	}

	first := domain.MonthStart(ordered[0].Date)
	last := domain.MonthStart(now)

	points := make([]domain.EvolutionPoint, 0, 12)
	for anchor := first; !anchor.After(last); anchor = anchor.AddDate(0, 1, 0) {
		open := anchor.Equal(last)

		cutoff := anchor
		if open {
			cutoff = domain.Day(now)
		}
		r.advance(cutoff)

		if r.cursor == 0 {
			continue
		}

		assets, err := e.assetsValue(ctx, r, anchor, open)
		if err != nil {
			return nil, err
		}

		point := domain.EvolutionPoint{
			Date:            anchor,
			TotalValue:      r.cash.Add(assets),
			InvestedCapital: r.invested,
			CashBalance:     r.cash,
		}
		if r.invested.IsPositive() {
			point.CumulativeReturnAmount = point.TotalValue.Add(r.withdrawals).Sub(r.invested)
			point.CumulativeReturn = point.CumulativeReturnAmount.DivRound(r.invested, 8)
		}
		points = append(points, point)
	}

	return points, nil
}

// advance applies every transaction dated <= cutoff, exactly once.
func (r *run) advance(cutoff time.Time) {
	for r.cursor < len(r.txs) && !r.txs[r.cursor].Date.After(cutoff) {
		tx := r.txs[r.cursor]
		r.cursor++

		r.cash = r.cash.Add(tx.SignedAmount())
		if tx.Type.AffectsInvestedCapital() {
			r.invested = r.invested.Add(tx.Amount)
		}
		if tx.Type.IsWithdrawal() {
			r.withdrawals = r.withdrawals.Add(tx.Amount)
		}
		if sign := tx.Type.QuantitySign(); sign != 0 {
			q := r.quantities[tx.Ticker]
			if sign > 0 {
				r.quantities[tx.Ticker] = q.Add(tx.Quantity)
			} else {
				r.quantities[tx.Ticker] = q.Sub(tx.Quantity)
			}
		}
	}
}

// assetsValue prices the current quantities at the anchor. For the open
// month the price date is "now" (latest quote); closed months price at the
// anchor's own date.
func (e *Engine) assetsValue(ctx context.Context, r *run, anchor time.Time, open bool) (decimal.Decimal, error) {
	tickers := make([]string, 0, len(r.quantities))
	for ticker, quantity := range r.quantities {
		if quantity.IsPositive() {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)

	total := decimal.Zero
	for _, ticker := range tickers {
		price, err := e.price(ctx, r, ticker, anchor, open)
		if err != nil {
			if ctx.Err() != nil {
				return decimal.Zero, ctx.Err()
			}
			e.log.Warn().
				Str("ticker", ticker).
				Str("anchor", anchor.Format("2006-01-02")).
				Err(err).
				Msg("No price for anchor, excluding ticker from valuation")
			continue
		}
		total = total.Add(r.quantities[ticker].Mul(price))
	}
	return total, nil
}

func (e *Engine) price(ctx context.Context, r *run, ticker string, anchor time.Time, open bool) (decimal.Decimal, error) {
	key := ticker + "@latest"
	if !open {
		key = ticker + "@" + anchor.Format("2006-01-02")
	}
	if price, ok := r.prices[key]; ok {
		return price, nil
	}

	var (
		price decimal.Decimal
		err   error
	)
	if open {
		price, err = e.Oracle.GetLatestPrice(ctx, ticker)
	} else {
		price, err = e.Oracle.GetPrice(ctx, ticker, anchor)
	}
	if err != nil {
		return decimal.Zero, err
	}

	r.prices[key] = price
	return price, nil
}
