// Package jobs holds the out-of-band background processes. They run at
// lower priority and must never block a valuation request: when fresh
// history is missing the engine degrades per-ticker instead of waiting.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// Backfill incrementally fills the local price store with month-start
// closes for every ticker the system knows about. It is resumable: the
// cursor row records the last completed (ticker, month) so an interrupted
// run picks up where it stopped.
type Backfill struct {
	LedgerRepo    domain.LedgerRepository
	PortfolioRepo domain.PortfolioRepository
	Store         domain.PriceStore
	Oracle        domain.PriceOracle

	// Throttle spaces out remote oracle calls. The oracle is rate-limited
	// and this job is the lowest-priority consumer of it.
	Throttle time.Duration

	log zerolog.Logger
}

// NewBackfill creates a new Backfill job
func NewBackfill(
	ledgerRepo domain.LedgerRepository,
	portfolioRepo domain.PortfolioRepository,
	store domain.PriceStore,
	oracle domain.PriceOracle,
	log zerolog.Logger,
) *Backfill {
	return &Backfill{
		LedgerRepo:    ledgerRepo,
		PortfolioRepo: portfolioRepo,
		Store:         store,
		Oracle:        oracle,
		Throttle:      500 * time.Millisecond,
		log:           log.With().Str("component", "backfill").Logger(),
	}
}

// Schedule registers the job on a cron runner.
func (b *Backfill) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := b.Run(ctx); err != nil {
			b.log.Error().Err(err).Msg("Backfill run failed")
		}
	})
}

// Run walks every known ticker and fetches the missing month-start closes
// into the price store. Per-ticker failures are logged and skipped; only
// infrastructure failures abort the run.
func (b *Backfill) Run(ctx context.Context) error {
	work, err := b.collect(ctx)
	if err != nil {
		return err
	}
	if len(work) == 0 {
		return nil
	}

	cursor, err := b.Store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to read backfill cursor: %w", err)
	}

	for _, item := range work {
		if item.key() <= cursor {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.fill(ctx, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warn().
				Str("ticker", item.ticker).
				Str("month", item.month.Format("2006-01")).
				Err(err).
				Msg("Skipping month")
		}

		if err := b.Store.SaveCursor(ctx, item.key()); err != nil {
			return fmt.Errorf("failed to save backfill cursor: %w", err)
		}
	}

	// A completed pass resets the cursor so the next run picks up months
	// that have closed since.
	if err := b.Store.SaveCursor(ctx, ""); err != nil {
		return fmt.Errorf("failed to reset backfill cursor: %w", err)
	}

	b.log.Info().Int("months", len(work)).Msg("Backfill pass completed")
	return nil
}

type workItem struct {
	ticker string
	month  time.Time
}

func (w workItem) key() string {
	return w.ticker + "|" + w.month.Format("2006-01")
}

// collect builds the sorted list of (ticker, closed month) pairs needed by
// any portfolio's ledger.
func (b *Backfill) collect(ctx context.Context) ([]workItem, error) {
	configs, err := b.PortfolioRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	currentMonth := domain.MonthStart(time.Now())
	firstMonth := make(map[string]time.Time)

	for _, cfg := range configs {
		txs, err := b.LedgerRepo.ListByPortfolio(ctx, cfg.PortfolioID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger for %s: %w", cfg.PortfolioID, err)
		}
		for _, tx := range txs {
			if tx.Ticker == "" {
				continue
			}
			month := domain.MonthStart(tx.Date)
			if known, ok := firstMonth[tx.Ticker]; !ok || month.Before(known) {
				firstMonth[tx.Ticker] = month
			}
		}
	}

	work := make([]workItem, 0)
	for ticker, first := range firstMonth {
		for month := first; month.Before(currentMonth); month = month.AddDate(0, 1, 0) {
			work = append(work, workItem{ticker: ticker, month: month})
		}
	}
	sort.Slice(work, func(i, j int) bool {
		return strings.Compare(work[i].key(), work[j].key()) < 0
	})

	return work, nil
}

func (b *Backfill) fill(ctx context.Context, item workItem) error {
	_, err := b.Store.GetPrice(ctx, item.ticker, item.month)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if b.Throttle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Throttle):
		}
	}

	price, err := b.Oracle.GetPrice(ctx, item.ticker, item.month)
	if err != nil {
		return err
	}
	return b.Store.SavePrice(ctx, item.ticker, item.month, price)
}
