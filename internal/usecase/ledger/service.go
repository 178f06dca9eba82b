package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// Reconciliation is the result of replaying a submitted batch against the
// running cash balance. Transactions holds the full ordered draft list with
// balances stamped, including any synthesized credits; Synthesized points at
// the credits the reconciler inserted, each carrying a human-readable
// rationale. Nothing is persisted until Confirm.
type Reconciliation struct {
	Transactions []*domain.Transaction
	Synthesized  []*domain.Transaction
}

// Service handles ledger submission and confirmation for portfolios.
type Service struct {
	LedgerRepo domain.LedgerRepository

	log zerolog.Logger
}

// NewService creates a new ledger Service instance
func NewService(ledgerRepo domain.LedgerRepository, log zerolog.Logger) *Service {
	return &Service{
		LedgerRepo: ledgerRepo,
		log:        log.With().Str("component", "ledger").Logger(),
	}
}

// SubmitBatch reconciles a batch of user-intended transactions against the
// confirmed ledger.
// Logic:
//  1. Validate every draft
//  2. Sort drafts chronologically (stable: same-day drafts keep submission order)
//  3. Replay strictly in order, interleaved with the confirmed ledger, so a
//     backdated draft sees the cash balance at its own chronological
//     position rather than the ledger's closing balance:
//     - A BUY whose amount exceeds the running balance gets a CASH_CREDIT
//       draft for the shortfall (rounded up to the nearest currency unit)
//       inserted immediately before it, tagged system-generated
//     - A withdrawal that would drive cash negative is rejected with
//       ErrInsufficientCash: synthesizing its funding would be meaningless,
//       and deposits dated after the withdrawal cannot fund it
//  4. Stamp CashBalanceBefore/After on every draft
//
// Each synthesized credit reflects the balance at that point in the replay,
// not the final balance, so N requested transactions may become N+k drafts.
func (s *Service) SubmitBatch(ctx context.Context, portfolioID uuid.UUID, drafts []*domain.Transaction) (*Reconciliation, error) {
	if len(drafts) == 0 {
		return nil, errors.New("batch must contain at least one transaction")
	}

	for _, draft := range drafts {
		if draft.PortfolioID == uuid.Nil {
			draft.PortfolioID = portfolioID
		}
		if draft.PortfolioID != portfolioID {
			return nil, errors.New("all transactions in a batch must belong to the same portfolio")
		}
		if err := draft.Validate(); err != nil {
			return nil, err
		}
	}

	confirmed, err := s.LedgerRepo.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	sorted := make([]*domain.Transaction, len(drafts))
	copy(sorted, drafts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	rec := &Reconciliation{Transactions: make([]*domain.Transaction, 0, len(sorted))}

	balance := decimal.Zero
	applied := 0

	for _, draft := range sorted {
		// Confirmed transactions dated on or before the draft apply first.
		for applied < len(confirmed) && !confirmed[applied].Date.After(draft.Date) {
			balance = balance.Add(confirmed[applied].SignedAmount())
			applied++
		}

		if draft.Type.CashSign() < 0 && draft.Amount.GreaterThan(balance) {
			shortfall := draft.Amount.Sub(balance)

			if !draft.Type.IsPurchase() {
				return nil, fmt.Errorf("%w: %s of %s on %s exceeds cash balance %s",
					domain.ErrInsufficientCash, draft.Type, draft.Amount,
					draft.Date.Format("2006-01-02"), balance)
			}

			credit := s.synthesizeCredit(draft, shortfall, balance)
			balance = s.apply(credit, balance)
			rec.Transactions = append(rec.Transactions, credit)
			rec.Synthesized = append(rec.Synthesized, credit)

			s.log.Info().
				Str("portfolio", portfolioID.String()).
				Str("ticker", draft.Ticker).
				Str("credit", credit.Amount.String()).
				Str("date", credit.Date.Format("2006-01-02")).
				Msg("Synthesized cash credit for purchase shortfall")
		}

		balance = s.apply(draft, balance)
		rec.Transactions = append(rec.Transactions, draft)
	}

	return rec, nil
}

// Confirm persists a reconciled batch. Confirmation locks the transactions
// into replay order; they are never mutated in place afterwards.
func (s *Service) Confirm(ctx context.Context, rec *Reconciliation) error {
	if rec == nil || len(rec.Transactions) == 0 {
		return errors.New("nothing to confirm")
	}
	if err := s.LedgerRepo.CreateBatch(ctx, rec.Transactions); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}
	return nil
}

// HoldingsAt derives the holdings from the ledger prefix up to cutoff
// (inclusive).
func (s *Service) HoldingsAt(ctx context.Context, portfolioID uuid.UUID, cutoff time.Time) ([]domain.Holding, error) {
	txs, err := s.ledgerPrefix(ctx, portfolioID, cutoff)
	if err != nil {
		return nil, err
	}
	return domain.BuildHoldings(txs), nil
}

// CashBalanceAt derives the cash balance from the ledger prefix up to cutoff
// (inclusive).
func (s *Service) CashBalanceAt(ctx context.Context, portfolioID uuid.UUID, cutoff time.Time) (decimal.Decimal, error) {
	txs, err := s.ledgerPrefix(ctx, portfolioID, cutoff)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(tx.SignedAmount())
	}
	return balance, nil
}

func (s *Service) ledgerPrefix(ctx context.Context, portfolioID uuid.UUID, cutoff time.Time) ([]*domain.Transaction, error) {
	txs, err := s.LedgerRepo.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	prefix := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Date.After(cutoff) {
			prefix = append(prefix, tx)
		}
	}
	return prefix, nil
}

// synthesizeCredit builds the CASH_CREDIT draft that funds a purchase
// shortfall. The credit is dated on the purchase's date so it lands
// immediately before it in replay order, and is rounded up to the nearest
// currency unit.
func (s *Service) synthesizeCredit(purchase *domain.Transaction, shortfall, balance decimal.Decimal) *domain.Transaction {
	credit := domain.NewCashCredit(purchase.PortfolioID, purchase.Date, shortfall.Ceil())
	credit.SystemGenerated = true
	credit.Rationale = fmt.Sprintf(
		"Deposited %s to cover the purchase of %s %s on %s: cash balance was %s, %s required",
		credit.Amount, purchase.Quantity, purchase.Ticker,
		purchase.Date.Format("2006-01-02"), balance, purchase.Amount)
	return credit
}

func (s *Service) apply(tx *domain.Transaction, balance decimal.Decimal) decimal.Decimal {
	tx.CashBalanceBefore = balance
	tx.CashBalanceAfter = balance.Add(tx.SignedAmount())
	return tx.CashBalanceAfter
}
