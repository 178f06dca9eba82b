package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// ListByPortfolio retrieves all confirmed transactions for a portfolio.
// The seq column preserves insertion order for same-day transactions, which
// is what keeps synthesized credits in front of the purchases they fund.
func (r *ledgerRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT id, portfolio_id, date, type, ticker, quantity, price, amount,
		       cash_balance_before, cash_balance_after, system_generated, rationale
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY date, seq
	`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		var (
			tx                                                    domain.Transaction
			quantity, price, amount, balanceBefore, balanceAfter string
		)
		if err := rows.Scan(
			&tx.ID, &tx.PortfolioID, &tx.Date, &tx.Type, &tx.Ticker,
			&quantity, &price, &amount, &balanceBefore, &balanceAfter,
			&tx.SystemGenerated, &tx.Rationale,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid quantity for transaction %s: %w", tx.ID, err)
		}
		if tx.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price for transaction %s: %w", tx.ID, err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount for transaction %s: %w", tx.ID, err)
		}
		if tx.CashBalanceBefore, err = decimal.NewFromString(balanceBefore); err != nil {
			return nil, fmt.Errorf("invalid cash balance for transaction %s: %w", tx.ID, err)
		}
		if tx.CashBalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
			return nil, fmt.Errorf("invalid cash balance for transaction %s: %w", tx.ID, err)
		}

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}

// CreateBatch persists a reconciled batch inside one database transaction
func (r *ledgerRepository) CreateBatch(ctx context.Context, txs []*domain.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertQuery := `
		INSERT INTO transactions (id, portfolio_id, date, type, ticker, quantity, price, amount,
		                          cash_balance_before, cash_balance_after, system_generated, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for _, tx := range txs {
		_, err = dbTx.ExecContext(ctx, insertQuery,
			tx.ID,
			tx.PortfolioID,
			tx.Date,
			string(tx.Type),
			tx.Ticker,
			tx.Quantity.String(),
			tx.Price.String(),
			tx.Amount.String(),
			tx.CashBalanceBefore.String(),
			tx.CashBalanceAfter.String(),
			tx.SystemGenerated,
			tx.Rationale,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
