package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of a ledger transaction
type TransactionType string

const (
	TransactionTypeCashCredit     TransactionType = "CASH_CREDIT"
	TransactionTypeCashDebit      TransactionType = "CASH_DEBIT"
	TransactionTypeBuy            TransactionType = "BUY"
	TransactionTypeSellRebalance  TransactionType = "SELL_REBALANCE"
	TransactionTypeBuyRebalance   TransactionType = "BUY_REBALANCE"
	TransactionTypeSellWithdrawal TransactionType = "SELL_WITHDRAWAL"
	TransactionTypeDividend       TransactionType = "DIVIDEND"
)

// RequiresTicker reports whether this transaction type references an instrument.
// Pure cash moves (CASH_CREDIT, CASH_DEBIT) carry no ticker.
func (t TransactionType) RequiresTicker() bool {
	switch t {
	case TransactionTypeBuy, TransactionTypeSellRebalance, TransactionTypeBuyRebalance,
		TransactionTypeSellWithdrawal, TransactionTypeDividend:
		return true
	}
	return false
}

// CashSign returns +1 if the transaction type increases the cash balance,
// -1 if it decreases it.
func (t TransactionType) CashSign() int {
	switch t {
	case TransactionTypeCashCredit, TransactionTypeSellRebalance, TransactionTypeDividend:
		return 1
	default:
		return -1
	}
}

// QuantitySign returns the effect on the holding's quantity:
// +1 for purchases, -1 for sales, 0 for everything else.
func (t TransactionType) QuantitySign() int {
	switch t {
	case TransactionTypeBuy, TransactionTypeBuyRebalance:
		return 1
	case TransactionTypeSellRebalance, TransactionTypeSellWithdrawal:
		return -1
	}
	return 0
}

// IsWithdrawal reports whether the amount leaves the portfolio.
// Withdrawals count in total-return accounting but never as negative investment.
func (t TransactionType) IsWithdrawal() bool {
	return t == TransactionTypeCashDebit || t == TransactionTypeSellWithdrawal
}

// IsPurchase reports whether the transaction spends cash on an instrument.
// Purchases are eligible for automatic cash-credit synthesis on shortfall.
func (t TransactionType) IsPurchase() bool {
	return t == TransactionTypeBuy || t == TransactionTypeBuyRebalance
}

// AffectsInvestedCapital reports whether the amount counts as contributed
// capital. Only CASH_CREDIT does; dividends and sales never do.
func (t TransactionType) AffectsInvestedCapital() bool {
	return t == TransactionTypeCashCredit
}

func (t TransactionType) valid() bool {
	switch t {
	case TransactionTypeCashCredit, TransactionTypeCashDebit, TransactionTypeBuy,
		TransactionTypeSellRebalance, TransactionTypeBuyRebalance,
		TransactionTypeSellWithdrawal, TransactionTypeDividend:
		return true
	}
	return false
}

// Transaction represents a single ledger entry for a portfolio.
// Once confirmed it is immutable: corrections are new transactions.
type Transaction struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	Date        time.Time // UTC, day precision
	Type        TransactionType
	Ticker      string          // empty for pure cash moves
	Quantity    decimal.Decimal // zero for pure cash moves
	Price       decimal.Decimal // unit price, zero for pure cash moves
	Amount      decimal.Decimal // ABSOLUTE VALUE (always positive)

	// Running balances stamped during reconciliation.
	CashBalanceBefore decimal.Decimal
	CashBalanceAfter  decimal.Decimal

	// SystemGenerated marks transactions synthesized by the reconciler
	// (e.g. a CASH_CREDIT inserted to fund a BUY shortfall).
	SystemGenerated bool
	Rationale       string
}

// SignedAmount returns the amount with the sign of its cash effect.
func (tx *Transaction) SignedAmount() decimal.Decimal {
	if tx.Type.CashSign() < 0 {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

// NewCashCredit creates a deposit transaction (increases cash and invested capital).
func NewCashCredit(portfolioID uuid.UUID, date time.Time, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		Date:        Day(date),
		Type:        TransactionTypeCashCredit,
		Amount:      amount,
	}
}

// NewCashDebit creates a withdrawal transaction (decreases cash).
func NewCashDebit(portfolioID uuid.UUID, date time.Time, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		Date:        Day(date),
		Type:        TransactionTypeCashDebit,
		Amount:      amount,
	}
}

// NewDividend creates a dividend transaction (increases cash only).
func NewDividend(portfolioID uuid.UUID, date time.Time, ticker string, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		Date:        Day(date),
		Type:        TransactionTypeDividend,
		Ticker:      ticker,
		Amount:      amount,
	}
}

// NewTrade creates an instrument transaction of the given type.
// The amount is derived as quantity * price.
func NewTrade(portfolioID uuid.UUID, date time.Time, txType TransactionType, ticker string, quantity, price decimal.Decimal) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		Date:        Day(date),
		Type:        txType,
		Ticker:      ticker,
		Quantity:    quantity,
		Price:       price,
		Amount:      quantity.Mul(price),
	}
}

// Validate ensures the transaction adheres to domain rules.
// Per-type required fields are enforced here, not via optional-everything
// checks downstream.
func (tx *Transaction) Validate() error {
	if !tx.Type.valid() {
		return errors.New("unknown transaction type: " + string(tx.Type))
	}

	if tx.PortfolioID == uuid.Nil {
		return errors.New("transaction must belong to a portfolio")
	}

	if tx.Date.IsZero() {
		return errors.New("transaction date is required")
	}

	if tx.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction amount must be positive (absolute value)")
	}

	if tx.Type.RequiresTicker() {
		if tx.Ticker == "" {
			return errors.New(string(tx.Type) + " transaction requires a ticker")
		}
	} else if tx.Ticker != "" {
		return errors.New(string(tx.Type) + " transaction must not carry a ticker")
	}

	// Trades must be internally consistent: amount = quantity * price.
	if tx.Type.QuantitySign() != 0 {
		if tx.Quantity.LessThanOrEqual(decimal.Zero) {
			return errors.New(string(tx.Type) + " transaction quantity must be positive")
		}
		if tx.Price.LessThanOrEqual(decimal.Zero) {
			return errors.New(string(tx.Type) + " transaction price must be positive")
		}
		if !tx.Quantity.Mul(tx.Price).Equal(tx.Amount) {
			return errors.New(string(tx.Type) + " transaction amount must equal quantity * price")
		}
	}

	return nil
}

// Day truncates a timestamp to day precision in UTC.
// Ledger dates always use this form to avoid timezone day-shift.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first-of-month anchor date for a timestamp, in UTC.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
