package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EvolutionPoint is one monthly snapshot of portfolio state, anchored at the
// first of the month (UTC). Points for closed months are immutable once
// computed; the open (current) month is recomputed on every request.
type EvolutionPoint struct {
	Date                   time.Time
	TotalValue             decimal.Decimal
	InvestedCapital        decimal.Decimal
	CashBalance            decimal.Decimal
	CumulativeReturn       decimal.Decimal // fraction of invested capital
	CumulativeReturnAmount decimal.Decimal // money gain over invested capital
}

// DrawdownPoint is the decline from the running historical peak at one
// evolution anchor. Drawdown is a fraction of the peak and is always <= 0.
type DrawdownPoint struct {
	Date     time.Time
	Value    decimal.Decimal
	Peak     decimal.Decimal
	Drawdown decimal.Decimal
}

// DrawdownPeriod is a contiguous stretch below the running peak.
// End is nil while the period is ongoing; Depth is the deepest decline
// reached, as a positive fraction of the peak, and only grows while open.
type DrawdownPeriod struct {
	Start     time.Time
	End       *time.Time
	Depth     decimal.Decimal
	Recovered bool
}
