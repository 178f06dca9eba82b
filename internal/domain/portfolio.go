package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultWeightTolerance is the accepted deviation of the target weight sum
// from 1.0. Weight sums outside [1-tol, 1+tol] are rejected.
var DefaultWeightTolerance = decimal.NewFromFloat(0.001)

// TargetAllocation is the desired weight of one ticker in a portfolio.
type TargetAllocation struct {
	Ticker string
	Weight decimal.Decimal // fraction of total, 0..1
}

// PortfolioConfig holds the target allocation and rebalance cadence of a
// portfolio. Owned by the portfolio; mutated only through explicit
// reconfiguration, never by the engine.
type PortfolioConfig struct {
	PortfolioID     uuid.UUID
	Name            string
	Targets         []TargetAllocation
	RebalanceMonths int // cadence in months, 0 = on demand only
}

// TargetWeight returns the target weight for a ticker, zero if absent.
func (c *PortfolioConfig) TargetWeight(ticker string) decimal.Decimal {
	for _, t := range c.Targets {
		if t.Ticker == ticker {
			return t.Weight
		}
	}
	return decimal.Zero
}

// Validate ensures the config adheres to domain rules.
// CRITICAL: target weights must sum to 1.0 within tolerance; a config that
// fails this is rejected before the rebalancing planner ever runs.
func (c *PortfolioConfig) Validate() error {
	if c.PortfolioID == uuid.Nil {
		return fmt.Errorf("%w: config must belong to a portfolio", ErrInvalidAllocation)
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: no target allocations", ErrInvalidAllocation)
	}

	seen := make(map[string]bool, len(c.Targets))
	sum := decimal.Zero
	for _, t := range c.Targets {
		if t.Ticker == "" {
			return fmt.Errorf("%w: target allocation without ticker", ErrInvalidAllocation)
		}
		if seen[t.Ticker] {
			return fmt.Errorf("%w: duplicate target for %s", ErrInvalidAllocation, t.Ticker)
		}
		seen[t.Ticker] = true

		if t.Weight.LessThanOrEqual(decimal.Zero) || t.Weight.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: weight for %s must be in (0, 1], got %s",
				ErrInvalidAllocation, t.Ticker, t.Weight)
		}
		sum = sum.Add(t.Weight)
	}

	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(DefaultWeightTolerance) {
		return fmt.Errorf("%w: weights sum to %s, expected 1.0", ErrInvalidAllocation, sum)
	}

	return nil
}
