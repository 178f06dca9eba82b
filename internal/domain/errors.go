package domain

import "errors"

// Sentinel errors surfaced by the engine. Callers match them with errors.Is;
// call sites wrap them with fmt.Errorf("...: %w", ...) to carry the
// ticker/date/amount context needed to diagnose.
var (
	// ErrInsufficientCash is raised only for withdrawal-type transactions
	// that would drive the cash balance negative. Never auto-resolved.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInvalidAllocation is raised when target weights do not sum to ~1.0.
	ErrInvalidAllocation = errors.New("invalid target allocation")

	// ErrMissingPriceData is raised when the price oracle cannot price a
	// ticker for a date. The affected ticker is excluded from that anchor's
	// valuation; the run is never aborted for it.
	ErrMissingPriceData = errors.New("missing price data")

	// ErrUntrustworthyDrawdown signals that the drawdown result failed the
	// plausibility gate and must be reported as unavailable, not as a number.
	ErrUntrustworthyDrawdown = errors.New("drawdown result is untrustworthy")

	// ErrRebalancingContradiction is raised when a ticker would appear in
	// both the sell set and the buy set of one planning run. This indicates
	// an engine bug and must fail loudly.
	ErrRebalancingContradiction = errors.New("contradictory rebalancing drafts")

	// ErrNotFound is returned by repositories for missing aggregates.
	ErrNotFound = errors.New("not found")
)
