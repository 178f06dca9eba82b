package drawdown

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// Defaults for the analyzer parameters. Declines smaller than Epsilon are
// noise, not drawdown periods; computed maximums above MaxPlausible mark the
// whole result as untrustworthy (typically an asset without real price
// history feeding near-zero valuations).
var (
	DefaultEpsilon      = decimal.NewFromFloat(0.0001) // 0.01%
	DefaultMaxPlausible = decimal.NewFromFloat(0.95)
)

// Result is the drawdown history of an evolution series.
type Result struct {
	Series      []domain.DrawdownPoint
	Periods     []domain.DrawdownPeriod
	MaxDrawdown decimal.Decimal // deepest decline, positive fraction of peak
}

// Analyzer computes running-peak drawdowns over an evolution series.
// It is a pure function of its input, safe to invoke concurrently.
type Analyzer struct {
	Epsilon      decimal.Decimal
	MaxPlausible decimal.Decimal

	log zerolog.Logger
}

// NewAnalyzer creates a new Analyzer instance with default parameters
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{
		Epsilon:      DefaultEpsilon,
		MaxPlausible: DefaultMaxPlausible,
		log:          log.With().Str("component", "drawdown").Logger(),
	}
}

// Analyze runs the running-peak state machine over the series values.
// Logic:
//   - peak starts at the first value
//   - value > peak: raise the peak and close any open period as recovered
//   - otherwise drawdown = (peak - value) / peak; beyond Epsilon it belongs
//     to an open (or newly opened) period whose depth only grows
//
// Validation gate: points with value <= 0 are data errors, excluded before
// they can poison the peak; fewer than 2 usable points, or a maximum
// drawdown beyond MaxPlausible, yields ErrUntrustworthyDrawdown instead of
// an implausible figure.
func (a *Analyzer) Analyze(points []domain.EvolutionPoint) (*Result, error) {
	usable := make([]domain.EvolutionPoint, 0, len(points))
	for _, p := range points {
		if !p.TotalValue.IsPositive() {
			a.log.Warn().
				Str("date", p.Date.Format("2006-01-02")).
				Str("value", p.TotalValue.String()).
				Msg("Excluding non-positive value from drawdown analysis")
			continue
		}
		usable = append(usable, p)
	}

	if len(usable) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 positive-valued points, got %d",
			domain.ErrUntrustworthyDrawdown, len(usable))
	}

	result := &Result{Series: make([]domain.DrawdownPoint, 0, len(usable))}

	peak := usable[0].TotalValue
	var open *domain.DrawdownPeriod

	for i, p := range usable {
		value := p.TotalValue

		if i == 0 || value.GreaterThan(peak) {
			if value.GreaterThan(peak) {
				peak = value
			}
			if open != nil {
				end := p.Date
				open.End = &end
				open.Recovered = true
				result.Periods = append(result.Periods, *open)
				open = nil
			}
			result.Series = append(result.Series, domain.DrawdownPoint{
				Date: p.Date, Value: value, Peak: peak,
			})
			continue
		}

		depth := peak.Sub(value).DivRound(peak, 8)
		result.Series = append(result.Series, domain.DrawdownPoint{
			Date:     p.Date,
			Value:    value,
			Peak:     peak,
			Drawdown: depth.Neg(),
		})

		if depth.GreaterThan(a.Epsilon) {
			if open == nil {
				open = &domain.DrawdownPeriod{Start: p.Date, Depth: depth}
			} else if depth.GreaterThan(open.Depth) {
				open.Depth = depth
			}
		}

		if depth.GreaterThan(result.MaxDrawdown) {
			result.MaxDrawdown = depth
		}
	}

	if open != nil {
		result.Periods = append(result.Periods, *open)
	}

	if result.MaxDrawdown.GreaterThan(a.MaxPlausible) {
		a.log.Warn().
			Str("max_drawdown", result.MaxDrawdown.String()).
			Msg("Computed drawdown exceeds plausibility ceiling, reporting unavailable")
		return nil, fmt.Errorf("%w: computed maximum %s exceeds %s",
			domain.ErrUntrustworthyDrawdown, result.MaxDrawdown, a.MaxPlausible)
	}

	return result, nil
}
