package performance

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// MonthlyReturn is the time-weighted return of one month transition.
type MonthlyReturn struct {
	Date   time.Time // anchor of the month the return lands on
	Return decimal.Decimal
}

// Summary aggregates the return and risk statistics of an evolution series.
// VolatilityMonthly and VolatilityAnnualized are distinct figures and must
// never be presented interchangeably. WorstMonth is nil when only one
// monthly return exists, not duplicated from BestMonth.
type Summary struct {
	TotalInvested        decimal.Decimal
	TotalWithdrawn       decimal.Decimal
	TotalReturn          decimal.Decimal
	TotalReturnAmount    decimal.Decimal
	MonthlyReturns       []MonthlyReturn
	VolatilityMonthly    decimal.Decimal
	VolatilityAnnualized decimal.Decimal
	BestMonth            *MonthlyReturn
	WorstMonth           *MonthlyReturn
}

// MonthlyReturns computes the time-weighted return between each pair of
// consecutive evolution points.
// Logic, for values V0 -> V1 and invested capital I0 -> I1:
//   - dI = 0:  return = (V1 - V0) / V0
//   - dI != 0: expected = V0 + dI; return = (V1 - expected) / expected
//
// Adjusting the basis by dI keeps a deposit or withdrawal from being counted
// as performance. This is an approximation: geometrically chaining these
// returns will not exactly reproduce the independently computed cumulative
// return, and that drift is accepted.
func MonthlyReturns(points []domain.EvolutionPoint) []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(points))

	for i := 1; i < len(points); i++ {
		v0 := points[i-1].TotalValue
		v1 := points[i].TotalValue
		dI := points[i].InvestedCapital.Sub(points[i-1].InvestedCapital)

		basis := v0.Add(dI)
		if !basis.IsPositive() {
			continue
		}

		returns = append(returns, MonthlyReturn{
			Date:   points[i].Date,
			Return: v1.Sub(basis).DivRound(basis, 8),
		})
	}

	return returns
}

// Summarize computes the full statistics for an evolution series and the
// ledger it was derived from.
//
// The headline total return uses the independent formula
// (currentValue + totalWithdrawals - totalInvested) / totalInvested:
// dividends retained in cash are already inside currentValue and dividends
// withdrawn are inside totalWithdrawals, so each is counted exactly once.
func Summarize(points []domain.EvolutionPoint, txs []*domain.Transaction) (*Summary, error) {
	if len(points) == 0 {
		return nil, errors.New("evolution series is empty")
	}

	summary := &Summary{MonthlyReturns: MonthlyReturns(points)}

	for _, tx := range txs {
		if tx.Type.AffectsInvestedCapital() {
			summary.TotalInvested = summary.TotalInvested.Add(tx.Amount)
		}
		if tx.Type.IsWithdrawal() {
			summary.TotalWithdrawn = summary.TotalWithdrawn.Add(tx.Amount)
		}
	}

	if summary.TotalInvested.IsPositive() {
		currentValue := points[len(points)-1].TotalValue
		summary.TotalReturnAmount = currentValue.Add(summary.TotalWithdrawn).Sub(summary.TotalInvested)
		summary.TotalReturn = summary.TotalReturnAmount.DivRound(summary.TotalInvested, 8)
	}

	summary.VolatilityMonthly = volatility(summary.MonthlyReturns)
	summary.VolatilityAnnualized = summary.VolatilityMonthly.
		Mul(decimal.NewFromFloat(math.Sqrt(12))).Round(8)

	summary.BestMonth, summary.WorstMonth = bestAndWorst(summary.MonthlyReturns)

	return summary, nil
}

// volatility is the population standard deviation of the monthly returns.
func volatility(returns []MonthlyReturn) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	xs := make([]float64, len(returns))
	for i, r := range returns {
		xs[i] = r.Return.InexactFloat64()
	}

	return decimal.NewFromFloat(stat.PopStdDev(xs, nil)).Round(8)
}

// bestAndWorst picks the extreme months. With a single return the worst
// month is reported as absent rather than duplicated from the best.
func bestAndWorst(returns []MonthlyReturn) (best, worst *MonthlyReturn) {
	if len(returns) == 0 {
		return nil, nil
	}

	b, w := returns[0], returns[0]
	for _, r := range returns[1:] {
		if r.Return.GreaterThan(b.Return) {
			b = r
		}
		if r.Return.LessThan(w.Return) {
			w = r
		}
	}

	if len(returns) == 1 {
		return &b, nil
	}
	return &b, &w
}
