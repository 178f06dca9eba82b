package performance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func point(date time.Time, value, invested int64) domain.EvolutionPoint {
	return domain.EvolutionPoint{
		Date:            date,
		TotalValue:      decimal.NewFromInt(value),
		InvestedCapital: decimal.NewFromInt(invested),
	}
}

func TestMonthlyReturns_DepositNotCountedAsPerformance(t *testing.T) {
	// Value goes 1000 -> 1600 but 500 of that was a fresh deposit.
	// Expected basis = 1000 + 500 = 1500, so the return is 100/1500.
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1600, 1500),
	}

	returns := MonthlyReturns(points)
	require.Len(t, returns, 1)
	assert.Equal(t, day(2026, 2, 1), returns[0].Date)
	assert.True(t, returns[0].Return.Equal(decimal.RequireFromString("0.06666667")))
}

func TestMonthlyReturns_NoFlow(t *testing.T) {
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1100, 1000),
		point(day(2026, 3, 1), 990, 1000),
	}

	returns := MonthlyReturns(points)
	require.Len(t, returns, 2)
	assert.True(t, returns[0].Return.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, returns[1].Return.Equal(decimal.RequireFromString("-0.1")))
}

func TestMonthlyReturns_SkipsNonPositiveBasis(t *testing.T) {
	// A withdrawal larger than the previous value makes the basis
	// non-positive; that transition produces no return instead of a
	// nonsensical figure.
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 100, 1000),
		point(day(2026, 2, 1), 50, 800), // basis = 100 + (800-1000) = -100
		point(day(2026, 3, 1), 55, 800),
	}

	returns := MonthlyReturns(points)
	require.Len(t, returns, 1)
	assert.Equal(t, day(2026, 3, 1), returns[0].Date)
}

func TestSummarize_HeadlineReturnIndependentOfMonthlyChain(t *testing.T) {
	portfolioID := uuid.New()

	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1100, 1000),
		point(day(2026, 3, 1), 1320, 1000),
	}
	txs := []*domain.Transaction{
		domain.NewCashCredit(portfolioID, day(2026, 1, 5), decimal.NewFromInt(1000)),
	}

	summary, err := Summarize(points, txs)
	require.NoError(t, err)

	// (1320 + 0 - 1000) / 1000 = 0.32
	assert.True(t, summary.TotalInvested.Equal(decimal.NewFromInt(1000)))
	assert.True(t, summary.TotalWithdrawn.IsZero())
	assert.True(t, summary.TotalReturnAmount.Equal(decimal.NewFromInt(320)))
	assert.True(t, summary.TotalReturn.Equal(decimal.RequireFromString("0.32")))
}

func TestSummarize_WithdrawalsCountInTotalReturn(t *testing.T) {
	portfolioID := uuid.New()

	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 900, 1000),
	}
	txs := []*domain.Transaction{
		domain.NewCashCredit(portfolioID, day(2026, 1, 5), decimal.NewFromInt(1000)),
		domain.NewCashDebit(portfolioID, day(2026, 1, 20), decimal.NewFromInt(200)),
		domain.NewTrade(portfolioID, day(2026, 1, 25), domain.TransactionTypeSellWithdrawal,
			"PETR4", decimal.NewFromInt(2), decimal.NewFromInt(50)),
	}

	summary, err := Summarize(points, txs)
	require.NoError(t, err)

	// Withdrawn = 200 cash + 100 sold out = 300.
	// (900 + 300 - 1000) / 1000 = 0.2
	assert.True(t, summary.TotalWithdrawn.Equal(decimal.NewFromInt(300)))
	assert.True(t, summary.TotalReturn.Equal(decimal.RequireFromString("0.2")))
}

func TestSummarize_RetainedDividendCountedOnce(t *testing.T) {
	portfolioID := uuid.New()

	// 10000 deposited, fully invested, plus a 300 dividend kept in cash.
	// The dividend is already inside the current value: it must not also
	// inflate invested capital or withdrawals.
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 10300, 10000),
	}
	txs := []*domain.Transaction{
		domain.NewCashCredit(portfolioID, day(2026, 1, 5), decimal.NewFromInt(10000)),
		domain.NewTrade(portfolioID, day(2026, 1, 10), domain.TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(100), decimal.NewFromInt(100)),
		domain.NewDividend(portfolioID, day(2026, 1, 20), "PETR4", decimal.NewFromInt(300)),
	}

	summary, err := Summarize(points, txs)
	require.NoError(t, err)

	// (10300 + 0 - 10000) / 10000 = 0.03
	assert.True(t, summary.TotalInvested.Equal(decimal.NewFromInt(10000)))
	assert.True(t, summary.TotalWithdrawn.IsZero())
	assert.True(t, summary.TotalReturnAmount.Equal(decimal.NewFromInt(300)))
	assert.True(t, summary.TotalReturn.Equal(decimal.RequireFromString("0.03")))
}

func TestSummarize_Volatility(t *testing.T) {
	// Returns 0.1 and 0.2: population stddev = 0.05.
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1100, 1000),
		point(day(2026, 3, 1), 1320, 1000),
	}

	summary, err := Summarize(points, nil)
	require.NoError(t, err)

	assert.True(t, summary.VolatilityMonthly.Equal(decimal.RequireFromString("0.05")),
		"monthly volatility should be 0.05, got %s", summary.VolatilityMonthly)
	// Annualized = 0.05 * sqrt(12).
	assert.True(t, summary.VolatilityAnnualized.Equal(decimal.RequireFromString("0.17320508")),
		"annualized volatility should be 0.17320508, got %s", summary.VolatilityAnnualized)
}

func TestSummarize_VolatilityZeroWithSingleReturn(t *testing.T) {
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1100, 1000),
	}

	summary, err := Summarize(points, nil)
	require.NoError(t, err)
	assert.True(t, summary.VolatilityMonthly.IsZero())
	assert.True(t, summary.VolatilityAnnualized.IsZero())
}

func TestSummarize_BestAndWorstMonth(t *testing.T) {
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1100, 1000), // +10%
		point(day(2026, 3, 1), 990, 1000),  // -10%
		point(day(2026, 4, 1), 1039, 1000), // ~+4.95%
	}

	summary, err := Summarize(points, nil)
	require.NoError(t, err)

	require.NotNil(t, summary.BestMonth)
	require.NotNil(t, summary.WorstMonth)
	assert.Equal(t, day(2026, 2, 1), summary.BestMonth.Date)
	assert.Equal(t, day(2026, 3, 1), summary.WorstMonth.Date)
}

func TestSummarize_SingleReturnHasNoWorstMonth(t *testing.T) {
	points := []domain.EvolutionPoint{
		point(day(2026, 1, 1), 1000, 1000),
		point(day(2026, 2, 1), 1100, 1000),
	}

	summary, err := Summarize(points, nil)
	require.NoError(t, err)

	// One data point supports a best month but reporting it as also the
	// worst would be misleading.
	require.NotNil(t, summary.BestMonth)
	assert.Nil(t, summary.WorstMonth)
}

func TestSummarize_EmptySeries(t *testing.T) {
	_, err := Summarize(nil, nil)
	assert.Error(t, err)
}
