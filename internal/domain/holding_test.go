package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildHoldings_WeightedAverageCost(t *testing.T) {
	portfolioID := uuid.New()

	txs := []*Transaction{
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(100), decimal.NewFromInt(30)), // 3000
		NewTrade(portfolioID, day(2026, 2, 10), TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(100), decimal.NewFromInt(40)), // 4000
	}

	holdings := BuildHoldings(txs)
	require.Len(t, holdings, 1)

	// 7000 cost over 200 shares = 35 average.
	assert.Equal(t, "PETR4", holdings[0].Ticker)
	assert.True(t, holdings[0].Quantity.Equal(decimal.NewFromInt(200)))
	assert.True(t, holdings[0].AverageCost.Equal(decimal.NewFromInt(35)))
}

func TestBuildHoldings_SaleReleasesCostProportionally(t *testing.T) {
	portfolioID := uuid.New()

	txs := []*Transaction{
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(100), decimal.NewFromInt(30)),
		NewTrade(portfolioID, day(2026, 2, 10), TransactionTypeSellRebalance, "PETR4",
			decimal.NewFromInt(40), decimal.NewFromInt(50)),
	}

	holdings := BuildHoldings(txs)
	require.Len(t, holdings, 1)

	// Selling 40 of 100 releases 40% of the 3000 cost basis; the average
	// cost of the remaining shares is unchanged at 30.
	assert.True(t, holdings[0].Quantity.Equal(decimal.NewFromInt(60)))
	assert.True(t, holdings[0].AverageCost.Equal(decimal.NewFromInt(30)))
}

func TestBuildHoldings_ClosedPositionDropped(t *testing.T) {
	portfolioID := uuid.New()

	txs := []*Transaction{
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(50), decimal.NewFromInt(30)),
		NewTrade(portfolioID, day(2026, 3, 10), TransactionTypeSellWithdrawal, "PETR4",
			decimal.NewFromInt(50), decimal.NewFromInt(35)),
	}

	assert.Empty(t, BuildHoldings(txs))
}

func TestBuildHoldings_CashAndDividendsIgnored(t *testing.T) {
	portfolioID := uuid.New()

	txs := []*Transaction{
		NewCashCredit(portfolioID, day(2026, 1, 5), decimal.NewFromInt(10000)),
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "VALE3",
			decimal.NewFromInt(10), decimal.NewFromInt(60)),
		NewDividend(portfolioID, day(2026, 2, 1), "VALE3", decimal.NewFromInt(25)),
	}

	holdings := BuildHoldings(txs)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, holdings[0].AverageCost.Equal(decimal.NewFromInt(60)))
}

func TestBuildHoldings_SortedByTicker(t *testing.T) {
	portfolioID := uuid.New()

	txs := []*Transaction{
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "VALE3",
			decimal.NewFromInt(10), decimal.NewFromInt(60)),
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "ITUB4",
			decimal.NewFromInt(10), decimal.NewFromInt(25)),
		NewTrade(portfolioID, day(2026, 1, 10), TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(10), decimal.NewFromInt(30)),
	}

	holdings := BuildHoldings(txs)
	require.Len(t, holdings, 3)
	assert.Equal(t, "ITUB4", holdings[0].Ticker)
	assert.Equal(t, "PETR4", holdings[1].Ticker)
	assert.Equal(t, "VALE3", holdings[2].Ticker)
}

func TestHoldingValue(t *testing.T) {
	h := Holding{Ticker: "PETR4", Quantity: decimal.NewFromInt(150)}
	assert.True(t, h.Value(decimal.RequireFromString("36.50")).Equal(decimal.RequireFromString("5475")))
}
