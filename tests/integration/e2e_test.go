//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/adapter/repository/postgres"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/ledger"
)

var db *postgres.DB

// TestMain connects to the database configured via DB_CONN_STR (or the
// individual DB_* variables) and runs the suite against the real schema.
func TestMain(m *testing.M) {
	var err error
	db, err = postgres.NewDB(connectionString())
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()

	os.Exit(m.Run())
}

func connectionString() string {
	if s := os.Getenv("DB_CONN_STR"); s != "" {
		return s
	}
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "precojusto_test")
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewPortfolioRepository(db)
	portfolioID := uuid.New()

	cfg := &domain.PortfolioConfig{
		PortfolioID: portfolioID,
		Name:        "Integration",
		Targets: []domain.TargetAllocation{
			{Ticker: "PETR4", Weight: decimal.RequireFromString("0.6")},
			{Ticker: "VALE3", Weight: decimal.RequireFromString("0.4")},
		},
		RebalanceMonths: 6,
	}
	require.NoError(t, repo.SaveConfig(ctx, cfg))

	loaded, err := repo.GetConfig(ctx, portfolioID)
	require.NoError(t, err)
	assert.Equal(t, "Integration", loaded.Name)
	assert.Equal(t, 6, loaded.RebalanceMonths)
	require.Len(t, loaded.Targets, 2)
	assert.True(t, loaded.Targets[0].Weight.Add(loaded.Targets[1].Weight).Equal(decimal.NewFromInt(1)))

	// Saving again replaces the targets instead of accumulating them.
	cfg.Targets = []domain.TargetAllocation{
		{Ticker: "ITUB4", Weight: decimal.NewFromInt(1)},
	}
	require.NoError(t, repo.SaveConfig(ctx, cfg))

	loaded, err = repo.GetConfig(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, loaded.Targets, 1)
	assert.Equal(t, "ITUB4", loaded.Targets[0].Ticker)
}

func TestGetConfig_Missing(t *testing.T) {
	repo := postgres.NewPortfolioRepository(db)
	_, err := repo.GetConfig(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewLedgerRepository(db)
	service := ledger.NewService(repo, zerolog.Nop())
	portfolioID := uuid.New()

	rec, err := service.SubmitBatch(ctx, portfolioID, []*domain.Transaction{
		domain.NewCashCredit(portfolioID, day(2026, 1, 5), decimal.NewFromInt(1000)),
		domain.NewTrade(portfolioID, day(2026, 1, 10), domain.TransactionTypeBuy, "PETR4",
			decimal.NewFromInt(100), decimal.RequireFromString("36.50")),
	})
	require.NoError(t, err)
	require.Len(t, rec.Synthesized, 1)
	require.NoError(t, service.Confirm(ctx, rec))

	stored, err := repo.ListByPortfolio(ctx, portfolioID)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	// Replay order and stamped balances survive the round trip.
	assert.Equal(t, domain.TransactionTypeCashCredit, stored[0].Type)
	assert.Equal(t, domain.TransactionTypeCashCredit, stored[1].Type)
	assert.True(t, stored[1].SystemGenerated)
	assert.NotEmpty(t, stored[1].Rationale)
	assert.Equal(t, domain.TransactionTypeBuy, stored[2].Type)
	assert.True(t, stored[2].CashBalanceAfter.IsZero())
	assert.True(t, stored[2].Amount.Equal(decimal.RequireFromString("3650")))
}

func TestPriceStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewPriceRepository(db)
	date := day(2026, 2, 1)

	require.NoError(t, store.SavePrice(ctx, "PETR4", date, decimal.RequireFromString("36.52")))

	price, err := store.GetPrice(ctx, "PETR4", date)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("36.52")))

	// Upsert replaces the close for the same (ticker, date).
	require.NoError(t, store.SavePrice(ctx, "PETR4", date, decimal.RequireFromString("37.00")))
	price, err = store.GetPrice(ctx, "PETR4", date)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("37.00")))

	_, err = store.GetPrice(ctx, "PETR4", day(2026, 3, 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBackfillCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewPriceRepository(db)

	require.NoError(t, store.SaveCursor(ctx, "PETR4|2026-02"))
	cursor, err := store.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PETR4|2026-02", cursor)

	require.NoError(t, store.SaveCursor(ctx, ""))
	cursor, err = store.GetCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor)
}
