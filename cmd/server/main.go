package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/adapter/httpapi"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/adapter/oracle"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/adapter/repository/postgres"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/cache"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/jobs"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/drawdown"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/ledger"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/rebalance"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/valuation"
)

const (
	defaultAPIToken = "dev-token"
	defaultHTTPAddr = ":8080"

	// First day of the month at 03:00; closed-month closes never change so
	// one pass per month is enough, the rest are catch-up retries.
	defaultBackfillSchedule = "0 3 1 * *"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") == "true" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	// 1. Setup Database
	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		// If explicit string is missing, build it from individual vars (Docker friendly)
		host := envOr("DB_HOST", "localhost")
		port := envOr("DB_PORT", "5432")
		user := envOr("DB_USER", "postgres")
		password := envOr("DB_PASSWORD", "postgres")
		dbname := envOr("DB_NAME", "precojusto")

		dbConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	// Add 2-second delay to ensure Postgres is up (Simple retry)
	time.Sleep(2 * time.Second)

	db, err := postgres.NewDB(dbConnStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// 2. Initialize Repositories (Postgres)
	ledgerRepo := postgres.NewLedgerRepository(db)
	portfolioRepo := postgres.NewPortfolioRepository(db)
	priceStore := postgres.NewPriceRepository(db)

	// 3. Price oracle: remote quotes behind the local store
	brapiClient := oracle.NewClient(os.Getenv("BRAPI_BASE_URL"), os.Getenv("BRAPI_TOKEN"), log)
	priceOracle := oracle.NewStoreBacked(priceStore, brapiClient, log)

	// 4. Initialize Services (Use Cases)
	ledgerService := ledger.NewService(ledgerRepo, log)
	valuationEngine := valuation.NewEngine(ledgerRepo, priceOracle, log)
	drawdownAnalyzer := drawdown.NewAnalyzer(log)
	planner := rebalance.NewPlanner(rebalance.DefaultParams(), log)

	// 5. Background price backfill
	backfill := jobs.NewBackfill(ledgerRepo, portfolioRepo, priceStore, brapiClient, log)
	runner := cron.New()
	schedule := envOr("BACKFILL_SCHEDULE", defaultBackfillSchedule)
	if _, err := backfill.Schedule(runner, schedule); err != nil {
		log.Fatal().Err(err).Str("schedule", schedule).Msg("Failed to schedule backfill")
	}
	runner.Start()
	defer runner.Stop()

	// 6. Start HTTP Server
	apiToken := envOr("API_TOKEN", defaultAPIToken)
	allowedOrigins := strings.Split(envOr("ALLOWED_ORIGINS", "*"), ",")

	server := httpapi.NewServer(
		ledgerService,
		valuationEngine,
		drawdownAnalyzer,
		planner,
		portfolioRepo,
		ledgerRepo,
		priceOracle,
		cache.New(),
		log,
	)

	httpServer := &http.Server{
		Addr:    envOr("HTTP_ADDR", defaultHTTPAddr),
		Handler: server.Router(apiToken, allowedOrigins),
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP server")
		}
	}()

	// Graceful shutdown
	waitForShutdown(httpServer, log)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(httpServer *http.Server, log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("HTTP server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
