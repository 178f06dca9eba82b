package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/performance"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/rebalance"
)

func (s *Server) saveConfig(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := req.toDomain(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.PortfolioRepo.SaveConfig(r.Context(), cfg); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.Cache.InvalidatePrefix(portfolioKey(id.String()))
	writeJSON(w, http.StatusOK, toConfigResponse(cfg))
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	cfg, err := s.PortfolioRepo.GetConfig(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConfigResponse(cfg))
}

// submitTransactions reconciles and confirms a batch in one step, then
// invalidates every cached report for the portfolio.
func (s *Server) submitTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	var req submitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	drafts := make([]*domain.Transaction, 0, len(req.Transactions))
	for _, txReq := range req.Transactions {
		tx, err := txReq.toDomain(id)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		drafts = append(drafts, tx)
	}

	rec, err := s.Ledger.SubmitBatch(r.Context(), id, drafts)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.Ledger.Confirm(r.Context(), rec); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.Cache.InvalidatePrefix(portfolioKey(id.String()))
	writeJSON(w, http.StatusCreated, toSubmitBatchResponse(rec))
}

func (s *Server) getEvolution(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	key := portfolioKey(id.String()) + ":evolution"
	if cached, ok := s.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	points, err := s.Valuation.Series(r.Context(), id, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := toEvolutionResponse(points)
	s.Cache.Set(key, resp, reportTTL)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPerformance(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	key := portfolioKey(id.String()) + ":performance"
	if cached, ok := s.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	points, err := s.Valuation.Series(r.Context(), id, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	txs, err := s.LedgerRepo.ListByPortfolio(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	summary, err := performance.Summarize(points, txs)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := toPerformanceResponse(summary, s.needsRebalance(r, id))
	s.Cache.Set(key, resp, reportTTL)
	writeJSON(w, http.StatusOK, resp)
}

// needsRebalance is advisory on the performance report: any failure to
// compute it (no config, unpriceable tickers) just omits the field.
func (s *Server) needsRebalance(r *http.Request, id uuid.UUID) *bool {
	input, err := s.planInput(r, id)
	if err != nil {
		return nil
	}
	needs, err := s.Planner.NeedsRebalance(*input)
	if err != nil {
		return nil
	}
	return &needs
}

func (s *Server) getDrawdowns(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	key := portfolioKey(id.String()) + ":drawdowns"
	if cached, ok := s.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	points, err := s.Valuation.Series(r.Context(), id, time.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.Drawdown.Analyze(points)
	if errors.Is(err, domain.ErrUntrustworthyDrawdown) {
		// Unavailable, not a number.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := drawdownResponse{
		Series:      make([]drawdownPointResponse, 0, len(result.Series)),
		Periods:     make([]drawdownPeriodResponse, 0, len(result.Periods)),
		MaxDrawdown: result.MaxDrawdown.String(),
	}
	for _, p := range result.Series {
		resp.Series = append(resp.Series, drawdownPointResponse{
			Date:     p.Date.Format("2006-01-02"),
			Value:    p.Value.String(),
			Peak:     p.Peak.String(),
			Drawdown: p.Drawdown.String(),
		})
	}
	for _, p := range result.Periods {
		period := drawdownPeriodResponse{
			Start:     p.Start.Format("2006-01-02"),
			Depth:     p.Depth.String(),
			Recovered: p.Recovered,
		}
		if p.End != nil {
			period.End = p.End.Format("2006-01-02")
		}
		resp.Periods = append(resp.Periods, period)
	}

	s.Cache.Set(key, resp, reportTTL)
	writeJSON(w, http.StatusOK, resp)
}

// planRebalance produces draft adjustments from the current snapshot.
// Drafts are never persisted here: confirming them is an ordinary
// transaction submission, subject to cash-flow reconciliation.
func (s *Server) planRebalance(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	input, err := s.planInput(r, id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	drafts, err := s.Planner.Plan(*input)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRebalanceResponse(drafts))
}

func (s *Server) planInput(r *http.Request, id uuid.UUID) (*rebalance.Input, error) {
	ctx := r.Context()

	cfg, err := s.PortfolioRepo.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	holdings, err := s.Ledger.HoldingsAt(ctx, id, now)
	if err != nil {
		return nil, err
	}
	cash, err := s.Ledger.CashBalanceAt(ctx, id, now)
	if err != nil {
		return nil, err
	}

	// Latest prices for the union of held and targeted tickers; an
	// unpriceable ticker is left out and the planner degrades per-ticker.
	prices := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		s.latestPrice(r, prices, h.Ticker)
	}
	for _, t := range cfg.Targets {
		s.latestPrice(r, prices, t.Ticker)
	}

	return &rebalance.Input{
		Config:        cfg,
		Holdings:      holdings,
		Prices:        prices,
		AvailableCash: cash,
	}, nil
}

func (s *Server) latestPrice(r *http.Request, prices map[string]decimal.Decimal, ticker string) {
	if _, ok := prices[ticker]; ok {
		return
	}
	price, err := s.Oracle.GetLatestPrice(r.Context(), ticker)
	if err != nil {
		s.log.Warn().Str("ticker", ticker).Err(err).Msg("No latest price for ticker")
		return
	}
	prices[ticker] = price
}

func portfolioKey(id string) string {
	return "portfolio:" + id
}
