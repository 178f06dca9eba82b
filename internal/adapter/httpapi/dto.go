package httpapi

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/ledger"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/performance"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/rebalance"
)

// Monetary values cross the wire as strings to avoid float rounding,
// matching how the ledger stores them.

type transactionRequest struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Type     string `json:"type"`
	Ticker   string `json:"ticker,omitempty"`
	Quantity string `json:"quantity,omitempty"`
	Price    string `json:"price,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

type submitBatchRequest struct {
	Transactions []transactionRequest `json:"transactions"`
}

func (r transactionRequest) toDomain(portfolioID uuid.UUID) (*domain.Transaction, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil, errors.New("invalid date format, expected YYYY-MM-DD")
	}

	txType := domain.TransactionType(r.Type)

	if txType.QuantitySign() != 0 {
		quantity, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, errors.New("invalid quantity format")
		}
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, errors.New("invalid price format")
		}
		return domain.NewTrade(portfolioID, date, txType, r.Ticker, quantity, price), nil
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, errors.New("invalid amount format")
	}

	switch txType {
	case domain.TransactionTypeCashCredit:
		return domain.NewCashCredit(portfolioID, date, amount), nil
	case domain.TransactionTypeCashDebit:
		return domain.NewCashDebit(portfolioID, date, amount), nil
	case domain.TransactionTypeDividend:
		return domain.NewDividend(portfolioID, date, r.Ticker, amount), nil
	}
	return nil, errors.New("unknown transaction type: " + r.Type)
}

type transactionResponse struct {
	ID                string `json:"id"`
	Date              string `json:"date"`
	Type              string `json:"type"`
	Ticker            string `json:"ticker,omitempty"`
	Quantity          string `json:"quantity,omitempty"`
	Price             string `json:"price,omitempty"`
	Amount            string `json:"amount"`
	CashBalanceBefore string `json:"cash_balance_before"`
	CashBalanceAfter  string `json:"cash_balance_after"`
	SystemGenerated   bool   `json:"system_generated,omitempty"`
	Rationale         string `json:"rationale,omitempty"`
}

func toTransactionResponse(tx *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                tx.ID.String(),
		Date:              tx.Date.Format("2006-01-02"),
		Type:              string(tx.Type),
		Ticker:            tx.Ticker,
		Amount:            tx.Amount.String(),
		CashBalanceBefore: tx.CashBalanceBefore.String(),
		CashBalanceAfter:  tx.CashBalanceAfter.String(),
		SystemGenerated:   tx.SystemGenerated,
		Rationale:         tx.Rationale,
	}
	if tx.Type.QuantitySign() != 0 {
		resp.Quantity = tx.Quantity.String()
		resp.Price = tx.Price.String()
	}
	return resp
}

type submitBatchResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Synthesized  int                   `json:"synthesized"`
	Rationales   []string              `json:"rationales,omitempty"`
}

func toSubmitBatchResponse(rec *ledger.Reconciliation) submitBatchResponse {
	resp := submitBatchResponse{
		Transactions: make([]transactionResponse, 0, len(rec.Transactions)),
		Synthesized:  len(rec.Synthesized),
	}
	for _, tx := range rec.Transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(tx))
	}
	for _, tx := range rec.Synthesized {
		resp.Rationales = append(resp.Rationales, tx.Rationale)
	}
	return resp
}

type configRequest struct {
	Name            string `json:"name"`
	RebalanceMonths int    `json:"rebalance_months"`
	Targets         []struct {
		Ticker string `json:"ticker"`
		Weight string `json:"weight"`
	} `json:"targets"`
}

func (r configRequest) toDomain(portfolioID uuid.UUID) (*domain.PortfolioConfig, error) {
	cfg := &domain.PortfolioConfig{
		PortfolioID:     portfolioID,
		Name:            r.Name,
		RebalanceMonths: r.RebalanceMonths,
	}
	for _, t := range r.Targets {
		weight, err := decimal.NewFromString(t.Weight)
		if err != nil {
			return nil, errors.New("invalid weight format for " + t.Ticker)
		}
		cfg.Targets = append(cfg.Targets, domain.TargetAllocation{Ticker: t.Ticker, Weight: weight})
	}
	return cfg, nil
}

type configResponse struct {
	PortfolioID     string           `json:"portfolio_id"`
	Name            string           `json:"name"`
	RebalanceMonths int              `json:"rebalance_months"`
	Targets         []targetResponse `json:"targets"`
}

type targetResponse struct {
	Ticker string `json:"ticker"`
	Weight string `json:"weight"`
}

func toConfigResponse(cfg *domain.PortfolioConfig) configResponse {
	resp := configResponse{
		PortfolioID:     cfg.PortfolioID.String(),
		Name:            cfg.Name,
		RebalanceMonths: cfg.RebalanceMonths,
		Targets:         make([]targetResponse, 0, len(cfg.Targets)),
	}
	for _, t := range cfg.Targets {
		resp.Targets = append(resp.Targets, targetResponse{Ticker: t.Ticker, Weight: t.Weight.String()})
	}
	return resp
}

type evolutionPointResponse struct {
	Date                   string `json:"date"`
	TotalValue             string `json:"total_value"`
	InvestedCapital        string `json:"invested_capital"`
	CashBalance            string `json:"cash_balance"`
	CumulativeReturn       string `json:"cumulative_return"`
	CumulativeReturnAmount string `json:"cumulative_return_amount"`
}

func toEvolutionResponse(points []domain.EvolutionPoint) []evolutionPointResponse {
	resp := make([]evolutionPointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, evolutionPointResponse{
			Date:                   p.Date.Format("2006-01-02"),
			TotalValue:             p.TotalValue.String(),
			InvestedCapital:        p.InvestedCapital.String(),
			CashBalance:            p.CashBalance.String(),
			CumulativeReturn:       p.CumulativeReturn.String(),
			CumulativeReturnAmount: p.CumulativeReturnAmount.String(),
		})
	}
	return resp
}

type monthlyReturnResponse struct {
	Date   string `json:"date"`
	Return string `json:"return"`
}

type performanceResponse struct {
	TotalInvested        string                  `json:"total_invested"`
	TotalWithdrawn       string                  `json:"total_withdrawn"`
	TotalReturn          string                  `json:"total_return"`
	TotalReturnAmount    string                  `json:"total_return_amount"`
	MonthlyReturns       []monthlyReturnResponse `json:"monthly_returns"`
	VolatilityMonthly    string                  `json:"volatility_monthly"`
	VolatilityAnnualized string                  `json:"volatility_annualized"`
	BestMonth            *monthlyReturnResponse  `json:"best_month,omitempty"`
	WorstMonth           *monthlyReturnResponse  `json:"worst_month,omitempty"`
	NeedsRebalance       *bool                   `json:"needs_rebalance,omitempty"`
}

func toPerformanceResponse(summary *performance.Summary, needsRebalance *bool) performanceResponse {
	resp := performanceResponse{
		TotalInvested:        summary.TotalInvested.String(),
		TotalWithdrawn:       summary.TotalWithdrawn.String(),
		TotalReturn:          summary.TotalReturn.String(),
		TotalReturnAmount:    summary.TotalReturnAmount.String(),
		MonthlyReturns:       make([]monthlyReturnResponse, 0, len(summary.MonthlyReturns)),
		VolatilityMonthly:    summary.VolatilityMonthly.String(),
		VolatilityAnnualized: summary.VolatilityAnnualized.String(),
		NeedsRebalance:       needsRebalance,
	}
	for _, r := range summary.MonthlyReturns {
		resp.MonthlyReturns = append(resp.MonthlyReturns, monthlyReturnResponse{
			Date:   r.Date.Format("2006-01-02"),
			Return: r.Return.String(),
		})
	}
	if summary.BestMonth != nil {
		resp.BestMonth = &monthlyReturnResponse{
			Date:   summary.BestMonth.Date.Format("2006-01-02"),
			Return: summary.BestMonth.Return.String(),
		}
	}
	if summary.WorstMonth != nil {
		resp.WorstMonth = &monthlyReturnResponse{
			Date:   summary.WorstMonth.Date.Format("2006-01-02"),
			Return: summary.WorstMonth.Return.String(),
		}
	}
	return resp
}

type drawdownPointResponse struct {
	Date     string `json:"date"`
	Value    string `json:"value"`
	Peak     string `json:"peak"`
	Drawdown string `json:"drawdown"`
}

type drawdownPeriodResponse struct {
	Start     string `json:"start"`
	End       string `json:"end,omitempty"`
	Depth     string `json:"depth"`
	Recovered bool   `json:"recovered"`
}

type drawdownResponse struct {
	Series      []drawdownPointResponse  `json:"series"`
	Periods     []drawdownPeriodResponse `json:"periods"`
	MaxDrawdown string                   `json:"max_drawdown"`
}

type rebalanceDraftResponse struct {
	Type      string `json:"type"`
	Ticker    string `json:"ticker"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Rationale string `json:"rationale"`
}

func toRebalanceResponse(drafts []rebalance.Draft) []rebalanceDraftResponse {
	resp := make([]rebalanceDraftResponse, 0, len(drafts))
	for _, d := range drafts {
		resp = append(resp, rebalanceDraftResponse{
			Type:      string(d.Type),
			Ticker:    d.Ticker,
			Quantity:  d.Quantity.String(),
			Price:     d.Price.String(),
			Amount:    d.Amount.String(),
			Rationale: d.Rationale,
		})
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}
