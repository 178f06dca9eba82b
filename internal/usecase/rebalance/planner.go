package rebalance

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
)

// Params are the empirically chosen planner constants, injectable instead of
// hard-coded at call sites.
type Params struct {
	// Tolerance is the weight deviation beyond which a ticker needs adjusting.
	Tolerance decimal.Decimal
	// CashThreshold is the residual cash above which a redistribution pass runs.
	CashThreshold decimal.Decimal
}

// DefaultParams returns the planner defaults (5% tolerance, R$100 threshold).
func DefaultParams() Params {
	return Params{
		Tolerance:     decimal.NewFromFloat(0.05),
		CashThreshold: decimal.NewFromInt(100),
	}
}

// Draft is one suggested adjustment transaction. Drafts are never persisted
// by the planner; a human or the UI layer confirms them, at which point they
// become ordinary transactions subject to cash-flow reconciliation.
type Draft struct {
	Type      domain.TransactionType
	Ticker    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Rationale string
}

// Input is the current portfolio state the planner works from.
type Input struct {
	Config        *domain.PortfolioConfig
	Holdings      []domain.Holding
	Prices        map[string]decimal.Decimal // current price per ticker
	AvailableCash decimal.Decimal
}

// Planner computes the minimal set of adjustments needed to restore target
// allocations. It is a pure function of its input, safe to invoke
// repeatedly and concurrently.
type Planner struct {
	Params Params

	log zerolog.Logger
}

// NewPlanner creates a new Planner instance
func NewPlanner(params Params, log zerolog.Logger) *Planner {
	return &Planner{
		Params: params,
		log:    log.With().Str("component", "rebalance").Logger(),
	}
}

// ticker-level working state for one planning run
type position struct {
	ticker        string
	price         decimal.Decimal
	quantity      decimal.Decimal
	value         decimal.Decimal
	currentWeight decimal.Decimal
	targetWeight  decimal.Decimal
}

// Plan emits at most one draft per ticker, never both a sell and a buy.
// Algorithm (net position, hybrid valuation basis):
//  1. portfolioValue = market value of holdings only; totalValue adds cash
//  2. currentWeight = holdingValue / portfolioValue; a ticker deviating by
//     the tolerance or more needs adjusting (the boundary is inclusive)
//  3. overallocated tickers sell down to targetWeight * portfolioValue:
//     selling corrects the existing holdings' skew, it is not inflated by
//     idle cash
//  4. underallocated tickers buy up to targetWeight * totalValue: buying
//     deploys idle cash as well
//  5. residual cash above CashThreshold is distributed proportionally
//     across underallocated tickers, merged into any pending buy draft for
//     the same ticker rather than emitted as a second transaction
//  6. a ticker in both the sell set and the buy set indicates a
//     computation-basis bug and fails loudly with
//     ErrRebalancingContradiction
func (p *Planner) Plan(input Input) ([]Draft, error) {
	if input.Config == nil {
		return nil, fmt.Errorf("%w: no portfolio config", domain.ErrInvalidAllocation)
	}
	if err := input.Config.Validate(); err != nil {
		return nil, err
	}

	positions, portfolioValue := p.positions(input)
	totalValue := portfolioValue.Add(input.AvailableCash)
	if !totalValue.IsPositive() {
		return []Draft{}, nil
	}

	drafts := make(map[string]*Draft)
	order := make([]string, 0, len(positions))

	for _, pos := range positions {
		deviation := pos.currentWeight.Sub(pos.targetWeight)

		switch {
		case deviation.GreaterThanOrEqual(p.Params.Tolerance):
			// Overallocated: size the sell against holdings value alone.
			targetQuantity := pos.targetWeight.Mul(portfolioValue).DivRound(pos.price, 8)
			quantity := pos.quantity.Sub(targetQuantity)
			if !quantity.IsPositive() {
				continue
			}
			drafts[pos.ticker] = &Draft{
				Type:     domain.TransactionTypeSellRebalance,
				Ticker:   pos.ticker,
				Quantity: quantity,
				Price:    pos.price,
				Amount:   quantity.Mul(pos.price).Round(2),
				Rationale: fmt.Sprintf("%s is %s%% of holdings, target %s%%: sell %s shares (R$ %s)",
					pos.ticker, pct(pos.currentWeight), pct(pos.targetWeight),
					quantity.Round(4), quantity.Mul(pos.price).Round(2)),
			}
			order = append(order, pos.ticker)

		case deviation.Neg().GreaterThanOrEqual(p.Params.Tolerance):
			// Underallocated: size the buy against holdings plus idle cash.
			targetQuantity := pos.targetWeight.Mul(totalValue).DivRound(pos.price, 8)
			quantity := targetQuantity.Sub(pos.quantity)
			if !quantity.IsPositive() {
				continue
			}
			drafts[pos.ticker] = &Draft{
				Type:     domain.TransactionTypeBuyRebalance,
				Ticker:   pos.ticker,
				Quantity: quantity,
				Price:    pos.price,
				Amount:   quantity.Mul(pos.price).Round(2),
				Rationale: fmt.Sprintf("%s is %s%% of holdings, target %s%%: buy %s shares (R$ %s)",
					pos.ticker, pct(pos.currentWeight), pct(pos.targetWeight),
					quantity.Round(4), quantity.Mul(pos.price).Round(2)),
			}
			order = append(order, pos.ticker)
		}
	}

	p.distributeResidual(input, positions, drafts, &order)

	if err := p.checkConsistency(drafts); err != nil {
		return nil, err
	}

	result := make([]Draft, 0, len(order))
	for _, ticker := range order {
		result = append(result, *drafts[ticker])
	}
	return result, nil
}

// NeedsRebalance reports whether any ticker deviates from its target weight
// by the tolerance or more.
func (p *Planner) NeedsRebalance(input Input) (bool, error) {
	if input.Config == nil {
		return false, fmt.Errorf("%w: no portfolio config", domain.ErrInvalidAllocation)
	}
	if err := input.Config.Validate(); err != nil {
		return false, err
	}

	positions, _ := p.positions(input)
	for _, pos := range positions {
		if pos.currentWeight.Sub(pos.targetWeight).Abs().GreaterThanOrEqual(p.Params.Tolerance) {
			return true, nil
		}
	}
	return false, nil
}

// positions builds the working state over the union of held and targeted
// tickers. A ticker with no current price cannot be planned and is excluded
// with a warning, per the per-ticker degradation policy.
func (p *Planner) positions(input Input) ([]*position, decimal.Decimal) {
	held := make(map[string]domain.Holding, len(input.Holdings))
	tickers := make(map[string]bool)
	for _, h := range input.Holdings {
		held[h.Ticker] = h
		tickers[h.Ticker] = true
	}
	for _, t := range input.Config.Targets {
		tickers[t.Ticker] = true
	}

	names := make([]string, 0, len(tickers))
	for ticker := range tickers {
		names = append(names, ticker)
	}
	sort.Strings(names)

	positions := make([]*position, 0, len(names))
	portfolioValue := decimal.Zero

	for _, ticker := range names {
		price, ok := input.Prices[ticker]
		if !ok || !price.IsPositive() {
			p.log.Warn().Str("ticker", ticker).Msg("No current price, excluding ticker from plan")
			continue
		}

		pos := &position{
			ticker:       ticker,
			price:        price,
			targetWeight: input.Config.TargetWeight(ticker),
		}
		if h, ok := held[ticker]; ok {
			pos.quantity = h.Quantity
			pos.value = h.Quantity.Mul(price)
			portfolioValue = portfolioValue.Add(pos.value)
		}
		positions = append(positions, pos)
	}

	for _, pos := range positions {
		if portfolioValue.IsPositive() {
			pos.currentWeight = pos.value.DivRound(portfolioValue, 8)
		}
	}

	return positions, portfolioValue
}

// distributeResidual spreads leftover cash across underallocated tickers,
// proportionally to their weight gap. Additional quantity for a ticker that
// already has a pending buy draft is merged into that draft: one invocation
// never yields two drafts for the same ticker.
func (p *Planner) distributeResidual(input Input, positions []*position, drafts map[string]*Draft, order *[]string) {
	residual := input.AvailableCash
	for _, d := range drafts {
		if d.Type == domain.TransactionTypeBuyRebalance {
			residual = residual.Sub(d.Amount)
		} else {
			residual = residual.Add(d.Amount)
		}
	}
	if residual.LessThanOrEqual(p.Params.CashThreshold) {
		return
	}

	under := make([]*position, 0, len(positions))
	gapTotal := decimal.Zero
	for _, pos := range positions {
		if d, ok := drafts[pos.ticker]; ok && d.Type == domain.TransactionTypeSellRebalance {
			continue
		}
		gap := pos.targetWeight.Sub(pos.currentWeight)
		if gap.IsPositive() {
			under = append(under, pos)
			gapTotal = gapTotal.Add(gap)
		}
	}
	if len(under) == 0 || !gapTotal.IsPositive() {
		return
	}

	for _, pos := range under {
		gap := pos.targetWeight.Sub(pos.currentWeight)
		share := residual.Mul(gap).DivRound(gapTotal, 2)
		quantity := share.DivRound(pos.price, 8)
		if !quantity.IsPositive() {
			continue
		}

		if d, ok := drafts[pos.ticker]; ok {
			d.Quantity = d.Quantity.Add(quantity)
			d.Amount = d.Amount.Add(quantity.Mul(pos.price).Round(2))
			d.Rationale += fmt.Sprintf("; deploying R$ %s of idle cash", share)
			continue
		}

		drafts[pos.ticker] = &Draft{
			Type:     domain.TransactionTypeBuyRebalance,
			Ticker:   pos.ticker,
			Quantity: quantity,
			Price:    pos.price,
			Amount:   quantity.Mul(pos.price).Round(2),
			Rationale: fmt.Sprintf("%s is below target %s%%: deploying R$ %s of idle cash",
				pos.ticker, pct(pos.targetWeight), share),
		}
		*order = append(*order, pos.ticker)
	}
}

// checkConsistency enforces the net-position invariant. Because drafts are
// keyed by ticker this cannot trip unless the planning pass itself is wrong,
// which is exactly when it must fail loudly instead of picking a side.
func (p *Planner) checkConsistency(drafts map[string]*Draft) error {
	sells := make(map[string]bool)
	buys := make(map[string]bool)
	for ticker, d := range drafts {
		switch d.Type {
		case domain.TransactionTypeSellRebalance:
			sells[ticker] = true
		case domain.TransactionTypeBuyRebalance:
			buys[ticker] = true
		}
	}
	for ticker := range sells {
		if buys[ticker] {
			p.log.Error().Str("ticker", ticker).Msg("Ticker present in both sell and buy sets")
			return fmt.Errorf("%w: %s appears in both sell and buy sets",
				domain.ErrRebalancingContradiction, ticker)
		}
	}
	return nil
}

func pct(w decimal.Decimal) string {
	return w.Mul(decimal.NewFromInt(100)).Round(1).String()
}
