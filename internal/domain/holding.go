package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Holding is the derived position in one instrument. It is never persisted
// as authoritative state: the ledger is the source of truth, and holdings
// are recomputed from a ledger prefix whenever they are needed.
type Holding struct {
	Ticker      string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	MarketValue decimal.Decimal // populated by callers that hold current prices
}

// Value returns quantity * price.
func (h *Holding) Value(price decimal.Decimal) decimal.Decimal {
	return h.Quantity.Mul(price)
}

// BuildHoldings replays a chronologically ordered slice of transactions and
// returns the resulting positions, sorted by ticker. Positions that end at
// zero quantity are dropped.
//
// Average cost increases with purchases (weighted by amount) and is left
// unchanged by sales; dividends never touch it.
func BuildHoldings(txs []*Transaction) []Holding {
	type position struct {
		quantity decimal.Decimal
		cost     decimal.Decimal // total cost basis of the open quantity
	}
	positions := make(map[string]*position)

	for _, tx := range txs {
		sign := tx.Type.QuantitySign()
		if sign == 0 {
			continue
		}

		pos := positions[tx.Ticker]
		if pos == nil {
			pos = &position{}
			positions[tx.Ticker] = pos
		}

		if sign > 0 {
			pos.quantity = pos.quantity.Add(tx.Quantity)
			pos.cost = pos.cost.Add(tx.Amount)
			continue
		}

		// Sale: release cost basis proportionally to the quantity sold.
		if pos.quantity.IsPositive() {
			sold := decimal.Min(tx.Quantity, pos.quantity)
			pos.cost = pos.cost.Sub(pos.cost.Mul(sold).DivRound(pos.quantity, 8))
			pos.quantity = pos.quantity.Sub(sold)
		}
	}

	holdings := make([]Holding, 0, len(positions))
	for ticker, pos := range positions {
		if !pos.quantity.IsPositive() {
			continue
		}
		holdings = append(holdings, Holding{
			Ticker:      ticker,
			Quantity:    pos.quantity,
			AverageCost: pos.cost.DivRound(pos.quantity, 8),
		})
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Ticker < holdings[j].Ticker
	})

	return holdings
}
