// Package ledger reconstructs historical portfolio positions from a
// brokerage transaction ledger and a known-good ending snapshot.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the normalized transaction kind. Anything unrecognized maps to
// ActionOther, which has no share or cash effect during replay.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionDividend Action = "DIVIDEND"
	ActionInterest Action = "INTEREST"
	ActionTransfer Action = "TRANSFER"
	ActionOther    Action = "OTHER"
)

// Transaction is one immutable ledger entry. Quantity is always
// non-negative; direction comes from the action. Amount is the signed cash
// effect as reported by the brokerage.
type Transaction struct {
	Date     time.Time // day granularity, UTC midnight
	Action   Action
	Symbol   string // empty for cash-only entries
	Quantity decimal.Decimal
	Price    *decimal.Decimal // last trade price when reported
	Amount   decimal.Decimal
}

// BaselineState is the inferred starting point before the earliest known
// transaction: replaying the full ledger from it never drives a running
// share count negative and ends at the snapshot's share counts.
type BaselineState struct {
	Shares map[string]decimal.Decimal
	Cash   decimal.Decimal
}

// PositionState is the portfolio state at the end of one calendar day.
// The timeline contains one entry per day, including days with no activity.
type PositionState struct {
	Date   time.Time
	Shares map[string]decimal.Decimal
	Cash   decimal.Decimal
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// actionDelta maps a transaction to its (Δshares, Δcash) effect.
// BUY adds shares, SELL removes them; dividends, interest and transfers are
// cash-only; unrecognized actions are inert.
func actionDelta(t Transaction) (decimal.Decimal, decimal.Decimal) {
	switch t.Action {
	case ActionBuy:
		return t.Quantity, t.Amount
	case ActionSell:
		return t.Quantity.Neg(), t.Amount
	case ActionDividend, ActionInterest, ActionTransfer:
		return decimal.Zero, t.Amount
	default:
		return decimal.Zero, decimal.Zero
	}
}
