package ledger

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Reconstructor infers a starting state from an incomplete ledger and
// replays it into a continuous daily position timeline.
type Reconstructor struct {
	log zerolog.Logger
}

// NewReconstructor creates a new ledger reconstructor.
func NewReconstructor(log zerolog.Logger) *Reconstructor {
	return &Reconstructor{log: log.With().Str("component", "ledger").Logger()}
}

// Baseline determines starting shares and cash so that:
//   - running positions never go negative during replay, and
//   - the ending state lines up with targetShares.
//
// For each symbol the required baseline is
// max(0, -minRunning, target - netChange): the first term covers ledgers
// that fully explain the target, the second covers sells that predate the
// ledger window, the third absorbs any unexplained discrepancy.
//
// Cash reconciliation is flow-based and best-effort: baseline cash is
// max(0, targetCash - netCashChange). When the ledger does not fully explain
// the ending balance the replayed cash drifts from the target; that
// tolerance for incomplete ledgers is intended behavior.
func (r *Reconstructor) Baseline(
	txns []Transaction,
	targetShares map[string]decimal.Decimal,
	targetCash decimal.Decimal,
) BaselineState {
	running := make(map[string]decimal.Decimal)
	minSeen := make(map[string]decimal.Decimal)
	netChanges := make(map[string]decimal.Decimal)
	cash := decimal.Zero

	for _, txn := range txns {
		deltaShares, deltaCash := actionDelta(txn)
		if txn.Symbol != "" {
			next := running[txn.Symbol].Add(deltaShares)
			running[txn.Symbol] = next
			netChanges[txn.Symbol] = netChanges[txn.Symbol].Add(deltaShares)
			low := minSeen[txn.Symbol] // zero value doubles as the initial floor
			if next.LessThan(low) {
				low = next
			}
			minSeen[txn.Symbol] = low
		}
		cash = cash.Add(deltaCash)
	}

	baseline := BaselineState{Shares: make(map[string]decimal.Decimal)}
	for sym := range union(netChanges, targetShares) {
		neededForNegatives := minSeen[sym].Neg()
		neededForTarget := targetShares[sym].Sub(netChanges[sym])
		baseline.Shares[sym] = decimal.Max(decimal.Zero, neededForNegatives, neededForTarget)
	}

	baseline.Cash = decimal.Max(decimal.Zero, targetCash.Sub(cash))

	r.log.Debug().
		Int("symbols", len(baseline.Shares)).
		Str("baseline_cash", baseline.Cash.String()).
		Msg("Inferred baseline state")
	return baseline
}

// Timeline replays transactions forward from the baseline, producing one
// PositionState per calendar day in [start, end] inclusive. Days without
// activity carry the previous state forward. Cash is allowed to go negative
// during replay (margin and settlement float are tolerated).
func (r *Reconstructor) Timeline(
	txns []Transaction,
	baseline BaselineState,
	start, end time.Time,
) []PositionState {
	start = Day(start)
	end = Day(end)

	currentShares := make(map[string]decimal.Decimal, len(baseline.Shares))
	for sym, qty := range baseline.Shares {
		currentShares[sym] = qty
	}
	cash := baseline.Cash

	txnsByDay := make(map[time.Time][]Transaction)
	for _, txn := range txns {
		day := Day(txn.Date)
		txnsByDay[day] = append(txnsByDay[day], txn)
	}

	var states []PositionState
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 1) {
		for _, txn := range txnsByDay[cursor] {
			deltaShares, deltaCash := actionDelta(txn)
			if txn.Symbol != "" {
				currentShares[txn.Symbol] = currentShares[txn.Symbol].Add(deltaShares)
			}
			cash = cash.Add(deltaCash)
		}

		snapshot := make(map[string]decimal.Decimal, len(currentShares))
		for sym, qty := range currentShares {
			snapshot[sym] = qty
		}
		states = append(states, PositionState{Date: cursor, Shares: snapshot, Cash: cash})
	}
	return states
}

// Window derives the replay window from the ledger: one day before the
// earliest transaction through the latest one, capped at a 20-minute-old
// "now" so freshly imported same-day entries do not ask for prices the
// market has not printed yet.
func Window(txns []Transaction, now time.Time) (time.Time, time.Time) {
	if len(txns) == 0 {
		today := Day(now)
		return today, today
	}
	start := Day(txns[0].Date)
	end := Day(txns[0].Date)
	for _, txn := range txns[1:] {
		day := Day(txn.Date)
		if day.Before(start) {
			start = day
		}
		if day.After(end) {
			end = day
		}
	}
	start = start.AddDate(0, 0, -1)

	cutoff := Day(now.Add(-20 * time.Minute))
	if end.After(cutoff) {
		end = cutoff
	}
	return start, end
}

func union(a, b map[string]decimal.Decimal) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
