// Package portfolio defines the holdings snapshot consumed by the engine
// and the narrow interfaces through which snapshots and raw transactions
// are sourced from externally-owned systems.
package portfolio

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// RowType classifies snapshot rows: real positions vs cash vs summary totals.
type RowType string

const (
	RowPosition RowType = "position"
	RowCash     RowType = "cash"
	RowSummary  RowType = "summary"
)

// Row is a single line of a holdings snapshot from an independent source
// (typically a brokerage positions export). Numeric fields are optional
// because exports routinely omit them.
type Row struct {
	Symbol      string
	Description string
	Quantity    *decimal.Decimal
	Price       *decimal.Decimal
	CostBasis   *decimal.Decimal
	MarketValue *decimal.Decimal
	Type        RowType
}

// Snapshot is a known-good ending portfolio state: per-symbol share counts
// plus a cash balance. It anchors ledger reconstruction.
type Snapshot struct {
	Rows []Row
}

// Symbols returns the distinct position symbols in snapshot order.
func (s *Snapshot) Symbols() []string {
	seen := make(map[string]bool)
	symbols := make([]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		sym := normalizeSymbol(row.Symbol)
		if sym == "" || row.Type != RowPosition || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	return symbols
}

// TargetShares returns the per-symbol ending share counts.
func (s *Snapshot) TargetShares() map[string]decimal.Decimal {
	shares := make(map[string]decimal.Decimal)
	for _, row := range s.Rows {
		sym := normalizeSymbol(row.Symbol)
		if sym == "" || row.Type != RowPosition || row.Quantity == nil {
			continue
		}
		shares[sym] = *row.Quantity
	}
	return shares
}

// TargetCash returns the snapshot cash balance, zero when no cash row exists.
func (s *Snapshot) TargetCash() decimal.Decimal {
	for _, row := range s.Rows {
		if row.Type == RowCash && row.MarketValue != nil {
			return *row.MarketValue
		}
	}
	return decimal.Zero
}

// FallbackPrices derives a static price per symbol from the snapshot itself:
// the reported price when present, else cost basis spread over the share
// count. Used when no market data can be resolved for a symbol.
func (s *Snapshot) FallbackPrices() map[string]float64 {
	prices := make(map[string]float64)
	for _, row := range s.Rows {
		sym := normalizeSymbol(row.Symbol)
		if sym == "" || row.Type != RowPosition {
			continue
		}
		if row.Price != nil {
			prices[sym] = row.Price.InexactFloat64()
			continue
		}
		if row.CostBasis != nil && row.Quantity != nil && row.Quantity.IsPositive() {
			prices[sym] = row.CostBasis.Div(*row.Quantity).InexactFloat64()
		}
	}
	return prices
}

// MarketValues returns the per-symbol market value of each position,
// inferring quantity×price when the export omits the market value column.
// Negative values are dropped.
func (s *Snapshot) MarketValues() map[string]float64 {
	values := make(map[string]float64)
	for _, row := range s.Rows {
		sym := normalizeSymbol(row.Symbol)
		if sym == "" || row.Type != RowPosition {
			continue
		}
		var v float64
		switch {
		case row.MarketValue != nil:
			v = row.MarketValue.InexactFloat64()
		case row.Quantity != nil && row.Price != nil:
			v = row.Quantity.Mul(*row.Price).InexactFloat64()
		default:
			continue
		}
		if v > 0 {
			values[sym] += v
		}
	}
	return values
}

func normalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// HoldingsSource yields the latest holdings snapshot for a user or batch.
// Owned by the host application (ingestion and persistence live there).
type HoldingsSource interface {
	LatestSnapshot(ctx context.Context, userID string) (*Snapshot, error)
}

// TransactionRecord is a raw, unparsed ledger entry as sourced externally.
// All fields are strings: parsing (including malformed dates and amounts)
// is the engine's responsibility.
type TransactionRecord struct {
	Date     string
	Action   string
	Symbol   string
	Quantity string
	Price    string
	Amount   string
}

// TransactionSource yields the latest raw transaction records for a user.
type TransactionSource interface {
	LatestTransactions(ctx context.Context, userID string) ([]TransactionRecord, error)
}
