package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
)

// holdingsFile is the on-disk JSON shape of a holdings snapshot export.
type holdingsFile struct {
	Rows []holdingsRow `json:"rows"`
}

type holdingsRow struct {
	Symbol      string           `json:"symbol"`
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	CostBasis   *decimal.Decimal `json:"cost_basis"`
	MarketValue *decimal.Decimal `json:"market_value"`
	RowType     string           `json:"row_type"`
}

// transactionsFile is the on-disk JSON shape of a raw transaction export.
// All fields are strings; the engine owns parsing and degradation.
type transactionsFile struct {
	Transactions []transactionRow `json:"transactions"`
}

type transactionRow struct {
	Date     string `json:"date"`
	Action   string `json:"action"`
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Amount   string `json:"amount"`
}

// fileHoldingsSource reads holdings snapshots from a JSON file. It stands in
// for the ingestion system that owns uploads in a deployed setup.
type fileHoldingsSource struct {
	path string
}

var _ portfolio.HoldingsSource = (*fileHoldingsSource)(nil)

func (f *fileHoldingsSource) LatestSnapshot(_ context.Context, _ string) (*portfolio.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read holdings file: %w", err)
	}
	var file holdingsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse holdings file %s: %w", f.path, err)
	}
	snapshot := &portfolio.Snapshot{Rows: make([]portfolio.Row, 0, len(file.Rows))}
	for _, row := range file.Rows {
		snapshot.Rows = append(snapshot.Rows, portfolio.Row{
			Symbol:      row.Symbol,
			Description: row.Description,
			Quantity:    row.Quantity,
			Price:       row.Price,
			CostBasis:   row.CostBasis,
			MarketValue: row.MarketValue,
			Type:        portfolio.RowType(row.RowType),
		})
	}
	return snapshot, nil
}

// fileTransactionSource reads raw transaction records from a JSON file.
type fileTransactionSource struct {
	path string
}

var _ portfolio.TransactionSource = (*fileTransactionSource)(nil)

func (f *fileTransactionSource) LatestTransactions(_ context.Context, _ string) ([]portfolio.TransactionRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read transactions file: %w", err)
	}
	var file transactionsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse transactions file %s: %w", f.path, err)
	}
	records := make([]portfolio.TransactionRecord, 0, len(file.Transactions))
	for _, row := range file.Transactions {
		records = append(records, portfolio.TransactionRecord{
			Date:     row.Date,
			Action:   row.Action,
			Symbol:   row.Symbol,
			Quantity: row.Quantity,
			Price:    row.Price,
			Amount:   row.Amount,
		})
	}
	return records, nil
}
