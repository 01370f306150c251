package performance

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jayana-cpc/wealthwise/internal/modules/ledger"
	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
)

// Service builds performance payloads from a holdings snapshot and a
// transaction ledger.
type Service struct {
	resolver      *marketdata.Resolver
	reconstructor *ledger.Reconstructor
	log           zerolog.Logger
}

// NewService creates a performance service.
func NewService(resolver *marketdata.Resolver, reconstructor *ledger.Reconstructor, log zerolog.Logger) *Service {
	return &Service{
		resolver:      resolver,
		reconstructor: reconstructor,
		log:           log.With().Str("component", "performance").Logger(),
	}
}

// Build reconstructs the daily portfolio series over the ledger window and
// values it against resolved price history. Market-data failures degrade to
// static prices with warnings; the only hard failure is an empty ledger.
func (s *Service) Build(ctx context.Context, holdings *portfolio.Snapshot, records []portfolio.TransactionRecord) (*Response, error) {
	now := time.Now().UTC()
	txns := ledger.ParseRecords(records, now, s.log)
	if len(txns) == 0 {
		return nil, ErrNoTransactions
	}

	symbols := mergedSymbols(holdings.Symbols(), ledger.Symbols(txns))

	start, end := ledger.Window(txns, now)
	baseline := s.reconstructor.Baseline(txns, holdings.TargetShares(), holdings.TargetCash())
	positions := s.reconstructor.Timeline(txns, baseline, start, end)

	fallback := marketdata.FallbackPriceMap(
		holdings.FallbackPrices(),
		ledger.FallbackPrices(txns),
		marketdata.DefaultBenchmarks,
	)
	fetchSymbols := append(append([]string{}, symbols...), marketdata.DefaultBenchmarks...)
	priceHistory, warnings := s.resolver.History(ctx, fetchSymbols, start, end, fallback)

	portfolioSeries := s.portfolioSeries(positions, priceHistory)

	benchmarkSeries := make(map[string][]marketdata.PricePoint)
	for _, bmk := range marketdata.DefaultBenchmarks {
		if series, ok := priceHistory[bmk]; ok {
			benchmarkSeries[bmk] = series
		}
	}

	s.log.Info().
		Int("symbols", len(symbols)).
		Int("days", len(positions)).
		Msg("Performance payload built")

	return &Response{
		StartDate:       start.Format("2006-01-02"),
		EndDate:         end.Format("2006-01-02"),
		Symbols:         symbols,
		Benchmarks:      marketdata.DefaultBenchmarks,
		Portfolio:       portfolioSeries,
		BenchmarkSeries: benchmarkSeries,
		PriceSeries:     priceHistory,
		Positions:       positionPoints(positions),
		Holdings:        holdingsSummary(holdings, positions, priceHistory),
		Warnings:        warnings,
	}, nil
}

// portfolioSeries values each day's share counts at the last known price on
// or before that day; symbols without a price that early contribute nothing
// yet.
func (s *Service) portfolioSeries(positions []ledger.PositionState, priceHistory map[string][]marketdata.PricePoint) []PortfolioPoint {
	series := make([]PortfolioPoint, 0, len(positions))
	for _, state := range positions {
		equity := 0.0
		for sym, shares := range state.Shares {
			price := marketdata.LookupPrice(priceHistory[sym], state.Date)
			if price == nil {
				continue
			}
			qty, _ := shares.Float64()
			equity += qty * *price
		}
		cash, _ := state.Cash.Float64()
		series = append(series, PortfolioPoint{
			Date:   state.Date.Format("2006-01-02"),
			Value:  equity + cash,
			Equity: equity,
			Cash:   cash,
		})
	}
	return series
}

// holdingsSummary compares each end-of-window holding against its value at
// the window start, carrying descriptions and cost basis from the snapshot.
func holdingsSummary(snapshot *portfolio.Snapshot, positions []ledger.PositionState, priceHistory map[string][]marketdata.PricePoint) []HoldingSummary {
	if len(positions) == 0 {
		return nil
	}
	startDate := positions[0].Date
	endDate := positions[len(positions)-1].Date
	startShares := positions[0].Shares
	endShares := positions[len(positions)-1].Shares

	costBySymbol := make(map[string]*float64)
	descBySymbol := make(map[string]string)
	for _, row := range snapshot.Rows {
		if row.Type != portfolio.RowPosition || row.Symbol == "" {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if row.CostBasis != nil {
			cost, _ := row.CostBasis.Float64()
			costBySymbol[sym] = &cost
		}
		if _, ok := descBySymbol[sym]; !ok {
			descBySymbol[sym] = row.Description
		}
	}

	var holdings []HoldingSummary
	for sym, endQty := range endShares {
		series := priceHistory[sym]
		priceStart := 0.0
		if p := marketdata.LookupPrice(series, startDate); p != nil {
			priceStart = *p
		}
		priceEnd := 0.0
		if p := marketdata.LookupPrice(series, endDate); p != nil {
			priceEnd = *p
		}
		startQty, _ := startShares[sym].Float64()
		endQtyF, _ := endQty.Float64()
		startValue := priceStart * startQty
		endValue := priceEnd * endQtyF

		item := HoldingSummary{
			Symbol:       sym,
			Description:  descBySymbol[sym],
			Shares:       endQtyF,
			CurrentValue: endValue,
			CostBasis:    costBySymbol[sym],
			GainAbs:      endValue - startValue,
		}
		if startValue != 0 {
			pct := (endValue - startValue) / startValue
			item.GainPct = &pct
		}
		holdings = append(holdings, item)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings
}

func positionPoints(positions []ledger.PositionState) []PositionPoint {
	points := make([]PositionPoint, 0, len(positions))
	for _, state := range positions {
		shares := make(map[string]float64, len(state.Shares))
		for sym, qty := range state.Shares {
			shares[sym], _ = qty.Float64()
		}
		cash, _ := state.Cash.Float64()
		points = append(points, PositionPoint{
			Date:   state.Date.Format("2006-01-02"),
			Shares: shares,
			Cash:   cash,
		})
	}
	return points
}

func mergedSymbols(holdings, txnSymbols []string) []string {
	seen := make(map[string]bool, len(holdings)+len(txnSymbols))
	var out []string
	for _, list := range [][]string{holdings, txnSymbols} {
		for _, sym := range list {
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
