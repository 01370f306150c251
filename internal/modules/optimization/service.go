package optimization

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/jayana-cpc/wealthwise/internal/modules/ledger"
	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
)

// minHistoryPoints is the per-symbol bar count below which a symbol is
// dropped from the universe, and the overlapping-date count below which
// results are flagged as unstable.
const minHistoryPoints = 30

// minOverlapDates is the hard floor of overlapping dates; below it the run
// is rejected.
const minOverlapDates = 5

// Service runs portfolio optimizations against resolved price history.
type Service struct {
	resolver      *marketdata.Resolver
	reconstructor *ledger.Reconstructor
	log           zerolog.Logger
}

// NewService creates an optimization service.
func NewService(resolver *marketdata.Resolver, reconstructor *ledger.Reconstructor, log zerolog.Logger) *Service {
	return &Service{
		resolver:      resolver,
		reconstructor: reconstructor,
		log:           log.With().Str("component", "optimization").Logger(),
	}
}

// ListMethods returns the allocation method registry.
func (s *Service) ListMethods() []Method {
	return AvailableMethods
}

// Run executes one optimization: reconstruct positions from the ledger,
// resolve price history, estimate risk, allocate, constrain, and backtest.
func (s *Service) Run(ctx context.Context, req Request, holdings *portfolio.Snapshot, records []portfolio.TransactionRecord) (*Response, error) {
	req.ApplyDefaults()
	now := time.Now().UTC()

	txns := ledger.ParseRecords(records, now, s.log)

	symbols := requestUniverse(req.Universe, holdings.Symbols(), ledger.Symbols(txns))
	if len(symbols) == 0 {
		return nil, NewInputError("No symbols detected in holdings or transactions.")
	}

	targetShares := holdings.TargetShares()
	targetCash := holdings.TargetCash()

	txnStart, txnEnd := ledger.Window(txns, now)
	baseline := s.reconstructor.Baseline(txns, targetShares, targetCash)
	positions := s.reconstructor.Timeline(txns, baseline, txnStart, txnEnd)

	cashBalance, _ := targetCash.Float64()
	if len(positions) > 0 {
		cashBalance, _ = positions[len(positions)-1].Cash.Float64()
	}

	start, end := LookbackWindow(txnEnd, req.Lookback, &txnStart)

	var warnings []string
	fetchSymbols := symbols
	if !contains(symbols, req.Benchmark) {
		fetchSymbols = append(append([]string{}, symbols...), req.Benchmark)
	}
	if !contains(marketdata.DefaultBenchmarks, req.Benchmark) {
		warnings = append(warnings, "Benchmark "+req.Benchmark+" not in defaults ("+strings.Join(marketdata.DefaultBenchmarks, ", ")+").")
	}

	fallback := marketdata.FallbackPriceMap(
		holdings.FallbackPrices(),
		ledger.FallbackPrices(txns),
		marketdata.DefaultBenchmarks,
	)

	history, histWarnings := s.resolver.History(ctx, fetchSymbols, start, end, fallback)
	warnings = append(warnings, histWarnings...)

	dates, priceMatrix, usable, alignWarnings, err := alignPrices(history, symbols, start, end)
	warnings = append(warnings, alignWarnings...)
	if err != nil {
		return nil, err
	}
	symbols = usable

	latestPrices := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if p := marketdata.LatestPrice(history[sym]); p != nil {
			latestPrices[sym] = *p
		}
	}

	returns := ReturnsMatrix(priceMatrix)
	if t, _ := returns.Dims(); t < 2 {
		return nil, NewInputError("Not enough return observations for optimization.")
	}

	expectedRet := ExpectedReturns(priceMatrix, returns, req.ReturnModel)
	cov := CovarianceFor(req.CovModel, returns)

	targetWeights, err := OptimizeWeights(req.Method, cov)
	if err != nil {
		return nil, err
	}
	var minW, maxW, maxTurnover, budget *float64
	if req.Constraints != nil {
		minW = req.Constraints.MinPositionPct
		maxW = req.Constraints.MaxPositionPct
		maxTurnover = req.Constraints.MaxTurnover
		budget = req.Constraints.RebalanceBudget
	}
	targetWeights = ApplyWeightLimits(targetWeights, minW, maxW)

	sharesFloat := make(map[string]float64, len(targetShares))
	for sym, qty := range targetShares {
		sharesFloat[sym], _ = qty.Float64()
	}
	currentWeights := currentWeightVector(symbols, sharesFloat, latestPrices)
	targetWeights = EnforceTurnover(targetWeights, currentWeights, maxTurnover)
	equalWeights := EqualWeights(len(symbols))

	portfolioValue := cashBalance
	for sym, qty := range sharesFloat {
		if price, ok := latestPrices[sym]; ok {
			portfolioValue += qty * price
		}
	}

	target := weightMap(symbols, targetWeights)
	current := weightMap(symbols, currentWeights)
	equal := weightMap(symbols, equalWeights)

	trades := TradeSuggestions(symbols, target, current, latestPrices, portfolioValue, cashBalance, budget)

	benchmarkSeries := history[req.Benchmark]
	if len(benchmarkSeries) == 0 {
		warnings = append(warnings, "No price history for benchmark "+req.Benchmark+"; overlay omitted.")
	}
	backtest, metrics := BacktestCurves(dates, priceMatrix, targetWeights, currentWeights, equalWeights, benchmarkSeries)

	explain := Explain{
		CovarianceModel:           req.CovModel,
		ReturnModel:               req.ReturnModel,
		ExpectedReturnsAnnualized: weightMap(symbols, expectedRet),
		Notes: []string{
			"Long-only weights projected to simplex (sum=1); shorting is currently disabled.",
			"Turnover constraint blends toward current weights when specified.",
			"Buy notional is capped by rebalance_budget when provided; sells are never scaled.",
		},
	}
	if req.Constraints != nil {
		explain.Constraints = *req.Constraints
	}

	lookbackDays := 0
	if len(dates) > 0 {
		lookbackDays = int(dates[len(dates)-1].Sub(dates[0]).Hours() / 24)
	}

	s.log.Info().
		Str("method", req.Method).
		Int("universe", len(symbols)).
		Int("lookback_days", lookbackDays).
		Msg("Optimization complete")

	return &Response{
		Method:       req.Method,
		Goal:         MethodGoal(req.Method),
		Universe:     symbols,
		LookbackDays: lookbackDays,
		Benchmark:    req.Benchmark,
		Weights: Weights{
			Recommended: target,
			Current:     current,
			EqualWeight: equal,
		},
		Trades:   trades,
		Metrics:  metrics,
		Backtest: backtest,
		Explain:  explain,
		Warnings: warnings,
	}, nil
}

// alignPrices intersects the per-symbol series to the dates every usable
// symbol covers and lays the closes out as a dates x symbols matrix.
// Symbols with too little history are dropped with a warning.
func alignPrices(history map[string][]marketdata.PricePoint, symbols []string, start, end time.Time) ([]time.Time, *mat.Dense, []string, []string, error) {
	var warnings []string
	symbolMaps := make(map[string]map[time.Time]float64)
	var usable []string
	for _, sym := range symbols {
		filtered := make(map[time.Time]float64)
		for _, p := range history[sym] {
			day := marketdata.Day(p.Date)
			if day.Before(start) || day.After(end) {
				continue
			}
			filtered[day] = p.Value
		}
		if len(filtered) < minHistoryPoints {
			warnings = append(warnings, "Insufficient price history for "+sym+"; dropped from optimization universe.")
			continue
		}
		symbolMaps[sym] = filtered
		usable = append(usable, sym)
	}
	if len(usable) == 0 {
		return nil, nil, nil, warnings, NewInputError("No symbols with usable price history.")
	}

	common := make(map[time.Time]int)
	for _, m := range symbolMaps {
		for d := range m {
			common[d]++
		}
	}
	var dates []time.Time
	for d, count := range common {
		if count == len(usable) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if len(dates) < minHistoryPoints {
		warnings = append(warnings, "Limited overlapping price history across symbols; results may be unstable.")
	}
	if len(dates) < minOverlapDates {
		return nil, nil, nil, warnings, NewInputError("Not enough overlapping dates for optimization.")
	}

	prices := mat.NewDense(len(dates), len(usable), nil)
	for col, sym := range usable {
		m := symbolMaps[sym]
		for row, d := range dates {
			prices.Set(row, col, m[d])
		}
	}
	return dates, prices, usable, warnings, nil
}

// requestUniverse picks the first non-empty source, deduplicated and
// sorted: explicit override, then holdings, then ledger symbols.
func requestUniverse(override, holdings, txnSymbols []string) []string {
	source := override
	if len(source) == 0 {
		source = holdings
	}
	if len(source) == 0 {
		source = txnSymbols
	}
	seen := make(map[string]bool, len(source))
	var out []string
	for _, sym := range source {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// currentWeightVector derives market-value weights over the universe from
// held shares; with no priced holdings it degrades to equal weights.
func currentWeightVector(symbols []string, shares, prices map[string]float64) []float64 {
	totals := make(map[string]float64)
	var totalValue float64
	for sym, qty := range shares {
		price, ok := prices[sym]
		if !ok || qty <= 0 {
			continue
		}
		totals[sym] = qty * price
		totalValue += qty * price
	}
	if totalValue <= 0 {
		return EqualWeights(len(symbols))
	}
	w := make([]float64, len(symbols))
	var sum float64
	for i, sym := range symbols {
		w[i] = totals[sym] / totalValue
		sum += w[i]
	}
	if sum <= 0 {
		return EqualWeights(len(symbols))
	}
	return w
}

func weightMap(symbols []string, weights []float64) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		out[sym] = weights[i]
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
