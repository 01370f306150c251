package risk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
	"github.com/jayana-cpc/wealthwise/pkg/formulas"
)

const (
	lookbackDays    = 252
	benchmarkSymbol = "SPY"
)

// Service computes risk snapshots. Analysis never fails: missing or broken
// market data degrades the snapshot status instead.
type Service struct {
	resolver *marketdata.Resolver
	log      zerolog.Logger
}

// NewService creates a risk service.
func NewService(resolver *marketdata.Resolver, log zerolog.Logger) *Service {
	return &Service{
		resolver: resolver,
		log:      log.With().Str("component", "risk").Logger(),
	}
}

// Analyze builds a risk snapshot of the holdings. Basic mode is purely
// positional (concentration and scenario shocks); enriched mode adds
// history-based market metrics when enough data can be resolved.
func (s *Service) Analyze(ctx context.Context, holdings *portfolio.Snapshot, mode string) *Snapshot {
	values := holdings.MarketValues()
	weights := weightsFromValues(values)

	var portfolioValue float64
	for _, v := range values {
		portfolioValue += v
	}

	snapshot := &Snapshot{
		ID:             uuid.New().String(),
		Mode:           mode,
		PortfolioValue: portfolioValue,
		Weights:        weights,
		Concentration:  concentration(weights),
		Scenarios:      scenarioImpacts(portfolioValue, weights),
	}

	status := MarketDataSkipped
	if mode == ModeEnriched && len(weights) > 0 {
		symbols := make([]string, 0, len(weights)+1)
		for sym := range weights {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		if _, ok := weights[benchmarkSymbol]; !ok {
			symbols = append(symbols, benchmarkSymbol)
		}

		end := time.Now().UTC()
		lookbackSpan := float64(lookbackDays) * 1.6
		start := end.AddDate(0, 0, -int(lookbackSpan))
		bars, _, err := s.resolver.LoadBars(ctx, symbols, start, end)
		switch {
		case err != nil:
			status = fmt.Sprintf("error: %v", err)
			s.log.Warn().Err(err).Msg("market metrics unavailable")
		default:
			if metrics := computeMarketMetrics(bars, weights); metrics != nil {
				snapshot.MarketMetrics = metrics
				status = MarketDataOK
			} else {
				status = MarketDataInsufficient
			}
		}
	}
	snapshot.MarketDataStatus = status

	switch status {
	case MarketDataOK, MarketDataSkipped, MarketDataInsufficient:
		snapshot.Status = StatusCompleted
	default:
		snapshot.Status = StatusDegraded
		snapshot.Error = status
	}

	s.log.Info().
		Str("mode", mode).
		Str("status", snapshot.Status).
		Int("positions", len(weights)).
		Msg("Risk snapshot computed")
	return snapshot
}

func weightsFromValues(values map[string]float64) map[string]float64 {
	var total float64
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return map[string]float64{}
	}
	weights := make(map[string]float64, len(values))
	for sym, v := range values {
		if v > 0 {
			weights[sym] = v / total
		}
	}
	return weights
}

func concentration(weights map[string]float64) Concentration {
	var c Concentration
	if len(weights) == 0 {
		return c
	}
	var hhi float64
	positions := make([]TopPosition, 0, len(weights))
	for sym, w := range weights {
		hhi += w * w
		positions = append(positions, TopPosition{Symbol: sym, Weight: w})
	}
	c.HHI = &hhi
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Weight != positions[j].Weight {
			return positions[i].Weight > positions[j].Weight
		}
		return positions[i].Symbol < positions[j].Symbol
	})
	if len(positions) > 5 {
		positions = positions[:5]
	}
	c.TopPositions = positions
	return c
}

func scenarioImpacts(portfolioValue float64, weights map[string]float64) Scenarios {
	out := Scenarios{
		PortfolioValue: portfolioValue,
		Shocks:         make(map[string]ShockImpact, len(ScenarioShocks)),
	}
	for _, shock := range ScenarioShocks {
		changes := make(map[string]float64, len(weights))
		for sym, w := range weights {
			changes[sym] = w * portfolioValue * shock
		}
		out.Shocks[strconv.FormatFloat(shock, 'g', -1, 64)] = ShockImpact{
			PortfolioChange: portfolioValue * shock,
			HoldingChanges:  changes,
		}
	}
	return out
}

// computeMarketMetrics derives portfolio statistics from bar history.
// Returns nil whenever alignment leaves too little to work with; the caller
// records that as insufficient data.
func computeMarketMetrics(bars map[string][]marketdata.Bar, weights map[string]float64) *MarketMetrics {
	if _, ok := bars[benchmarkSymbol]; !ok {
		return nil
	}
	var symbols []string
	for sym := range weights {
		if sym != benchmarkSymbol {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return nil
	}

	aligned := append(append([]string{}, symbols...), benchmarkSymbol)
	dates, returnsBySymbol := alignReturns(bars, aligned)
	if returnsBySymbol == nil {
		return nil
	}

	var usable []string
	for _, sym := range symbols {
		if _, ok := returnsBySymbol[sym]; ok {
			usable = append(usable, sym)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	benchReturns := returnsBySymbol[benchmarkSymbol]
	portfolioReturns := make([]float64, len(benchReturns))
	for _, sym := range usable {
		series := returnsBySymbol[sym]
		if len(series) != len(benchReturns) {
			return nil
		}
		w := weights[sym]
		for i, r := range series {
			portfolioReturns[i] += w * r
		}
	}

	metrics := &MarketMetrics{
		LookbackDays: lookbackDays,
		Benchmark:    benchmarkSymbol,
		SymbolsUsed:  usable,
		CoverageDays: len(dates),
	}
	if len(portfolioReturns) > 0 {
		vol := formulas.AnnualizedVolatility(portfolioReturns)
		metrics.Volatility = &vol
		metrics.MaxDrawdown = drawdownFromReturns(portfolioReturns)
	}
	metrics.Beta = formulas.Beta(portfolioReturns, benchReturns)

	if len(usable) > 1 {
		var sum float64
		var count int
		for i := 0; i < len(usable); i++ {
			for j := i + 1; j < len(usable); j++ {
				sum += formulas.Correlation(returnsBySymbol[usable[i]], returnsBySymbol[usable[j]])
				count++
			}
		}
		if count > 0 {
			avg := sum / float64(count)
			metrics.AvgCorrelation = &avg
		}
	}
	return metrics
}

// alignReturns intersects the symbols' bar dates and computes daily returns
// over the common dates. Any symbol without bars, or fewer than two common
// dates, aborts alignment.
func alignReturns(bars map[string][]marketdata.Bar, symbols []string) ([]time.Time, map[string][]float64) {
	daily := make(map[string]map[time.Time]float64, len(symbols))
	for _, sym := range symbols {
		series := bars[sym]
		if len(series) == 0 {
			return nil, nil
		}
		closes := make(map[time.Time]float64, len(series))
		for _, bar := range series {
			closes[marketdata.Day(bar.Time)] = bar.Close
		}
		daily[sym] = closes
	}

	counts := make(map[time.Time]int)
	for _, closes := range daily {
		for d := range closes {
			counts[d]++
		}
	}
	var dates []time.Time
	for d, c := range counts {
		if c == len(symbols) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) < 2 {
		return nil, nil
	}

	returns := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		closes := make([]float64, len(dates))
		for i, d := range dates {
			closes[i] = daily[sym][d]
		}
		returns[sym] = formulas.SimpleReturns(closes)
	}
	return dates[1:], returns
}

// drawdownFromReturns compounds a return series and reports the deepest
// drawdown as a signed (non-positive) fraction.
func drawdownFromReturns(returns []float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	cumulative := 1.0
	peak := 1.0
	minDD := 0.0
	for _, r := range returns {
		cumulative *= 1.0 + r
		if cumulative > peak {
			peak = cumulative
		}
		dd := cumulative/peak - 1.0
		if dd < minDD {
			minDD = dd
		}
	}
	return &minDD
}
