package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Resolver layers the three price sources: the in-process cache, the
// persistent bar store, and the live fetcher. Resolution prefers cached
// coverage and only fetches symbols the caches cannot serve.
type Resolver struct {
	mem       *MemoryCache
	store     BarStore
	fetcher   BarFetcher
	timeframe string
	log       zerolog.Logger
}

// NewResolver creates a resolver over the given tiers. store may be nil when
// no persistent cache is configured.
func NewResolver(mem *MemoryCache, store BarStore, fetcher BarFetcher, log zerolog.Logger) *Resolver {
	return &Resolver{
		mem:       mem,
		store:     store,
		fetcher:   fetcher,
		timeframe: TimeframeDaily,
		log:       log.With().Str("component", "price_resolver").Logger(),
	}
}

// LoadBars resolves daily bars for symbols over [start, end]. Cache tiers
// are consulted in order; only symbols without coverage reach the live
// fetcher. Store failures degrade to warnings, fetch failures are returned
// as an error for the caller to decide on.
func (r *Resolver) LoadBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]Bar, []string, error) {
	var warnings []string

	memoryHits := make(map[string][]Bar)
	for _, sym := range symbols {
		bars := r.mem.Get(sym)
		if hasCoverage(bars, start, end) {
			memoryHits[sym] = bars
		}
	}

	cached := make(map[string][]Bar)
	if r.store != nil {
		stored, err := r.store.GetBars(ctx, symbols, start, end, r.timeframe)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Cache unavailable, fetching fresh prices only (%v).", err))
			r.log.Warn().Err(err).Msg("persistent price cache read failed")
		} else {
			cached = stored
		}
	}

	merged := mergeBars(memoryHits, cached)

	var missing []string
	for _, sym := range symbols {
		if !hasCoverage(merged[sym], start, end) {
			missing = append(missing, sym)
		}
	}

	fresh := make(map[string][]Bar)
	if len(missing) > 0 {
		fetched, err := r.fetcher.FetchDailyBars(ctx, missing, start, end, r.timeframe)
		if err != nil {
			return nil, warnings, err
		}
		fresh = fetched
		if len(fresh) > 0 && r.store != nil {
			var flat []Bar
			for _, bars := range fresh {
				flat = append(flat, bars...)
			}
			if err := r.store.PutBars(ctx, flat); err != nil {
				warnings = append(warnings, fmt.Sprintf("Could not persist price cache: %v", err))
				r.log.Warn().Err(err).Msg("persistent price cache write failed")
			}
		}
	}

	combined := mergeBars(merged, fresh)
	for sym, bars := range combined {
		r.mem.Replace(sym, bars)
	}
	r.log.Debug().
		Int("symbols", len(symbols)).
		Int("memory_hits", len(memoryHits)).
		Int("fetched", len(missing)).
		Msg("resolved price bars")
	return combined, warnings, nil
}

// History resolves close-price series for symbols over [start, end]. It
// never fails: when live data is unavailable every unresolved symbol with a
// fallback price gets a flat two-point series instead, with a warning.
//
// fallbackPrices should carry a static price for every symbol that must end
// up in the result; symbols without bars and without a fallback are omitted.
func (r *Resolver) History(ctx context.Context, symbols []string, start, end time.Time, fallbackPrices map[string]float64) (map[string][]PricePoint, []string) {
	bars, warnings, err := r.LoadBars(ctx, symbols, start, end)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			warnings = append(warnings, fmt.Sprintf("Market data error: %v. Falling back to static prices.", err))
		} else {
			warnings = append(warnings, fmt.Sprintf("Market data unavailable: %v. Using static prices.", err))
		}
		r.log.Warn().Err(err).Msg("falling back to static prices")
		bars = nil
	}

	history := make(map[string][]PricePoint)
	for sym, series := range bars {
		if len(series) == 0 {
			continue
		}
		var points []PricePoint
		for _, bar := range series {
			day := Day(bar.Time)
			if day.Before(start) || day.After(end) {
				continue
			}
			points = append(points, PricePoint{Date: day, Value: bar.Close})
		}
		if len(points) > 0 {
			history[sym] = points
		}
	}

	for sym, price := range fallbackPrices {
		if _, ok := history[sym]; ok {
			continue
		}
		history[sym] = []PricePoint{
			{Date: start, Value: price},
			{Date: end, Value: price},
		}
		warnings = append(warnings, fmt.Sprintf("No market data for %s; using static price $%.2f.", sym, price))
	}
	return history, warnings
}

// FallbackPriceMap assembles the static-price map for History: position
// prices first, transaction price hints for symbols the positions miss, and
// a default price for benchmark symbols with neither.
func FallbackPriceMap(positions, hints map[string]float64, benchmarks []string) map[string]float64 {
	out := make(map[string]float64, len(positions)+len(hints)+len(benchmarks))
	for sym, price := range positions {
		out[sym] = price
	}
	for sym, price := range hints {
		if _, ok := out[sym]; !ok {
			out[sym] = price
		}
	}
	for _, sym := range benchmarks {
		if _, ok := out[sym]; !ok {
			out[sym] = DefaultBenchmarkPrice
		}
	}
	return out
}

// Day truncates a timestamp to UTC midnight; price series are keyed by day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
