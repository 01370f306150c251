// Package marketdata resolves daily price series for symbols over a date
// window, merging a process-local cache, a persistent cache, and a live
// fetch, with a static-price fallback so resolution never fails outright.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DefaultBenchmarks are the benchmark symbols resolved alongside holdings.
var DefaultBenchmarks = []string{"SPY", "IWM"}

// DefaultBenchmarkPrice is the flat fallback price for benchmark symbols
// with no market data at all.
const DefaultBenchmarkPrice = 100.0

// TimeframeDaily is the only timeframe the engine consumes.
const TimeframeDaily = "1Day"

// Bar is one OHLC bar for a symbol.
type Bar struct {
	Symbol    string
	Timeframe string
	Time      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *int64
	Source    string
}

// PricePoint is a dated close value; series are ascending and deduplicated
// by date.
type PricePoint struct {
	Date  time.Time
	Value float64
}

// FetchError marks a live market-data failure. The resolver converts it into
// a warning plus static fallback rather than a hard failure.
type FetchError struct {
	msg string
}

func (e *FetchError) Error() string { return e.msg }

// NewFetchError creates a FetchError with a formatted message.
func NewFetchError(format string, args ...any) *FetchError {
	return &FetchError{msg: fmt.Sprintf(format, args...)}
}

// BarFetcher fetches daily bars from a live market-data source. May suspend
// on network I/O; failures are reported as *FetchError.
type BarFetcher interface {
	FetchDailyBars(ctx context.Context, symbols []string, start, end time.Time, timeframe string) (map[string][]Bar, error)
}

// BarStore is the persistent price-bar cache. Both operations are
// best-effort: a failing store degrades resolution to live-fetch-only, it
// never aborts it.
type BarStore interface {
	GetBars(ctx context.Context, symbols []string, start, end time.Time, timeframe string) (map[string][]Bar, error)
	PutBars(ctx context.Context, bars []Bar) error
}

// hasCoverage reports whether a bar series is sufficient for a window:
// non-empty, at least 5 points, and spanning the full [start, end] range.
func hasCoverage(bars []Bar, start, end time.Time) bool {
	if len(bars) < 5 {
		return false
	}
	first := bars[0].Time
	last := bars[len(bars)-1].Time
	return !first.After(start) && !last.Before(end)
}

// mergeBars combines two per-symbol bar maps, deduplicating by timestamp
// with the fresh side winning, and returns date-ascending series.
func mergeBars(existing, fresh map[string][]Bar) map[string][]Bar {
	merged := make(map[string][]Bar, len(existing)+len(fresh))
	for _, m := range []map[string][]Bar{existing, fresh} {
		for sym, bars := range m {
			if len(bars) == 0 {
				continue
			}
			seen := make(map[time.Time]Bar, len(merged[sym])+len(bars))
			for _, bar := range merged[sym] {
				seen[bar.Time] = bar
			}
			for _, bar := range bars {
				seen[bar.Time] = bar
			}
			combined := make([]Bar, 0, len(seen))
			for _, bar := range seen {
				combined = append(combined, bar)
			}
			sort.Slice(combined, func(i, j int) bool {
				return combined[i].Time.Before(combined[j].Time)
			})
			merged[sym] = combined
		}
	}
	return merged
}

// LookupPrice returns the last price at or before the target date, nil when
// the series has no point that early.
func LookupPrice(series []PricePoint, target time.Time) *float64 {
	var price *float64
	for i := range series {
		if series[i].Date.After(target) {
			break
		}
		price = &series[i].Value
	}
	return price
}

// LatestPrice returns the final value of a series, nil when empty.
func LatestPrice(series []PricePoint) *float64 {
	if len(series) == 0 {
		return nil
	}
	return &series[len(series)-1].Value
}
