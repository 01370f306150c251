package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	bars     map[string][]Bar
	getErr   error
	putErr   error
	getCalls int
	putCalls int
	putBars  []Bar
}

func (s *fakeStore) GetBars(_ context.Context, symbols []string, start, end time.Time, _ string) (map[string][]Bar, error) {
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make(map[string][]Bar)
	for _, sym := range symbols {
		if bars, ok := s.bars[sym]; ok {
			out[sym] = bars
		}
	}
	return out, nil
}

func (s *fakeStore) PutBars(_ context.Context, bars []Bar) error {
	s.putCalls++
	if s.putErr != nil {
		return s.putErr
	}
	s.putBars = append(s.putBars, bars...)
	return nil
}

type fakeFetcher struct {
	bars  map[string][]Bar
	err   error
	calls int
	asked []string
}

func (f *fakeFetcher) FetchDailyBars(_ context.Context, symbols []string, _, _ time.Time, _ string) (map[string][]Bar, error) {
	f.calls++
	f.asked = append(f.asked, symbols...)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]Bar)
	for _, sym := range symbols {
		if bars, ok := f.bars[sym]; ok {
			out[sym] = bars
		}
	}
	return out, nil
}

func barSeries(symbol string, start time.Time, days int, close float64) []Bar {
	bars := make([]Bar, 0, days)
	for i := 0; i < days; i++ {
		bars = append(bars, Bar{
			Symbol:    symbol,
			Timeframe: TimeframeDaily,
			Time:      start.AddDate(0, 0, i),
			Close:     close,
		})
	}
	return bars
}

func testWindow() (time.Time, time.Time) {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 9)
}

func TestHasCoverage(t *testing.T) {
	start, end := testWindow()
	assert.True(t, hasCoverage(barSeries("A", start, 10, 100), start, end))
	// Too few bars.
	assert.False(t, hasCoverage(barSeries("A", start, 4, 100), start, end))
	// Does not span the window end.
	assert.False(t, hasCoverage(barSeries("A", start, 6, 100), start, end))
	assert.False(t, hasCoverage(nil, start, end))
}

func TestMergeBars_FreshWinsOnSameTimestamp(t *testing.T) {
	start, _ := testWindow()
	existing := map[string][]Bar{"A": barSeries("A", start, 3, 100)}
	fresh := map[string][]Bar{"A": barSeries("A", start.AddDate(0, 0, 2), 2, 200)}

	merged := mergeBars(existing, fresh)
	require.Len(t, merged["A"], 4)
	// Overlapping bar at day 2 takes the fresh close.
	assert.Equal(t, 200.0, merged["A"][2].Close)
	// Series stays date-ascending.
	for i := 1; i < len(merged["A"]); i++ {
		assert.True(t, merged["A"][i-1].Time.Before(merged["A"][i].Time))
	}
}

func TestLoadBars_MemoryHitSkipsStoreAndFetch(t *testing.T) {
	start, end := testWindow()
	mem := NewMemoryCache()
	mem.Replace("A", barSeries("A", start, 10, 100))
	store := &fakeStore{}
	fetcher := &fakeFetcher{}
	r := NewResolver(mem, store, fetcher, zerolog.Nop())

	bars, warnings, err := r.LoadBars(context.Background(), []string{"A"}, start, end)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, bars["A"], 10)
	assert.Equal(t, 0, fetcher.calls)
}

func TestLoadBars_StoreCoverageAvoidsFetch(t *testing.T) {
	start, end := testWindow()
	store := &fakeStore{bars: map[string][]Bar{"A": barSeries("A", start, 10, 100)}}
	fetcher := &fakeFetcher{}
	mem := NewMemoryCache()
	r := NewResolver(mem, store, fetcher, zerolog.Nop())

	bars, _, err := r.LoadBars(context.Background(), []string{"A"}, start, end)
	require.NoError(t, err)
	assert.Len(t, bars["A"], 10)
	assert.Equal(t, 0, fetcher.calls)
	// Resolved series lands in the process cache for next time.
	assert.Len(t, mem.Get("A"), 10)
}

func TestLoadBars_FetchesOnlyUncoveredSymbols(t *testing.T) {
	start, end := testWindow()
	store := &fakeStore{bars: map[string][]Bar{"A": barSeries("A", start, 10, 100)}}
	fetcher := &fakeFetcher{bars: map[string][]Bar{"B": barSeries("B", start, 10, 50)}}
	r := NewResolver(NewMemoryCache(), store, fetcher, zerolog.Nop())

	bars, _, err := r.LoadBars(context.Background(), []string{"A", "B"}, start, end)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, fetcher.asked)
	assert.Len(t, bars["A"], 10)
	assert.Len(t, bars["B"], 10)
	// Fresh bars are persisted back to the store.
	assert.Equal(t, 1, store.putCalls)
	assert.Len(t, store.putBars, 10)
}

func TestLoadBars_StoreFailureDegradesToWarning(t *testing.T) {
	start, end := testWindow()
	store := &fakeStore{getErr: errors.New("disk gone")}
	fetcher := &fakeFetcher{bars: map[string][]Bar{"A": barSeries("A", start, 10, 100)}}
	r := NewResolver(NewMemoryCache(), store, fetcher, zerolog.Nop())

	bars, warnings, err := r.LoadBars(context.Background(), []string{"A"}, start, end)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Cache unavailable, fetching fresh prices only")
	assert.Len(t, bars["A"], 10)
}

func TestLoadBars_PutFailureDegradesToWarning(t *testing.T) {
	start, end := testWindow()
	store := &fakeStore{putErr: errors.New("readonly")}
	fetcher := &fakeFetcher{bars: map[string][]Bar{"A": barSeries("A", start, 10, 100)}}
	r := NewResolver(NewMemoryCache(), store, fetcher, zerolog.Nop())

	_, warnings, err := r.LoadBars(context.Background(), []string{"A"}, start, end)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Could not persist price cache")
}

func TestHistory_ClipsToWindow(t *testing.T) {
	start, end := testWindow()
	// Bars extend beyond the window on both sides.
	series := barSeries("A", start.AddDate(0, 0, -3), 16, 100)
	fetcher := &fakeFetcher{bars: map[string][]Bar{"A": series}}
	r := NewResolver(NewMemoryCache(), &fakeStore{}, fetcher, zerolog.Nop())

	history, warnings := r.History(context.Background(), []string{"A"}, start, end, nil)
	assert.Empty(t, warnings)
	require.Len(t, history["A"], 10)
	assert.False(t, history["A"][0].Date.Before(start))
	assert.False(t, history["A"][len(history["A"])-1].Date.After(end))
}

func TestHistory_FetchErrorFallsBackToStaticPrices(t *testing.T) {
	start, end := testWindow()
	fetcher := &fakeFetcher{err: NewFetchError("alpaca request failed: status 503")}
	r := NewResolver(NewMemoryCache(), &fakeStore{}, fetcher, zerolog.Nop())

	history, warnings := r.History(context.Background(), []string{"A"}, start, end, map[string]float64{"A": 123.45})
	require.Len(t, history["A"], 2)
	assert.Equal(t, start, history["A"][0].Date)
	assert.Equal(t, end, history["A"][1].Date)
	assert.Equal(t, 123.45, history["A"][0].Value)
	assert.Equal(t, 123.45, history["A"][1].Value)

	var joined string
	for _, w := range warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "Falling back to static prices")
	assert.Contains(t, joined, "No market data for A; using static price $123.45")
}

func TestHistory_FlatFallbackSeriesHasZeroVolatility(t *testing.T) {
	start, end := testWindow()
	fetcher := &fakeFetcher{err: NewFetchError("unavailable")}
	r := NewResolver(NewMemoryCache(), &fakeStore{}, fetcher, zerolog.Nop())

	history, _ := r.History(context.Background(), []string{"SPY"}, start, end, map[string]float64{"SPY": 100})
	require.Len(t, history["SPY"], 2)
	assert.Equal(t, history["SPY"][0].Value, history["SPY"][1].Value)
}

func TestFallbackPriceMap_Precedence(t *testing.T) {
	out := FallbackPriceMap(
		map[string]float64{"AAPL": 150},
		map[string]float64{"AAPL": 140, "MSFT": 300},
		[]string{"SPY", "IWM"},
	)
	assert.Equal(t, 150.0, out["AAPL"], "position price beats ledger hint")
	assert.Equal(t, 300.0, out["MSFT"])
	assert.Equal(t, DefaultBenchmarkPrice, out["SPY"])
	assert.Equal(t, DefaultBenchmarkPrice, out["IWM"])
}

func TestLookupPrice(t *testing.T) {
	start, _ := testWindow()
	series := []PricePoint{
		{Date: start, Value: 10},
		{Date: start.AddDate(0, 0, 2), Value: 12},
	}
	assert.Nil(t, LookupPrice(series, start.AddDate(0, 0, -1)))
	require.NotNil(t, LookupPrice(series, start.AddDate(0, 0, 1)))
	assert.Equal(t, 10.0, *LookupPrice(series, start.AddDate(0, 0, 1)))
	assert.Equal(t, 12.0, *LookupPrice(series, start.AddDate(0, 0, 5)))
}

func TestDay_NormalizesZoneBeforeTruncating(t *testing.T) {
	// 23:00 in UTC-5 is 04:00 the next day in UTC.
	est := time.FixedZone("EST", -5*3600)
	got := Day(time.Date(2024, 3, 1, 23, 0, 0, 0, est))
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), got)

	utc := Day(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), utc)
}
