package optimization

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayana-cpc/wealthwise/internal/modules/ledger"
	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
)

func TestRequestApplyDefaults(t *testing.T) {
	var req Request
	req.ApplyDefaults()
	assert.Equal(t, "hrp", req.Method)
	assert.Equal(t, Lookback1Y, req.Lookback)
	assert.Equal(t, "SPY", req.Benchmark)
	assert.Equal(t, CovShrinkage, req.CovModel)
	assert.Equal(t, ReturnShrunkMean, req.ReturnModel)

	// Explicit values are preserved.
	req = Request{Method: "gmv", Benchmark: "IWM"}
	req.ApplyDefaults()
	assert.Equal(t, "gmv", req.Method)
	assert.Equal(t, "IWM", req.Benchmark)
}

func TestRequestUniverse(t *testing.T) {
	// Explicit override wins over holdings and ledger symbols.
	got := requestUniverse([]string{"msft", " aapl ", "MSFT"}, []string{"GOOG"}, []string{"TSLA"})
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	// Holdings next.
	got = requestUniverse(nil, []string{"GOOG", "AMZN"}, []string{"TSLA"})
	assert.Equal(t, []string{"AMZN", "GOOG"}, got)

	// Ledger symbols last.
	got = requestUniverse(nil, nil, []string{"TSLA"})
	assert.Equal(t, []string{"TSLA"}, got)

	assert.Empty(t, requestUniverse(nil, nil, nil))
}

func TestCurrentWeightVector(t *testing.T) {
	symbols := []string{"AAPL", "MSFT"}
	shares := map[string]float64{"AAPL": 10, "MSFT": 10}
	prices := map[string]float64{"AAPL": 100, "MSFT": 300}

	w := currentWeightVector(symbols, shares, prices)
	assert.InDelta(t, 0.25, w[0], 1e-12)
	assert.InDelta(t, 0.75, w[1], 1e-12)

	// No priced holdings degrades to equal weights.
	w = currentWeightVector(symbols, map[string]float64{}, prices)
	assert.Equal(t, []float64{0.5, 0.5}, w)

	// Holdings priced but entirely outside the universe also degrade.
	w = currentWeightVector(symbols, map[string]float64{"TSLA": 5}, map[string]float64{"TSLA": 200})
	assert.Equal(t, []float64{0.5, 0.5}, w)
}

func alignHistory(days int, symbols ...string) (map[string][]marketdata.PricePoint, time.Time, time.Time) {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, days-1)
	history := make(map[string][]marketdata.PricePoint, len(symbols))
	for s, sym := range symbols {
		series := make([]marketdata.PricePoint, days)
		for i := 0; i < days; i++ {
			series[i] = marketdata.PricePoint{
				Date:  start.AddDate(0, 0, i),
				Value: 100 + float64(s*10) + 0.1*float64(i),
			}
		}
		history[sym] = series
	}
	return history, start, end
}

func TestAlignPrices_DropsShortHistory(t *testing.T) {
	history, start, end := alignHistory(40, "AAPL", "MSFT")

	// XYZ is in the universe but has no history at all.
	dates, prices, usable, warnings, err := alignPrices(history, []string{"AAPL", "MSFT", "XYZ"}, start, end)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, usable)
	assert.Len(t, dates, 40)
	rows, cols := prices.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 2, cols)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Insufficient price history for XYZ")
}

func TestAlignPrices_NoUsableSymbols(t *testing.T) {
	history, start, end := alignHistory(10, "AAPL")
	_, _, _, _, err := alignPrices(history, []string{"AAPL"}, start, end)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.Contains(t, err.Error(), "No symbols with usable price history")
}

func TestAlignPrices_ClipsToWindow(t *testing.T) {
	history, start, _ := alignHistory(60, "AAPL")
	// Narrow the window so only the first 35 days qualify.
	end := start.AddDate(0, 0, 34)
	dates, _, usable, _, err := alignPrices(history, []string{"AAPL"}, start, end)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, usable)
	assert.Len(t, dates, 35)
}

func TestLookbackWindow_ClippedAtEarliest(t *testing.T) {
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	earliest := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	start, gotEnd := LookbackWindow(end, Lookback1Y, &earliest)
	assert.Equal(t, earliest, start)
	assert.Equal(t, end, gotEnd)

	// Without a clip the window reaches back a full year.
	start, _ = LookbackWindow(end, Lookback1Y, nil)
	assert.Equal(t, end.AddDate(0, 0, -365), start)
}

type runFetcher struct {
	bases map[string]float64
}

func (f *runFetcher) FetchDailyBars(ctx context.Context, symbols []string, start, end time.Time, timeframe string) (map[string][]marketdata.Bar, error) {
	out := make(map[string][]marketdata.Bar, len(symbols))
	for _, sym := range symbols {
		base, ok := f.bases[sym]
		if !ok {
			base = 100
		}
		var bars []marketdata.Bar
		for i, d := 0, marketdata.Day(start); !d.After(end); i, d = i+1, d.AddDate(0, 0, 1) {
			bars = append(bars, marketdata.Bar{
				Symbol: sym,
				Time:   d,
				Close:  base * (1 + 0.0004*float64(i)),
			})
		}
		out[sym] = bars
	}
	return out, nil
}

func TestRun_EqualWeightEndToEnd(t *testing.T) {
	fetcher := &runFetcher{bases: map[string]float64{"AAPL": 150, "MSFT": 300, "SPY": 400}}
	resolver := marketdata.NewResolver(marketdata.NewMemoryCache(), nil, fetcher, zerolog.Nop())
	svc := newTestService(resolver)

	holdings, records := runFixture()
	req := Request{Method: "equal_weight"}

	resp, err := svc.Run(context.Background(), req, holdings, records)
	require.NoError(t, err)

	assert.Equal(t, "equal_weight", resp.Method)
	assert.Equal(t, []string{"AAPL", "MSFT"}, resp.Universe)
	assert.Equal(t, "SPY", resp.Benchmark)

	assert.InDelta(t, 0.5, resp.Weights.Recommended["AAPL"], 1e-9)
	assert.InDelta(t, 0.5, resp.Weights.Recommended["MSFT"], 1e-9)
	assert.InDelta(t, 0.5, resp.Weights.EqualWeight["AAPL"], 1e-9)

	require.Len(t, resp.Trades, 2)
	require.NotEmpty(t, resp.Backtest)
	assert.Equal(t, 1.0, resp.Backtest[0].Recommended)
	require.Contains(t, resp.Metrics, "recommended")
	require.Contains(t, resp.Metrics, "benchmark")

	assert.Equal(t, CovShrinkage, resp.Explain.CovarianceModel)
	assert.Equal(t, ReturnShrunkMean, resp.Explain.ReturnModel)
	assert.Len(t, resp.Explain.ExpectedReturnsAnnualized, 2)
	assert.Greater(t, resp.LookbackDays, 0)
}

func TestRun_NoSymbols(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.Run(context.Background(), Request{}, &portfolio.Snapshot{}, nil)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}

func TestRun_UnknownBenchmarkWarns(t *testing.T) {
	fetcher := &runFetcher{bases: map[string]float64{"AAPL": 150, "MSFT": 300, "QQQ": 380}}
	resolver := marketdata.NewResolver(marketdata.NewMemoryCache(), nil, fetcher, zerolog.Nop())
	svc := newTestService(resolver)

	holdings, records := runFixture()
	req := Request{Method: "equal_weight", Benchmark: "QQQ"}

	resp, err := svc.Run(context.Background(), req, holdings, records)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "Benchmark QQQ not in defaults")
}

func newTestService(resolver *marketdata.Resolver) *Service {
	return NewService(resolver, ledger.NewReconstructor(zerolog.Nop()), zerolog.Nop())
}

// runFixture is a two-position portfolio bought about three months ago, far
// enough back for a usable overlapping history window.
func runFixture() (*portfolio.Snapshot, []portfolio.TransactionRecord) {
	qtyA := decimal.NewFromInt(10)
	qtyM := decimal.NewFromInt(5)
	cash := decimal.NewFromInt(1000)
	holdings := &portfolio.Snapshot{Rows: []portfolio.Row{
		{Symbol: "AAPL", Type: portfolio.RowPosition, Quantity: &qtyA},
		{Symbol: "MSFT", Type: portfolio.RowPosition, Quantity: &qtyM},
		{Symbol: "CASH", Type: portfolio.RowCash, MarketValue: &cash},
	}}
	txnDate := time.Now().UTC().AddDate(0, -3, 0).Format("01/02/2006")
	records := []portfolio.TransactionRecord{
		{Date: txnDate, Action: "YOU BOUGHT", Symbol: "AAPL", Quantity: "10", Price: "150.00", Amount: "-1500.00"},
		{Date: txnDate, Action: "YOU BOUGHT", Symbol: "MSFT", Quantity: "5", Price: "300.00", Amount: "-1500.00"},
	}
	return holdings, records
}
