package marketdata

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshJob_DedupesAndAddsBenchmarks(t *testing.T) {
	job := NewRefreshJob(nil, []string{"AAPL", "AAPL", "", "SPY"}, zerolog.Nop())
	assert.Equal(t, []string{"AAPL", "SPY", "IWM"}, job.symbols)
	assert.Equal(t, "price_cache_refresh", job.Name())
}

func TestRefreshJob_Run(t *testing.T) {
	fetcher := &fakeFetcher{bars: map[string][]Bar{}}
	resolver := NewResolver(NewMemoryCache(), nil, fetcher, zerolog.Nop())
	job := NewRefreshJob(resolver, []string{"AAPL"}, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.GreaterOrEqual(t, fetcher.calls, 1)
}

func TestRefreshJob_RunAllChunksFailing(t *testing.T) {
	fetcher := &fakeFetcher{err: NewFetchError("feed offline")}
	resolver := NewResolver(NewMemoryCache(), nil, fetcher, zerolog.Nop())
	job := NewRefreshJob(resolver, []string{"AAPL"}, zerolog.Nop())

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed for all")
}
