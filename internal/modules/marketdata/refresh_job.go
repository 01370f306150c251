package marketdata

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	refreshLookback   = 400 * 24 * time.Hour
	refreshChunkSize  = 25
	refreshTimeout    = 5 * time.Minute
	refreshConcurrent = 3
)

// RefreshJob pre-warms the price caches on a schedule so interactive
// requests find coverage in the cache tiers instead of paying for a live
// fetch.
type RefreshJob struct {
	resolver *Resolver
	symbols  []string
	log      zerolog.Logger
}

// NewRefreshJob creates a cache refresh job for the given symbols.
// Benchmark symbols are refreshed even when symbols omits them.
func NewRefreshJob(resolver *Resolver, symbols []string, log zerolog.Logger) *RefreshJob {
	all := make([]string, 0, len(symbols)+len(DefaultBenchmarks))
	seen := make(map[string]bool, len(symbols)+len(DefaultBenchmarks))
	for _, sym := range symbols {
		if sym != "" && !seen[sym] {
			seen[sym] = true
			all = append(all, sym)
		}
	}
	for _, sym := range DefaultBenchmarks {
		if !seen[sym] {
			seen[sym] = true
			all = append(all, sym)
		}
	}
	return &RefreshJob{
		resolver: resolver,
		symbols:  all,
		log:      log.With().Str("component", "price_refresh").Logger(),
	}
}

// Name returns the job name for scheduler logging.
func (j *RefreshJob) Name() string {
	return "price_cache_refresh"
}

// Run refreshes the cache tiers for all configured symbols in chunks,
// fetching chunks concurrently. A failing chunk does not stop the others.
func (j *RefreshJob) Run() error {
	if len(j.symbols) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	end := Day(time.Now().UTC())
	start := end.Add(-refreshLookback)

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(refreshConcurrent)
	for i := 0; i < len(j.symbols); i += refreshChunkSize {
		chunk := j.symbols[i:min(i+refreshChunkSize, len(j.symbols))]
		g.Go(func() error {
			_, warnings, err := j.resolver.LoadBars(ctx, chunk, start, end)
			if err != nil {
				failed.Add(int64(len(chunk)))
				j.log.Warn().Err(err).Strs("symbols", chunk).Msg("chunk refresh failed")
				return nil
			}
			for _, w := range warnings {
				j.log.Warn().Msg(w)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		if int(n) == len(j.symbols) {
			return fmt.Errorf("price cache refresh failed for all %d symbols", len(j.symbols))
		}
		j.log.Warn().Int64("failed", n).Msg("price cache partially refreshed")
		return nil
	}
	j.log.Info().Int("symbols", len(j.symbols)).Msg("price cache refreshed")
	return nil
}
