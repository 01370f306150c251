// Package main is the entry point for the wealthwise portfolio analytics
// engine. It wires the price resolver and its cache tiers, reconstructs
// positions from transaction ledgers, and produces optimization,
// performance and risk reports as JSON on stdout.
//
// Holdings and transaction ingestion are file-based here: the engine never
// owns uploads or user management, those belong to the surrounding system.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jayana-cpc/wealthwise/internal/config"
	"github.com/jayana-cpc/wealthwise/internal/database"
	"github.com/jayana-cpc/wealthwise/internal/modules/ledger"
	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
	"github.com/jayana-cpc/wealthwise/internal/modules/optimization"
	"github.com/jayana-cpc/wealthwise/internal/modules/performance"
	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
	"github.com/jayana-cpc/wealthwise/internal/modules/risk"
	"github.com/jayana-cpc/wealthwise/internal/scheduler"
	"github.com/jayana-cpc/wealthwise/pkg/logger"
)

func main() {
	var (
		holdingsPath     = flag.String("holdings", "", "path to holdings snapshot JSON")
		transactionsPath = flag.String("transactions", "", "path to transactions JSON")
		report           = flag.String("report", "optimize", "report to produce: optimize, performance, risk, methods")
		method           = flag.String("method", "hrp", "allocation method for -report optimize")
		lookback         = flag.String("lookback", "", "lookback window: 1Y, 3Y, 5Y, MAX")
		benchmark        = flag.String("benchmark", "", "benchmark symbol")
		covModel         = flag.String("cov", "", "covariance model: sample, shrinkage, ewma")
		returnModel      = flag.String("returns", "", "return model: historical_mean, shrunk_mean, momentum")
		universe         = flag.String("universe", "", "comma-separated universe override")
		riskMode         = flag.String("risk-mode", risk.ModeEnriched, "risk analysis mode: basic, enriched")
		watch            = flag.Bool("watch", false, "keep running and refresh the price cache on schedule")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "prices",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price cache database")
	}
	defer cacheDB.Close()

	store, err := marketdata.NewSQLiteBarStore(cacheDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price cache store")
	}
	fetcher := marketdata.NewAlpacaClient(marketdata.AlpacaConfig{
		BaseURL:   cfg.AlpacaBaseURL,
		APIKey:    cfg.AlpacaAPIKey,
		APISecret: cfg.AlpacaSecret,
		Feed:      cfg.AlpacaFeed,
	}, log)
	resolver := marketdata.NewResolver(marketdata.NewMemoryCache(), store, fetcher, log)
	reconstructor := ledger.NewReconstructor(log)

	optimizer := optimization.NewService(resolver, reconstructor, log)
	perf := performance.NewService(resolver, reconstructor, log)
	riskSvc := risk.NewService(resolver, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *watch {
		runWatch(ctx, cfg, resolver, log)
		return
	}

	var result any
	switch *report {
	case "methods":
		result = map[string]any{"methods": optimizer.ListMethods()}
	case "optimize":
		holdings := loadHoldings(ctx, log, *holdingsPath)
		records := loadTransactions(ctx, log, *transactionsPath)
		req := optimization.Request{
			Method:      *method,
			Lookback:    *lookback,
			Benchmark:   *benchmark,
			CovModel:    *covModel,
			ReturnModel: *returnModel,
			Universe:    splitList(*universe),
		}
		resp, err := optimizer.Run(ctx, req, holdings, records)
		if err != nil {
			log.Fatal().Err(err).Msg("Optimization failed")
		}
		result = resp
	case "performance":
		holdings := loadHoldings(ctx, log, *holdingsPath)
		records := loadTransactions(ctx, log, *transactionsPath)
		resp, err := perf.Build(ctx, holdings, records)
		if err != nil {
			log.Fatal().Err(err).Msg("Performance report failed")
		}
		result = resp
	case "risk":
		holdings := loadHoldings(ctx, log, *holdingsPath)
		result = riskSvc.Analyze(ctx, holdings, *riskMode)
	default:
		log.Fatal().Str("report", *report).Msg("Unknown report type")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}
}

func loadHoldings(ctx context.Context, log zerolog.Logger, path string) *portfolio.Snapshot {
	if path == "" {
		log.Fatal().Msg("-holdings is required for this report")
	}
	source := &fileHoldingsSource{path: path}
	snapshot, err := source.LatestSnapshot(ctx, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load holdings")
	}
	return snapshot
}

func loadTransactions(ctx context.Context, log zerolog.Logger, path string) []portfolio.TransactionRecord {
	if path == "" {
		log.Fatal().Msg("-transactions is required for this report")
	}
	source := &fileTransactionSource{path: path}
	records, err := source.LatestTransactions(ctx, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}
	return records
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// runWatch keeps the process alive with the cache refresh job on its cron
// schedule, for deployments that want a warm cache before market open.
func runWatch(ctx context.Context, cfg *config.Config, resolver *marketdata.Resolver, log zerolog.Logger) {
	if cfg.RefreshSchedule == "" {
		log.Fatal().Msg("PRICE_REFRESH_SCHEDULE must be set for -watch")
	}
	sched := scheduler.New(log)
	job := marketdata.NewRefreshJob(resolver, cfg.RefreshSymbols, log)
	if err := sched.AddJob(cfg.RefreshSchedule, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()
	log.Info().Msg("Price cache watcher running")
	<-ctx.Done()
	sched.Stop()
}
