package marketdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AlpacaConfig holds credentials and endpoint settings for the Alpaca
// market-data API.
type AlpacaConfig struct {
	BaseURL   string // e.g. https://data.alpaca.markets
	APIKey    string
	APISecret string
	Feed      string // iex by default; sip requires a paid subscription
}

// AlpacaClient fetches daily OHLC bars from the Alpaca market-data API.
// It implements BarFetcher. No retries or backoff: callers surface fetch
// failures as warnings and fall back to static pricing.
type AlpacaClient struct {
	cfg        AlpacaConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewAlpacaClient creates a market-data client.
func NewAlpacaClient(cfg AlpacaConfig, log zerolog.Logger) *AlpacaClient {
	// Normalize in case someone appends /v2 or sets a trailing slash.
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v2")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://data.alpaca.markets"
	}
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	return &AlpacaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log.With().Str("component", "alpaca").Logger(),
	}
}

type alpacaBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V *int64    `json:"v"`
}

type alpacaBarsResponse struct {
	Bars          map[string][]alpacaBar `json:"bars"`
	NextPageToken *string                `json:"next_page_token"`
}

// FetchDailyBars fetches bars for the given symbols, following pagination
// until exhausted. Returns per-symbol series sorted by time. All failures
// are *FetchError so the resolver can degrade instead of aborting.
func (c *AlpacaClient) FetchDailyBars(ctx context.Context, symbols []string, start, end time.Time, timeframe string) (map[string][]Bar, error) {
	if len(symbols) == 0 {
		return map[string][]Bar{}, nil
	}
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, NewFetchError("missing market data API credentials")
	}

	unique := make([]string, 0, len(symbols))
	seen := make(map[string]bool)
	for _, sym := range symbols {
		if !seen[sym] {
			seen[sym] = true
			unique = append(unique, sym)
		}
	}
	sort.Strings(unique)

	results := make(map[string][]Bar)
	pageToken := ""
	for {
		page, next, err := c.fetchPage(ctx, unique, start, end, timeframe, pageToken)
		if err != nil {
			return nil, err
		}
		for sym, bars := range page {
			results[sym] = append(results[sym], bars...)
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	for sym := range results {
		bars := results[sym]
		sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
		results[sym] = bars
	}
	return results, nil
}

func (c *AlpacaClient) fetchPage(ctx context.Context, symbols []string, start, end time.Time, timeframe, pageToken string) (map[string][]Bar, string, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("timeframe", timeframe)
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	params.Set("limit", "10000")
	params.Set("feed", c.cfg.Feed)
	if pageToken != "" {
		params.Set("page_token", pageToken)
	}

	endpoint := c.cfg.BaseURL + "/v2/stocks/bars?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", NewFetchError("failed to build market data request: %v", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.cfg.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.cfg.APISecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", NewFetchError("market data request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.Warn().Int("status", resp.StatusCode).Str("body", clip(body, 500)).Msg("Market data auth/permission error")
		return nil, "", NewFetchError("market data authentication failed or insufficient permissions")
	case resp.StatusCode == http.StatusTooManyRequests:
		c.log.Warn().Msg("Market data rate limit hit")
		return nil, "", NewFetchError("market data rate limit hit (429)")
	case resp.StatusCode >= 500:
		c.log.Warn().Int("status", resp.StatusCode).Str("body", clip(body, 500)).Msg("Market data service error")
		return nil, "", NewFetchError("market data service error")
	case resp.StatusCode >= 400:
		c.log.Warn().Int("status", resp.StatusCode).Str("body", clip(body, 500)).Msg("Market data request rejected")
		return nil, "", NewFetchError("market data request failed: %s", clip(body, 200))
	}

	var payload alpacaBarsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", NewFetchError("failed to decode market data response: %v", err)
	}

	page := make(map[string][]Bar, len(payload.Bars))
	for sym, rawBars := range payload.Bars {
		for _, raw := range rawBars {
			page[sym] = append(page[sym], Bar{
				Symbol:    sym,
				Timeframe: timeframe,
				Time:      raw.T.UTC(),
				Open:      raw.O,
				High:      raw.H,
				Low:       raw.L,
				Close:     raw.C,
				Volume:    raw.V,
				Source:    "alpaca",
			})
		}
	}

	next := ""
	if payload.NextPageToken != nil {
		next = *payload.NextPageToken
	}
	return page, next, nil
}

func clip(body []byte, n int) string {
	s := string(body)
	if len(s) > n {
		return s[:n]
	}
	return s
}

var _ BarFetcher = (*AlpacaClient)(nil)
