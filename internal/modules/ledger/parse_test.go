package ledger

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
)

func TestParseDate_Formats(t *testing.T) {
	cases := map[string]string{
		"2025-03-14":                  "2025-03-14",
		"03/14/2025":                  "2025-03-14",
		"3/4/25":                      "2025-03-04",
		"03-14-2025":                  "2025-03-14",
		"03/14/2025 as of 03/13/2025": "2025-03-14",
	}
	for raw, want := range cases {
		got, ok := ParseDate(raw)
		require.True(t, ok, "expected %q to parse", raw)
		assert.Equal(t, want, got.Format("2006-01-02"), "input %q", raw)
	}
}

func TestParseDate_Unusable(t *testing.T) {
	for _, raw := range []string{"", "pending", "13/45/2025"} {
		_, ok := ParseDate(raw)
		assert.False(t, ok, "expected %q to fail", raw)
	}
}

func TestParseAmount_Conventions(t *testing.T) {
	assert.True(t, ParseAmount("$1,234.56").Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, ParseAmount("($500.00)").Equal(decimal.RequireFromString("-500")))
	assert.True(t, ParseAmount("--").IsZero())
	assert.True(t, ParseAmount("").IsZero())
	assert.True(t, ParseAmount("n/a").IsZero())
}

func TestParseAction_SubstringMatches(t *testing.T) {
	assert.Equal(t, ActionBuy, ParseAction("Buy"))
	assert.Equal(t, ActionSell, ParseAction(" SELL "))
	assert.Equal(t, ActionDividend, ParseAction("Qualified Dividend"))
	assert.Equal(t, ActionInterest, ParseAction("Bank Interest"))
	assert.Equal(t, ActionTransfer, ParseAction("Internal Transfer"))
	assert.Equal(t, ActionOther, ParseAction("Journal"))
}

func TestParseRecords_SortsAndKeepsSameDayOrder(t *testing.T) {
	records := []portfolio.TransactionRecord{
		{Date: "2025-01-03", Action: "SELL", Symbol: "aapl", Quantity: "4", Amount: "440"},
		{Date: "2025-01-02", Action: "BUY", Symbol: "AAPL", Quantity: "10", Price: "100", Amount: "-1000"},
		{Date: "2025-01-03", Action: "BUY", Symbol: "MSFT", Quantity: "1", Amount: "-300"},
	}
	txns := ParseRecords(records, time.Now().UTC(), zerolog.Nop())
	require.Len(t, txns, 3)
	assert.Equal(t, "AAPL", txns[0].Symbol)
	assert.Equal(t, ActionBuy, txns[0].Action)
	require.NotNil(t, txns[0].Price)
	// Same-day rows keep their input order.
	assert.Equal(t, "AAPL", txns[1].Symbol)
	assert.Equal(t, ActionSell, txns[1].Action)
	assert.Equal(t, "MSFT", txns[2].Symbol)
}

func TestParseRecords_MalformedDateBecomesZeroEffectRow(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	records := []portfolio.TransactionRecord{
		{Date: "pending settlement", Action: "BUY", Symbol: "AAPL", Quantity: "10", Amount: "-1000"},
	}
	txns := ParseRecords(records, now, zerolog.Nop())
	require.Len(t, txns, 1)
	assert.Equal(t, Day(now), txns[0].Date)
	assert.True(t, txns[0].Quantity.IsZero())
	assert.True(t, txns[0].Amount.IsZero())
}

func TestFallbackPrices_FirstPositiveTradePriceWins(t *testing.T) {
	p100 := decimal.NewFromInt(100)
	p110 := decimal.NewFromInt(110)
	txns := []Transaction{
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), Price: &p100},
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(5), Price: &p110},
		{Symbol: "MSFT", Quantity: decimal.Zero, Price: &p100}, // no quantity, skipped
	}
	prices := FallbackPrices(txns)
	assert.Equal(t, map[string]float64{"AAPL": 100}, prices)
}
