package ledger

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jayana-cpc/wealthwise/internal/modules/portfolio"
)

var dateToken = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)

// ParseDate extracts a calendar day from a brokerage-export date string.
//
// Supports 12/31/2025, 12-31-2025, 2025-12-31, and strings with "as of" or
// other noise around the date. Returns ok=false when no usable token is
// found; callers default such rows to today rather than aborting the ledger.
func ParseDate(raw string) (time.Time, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = strings.ReplaceAll(text, "as of", " ")

	token := dateToken.FindString(text)
	if token == "" {
		return time.Time{}, false
	}

	parts := strings.Split(strings.ReplaceAll(token, "-", "/"), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	var year, month, day int
	var err error
	if len(parts[0]) == 4 { // yyyy/mm/dd
		year, err = strconv.Atoi(parts[0])
		if err == nil {
			month, err = strconv.Atoi(parts[1])
		}
		if err == nil {
			day, err = strconv.Atoi(parts[2])
		}
	} else { // mm/dd/yy or mm/dd/yyyy
		month, err = strconv.Atoi(parts[0])
		if err == nil {
			day, err = strconv.Atoi(parts[1])
		}
		if err == nil {
			year, err = strconv.Atoi(parts[2])
		}
		if year < 100 {
			year += 2000
		}
	}
	if err != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// ParseAmount parses a brokerage money or quantity string into a decimal.
// Dollar signs and thousands separators are stripped, parenthesized values
// are negative, and empty or placeholder values ("--") parse to zero. An
// unparseable value also parses to zero: a bad cell degrades that one entry,
// it never fails the ledger.
func ParseAmount(raw string) decimal.Decimal {
	value := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", ""))
	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		value = "-" + value[1:len(value)-1]
	}
	if value == "" || value == "--" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAction normalizes a raw action string. Dividend, interest and
// transfer entries are matched by substring because exports qualify them
// ("Qualified Dividend", "Bank Interest", "Internal Transfer").
func ParseAction(raw string) Action {
	action := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case action == "BUY":
		return ActionBuy
	case action == "SELL":
		return ActionSell
	case strings.Contains(action, "DIVIDEND"):
		return ActionDividend
	case strings.Contains(action, "INTEREST"):
		return ActionInterest
	case strings.Contains(action, "TRANSFER"):
		return ActionTransfer
	default:
		return ActionOther
	}
}

// ParseRecords converts raw transaction records into transactions sorted by
// date (stable, so same-day entries keep input order). Rows with an
// unparseable date become zero-effect transactions dated today; this is a
// deliberate degraded-but-non-fatal policy, logged for visibility.
func ParseRecords(records []portfolio.TransactionRecord, now time.Time, log zerolog.Logger) []Transaction {
	txns := make([]Transaction, 0, len(records))
	for _, rec := range records {
		symbol := strings.ToUpper(strings.TrimSpace(rec.Symbol))
		day, ok := ParseDate(rec.Date)
		if !ok {
			log.Warn().
				Str("raw_date", rec.Date).
				Str("symbol", symbol).
				Msg("Unparseable transaction date, recording zero-effect entry dated today")
			txns = append(txns, Transaction{
				Date:     Day(now),
				Action:   ParseAction(rec.Action),
				Symbol:   symbol,
				Quantity: decimal.Zero,
				Amount:   decimal.Zero,
			})
			continue
		}

		txn := Transaction{
			Date:     day,
			Action:   ParseAction(rec.Action),
			Symbol:   symbol,
			Quantity: ParseAmount(rec.Quantity),
			Amount:   ParseAmount(rec.Amount),
		}
		if price := ParseAmount(rec.Price); price.IsPositive() {
			txn.Price = &price
		}
		txns = append(txns, txn)
	}

	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
	return txns
}

// FallbackPrices extracts a static per-symbol price hint from the ledger:
// the first reported positive trade price for each symbol.
func FallbackPrices(txns []Transaction) map[string]float64 {
	prices := make(map[string]float64)
	for _, txn := range txns {
		if txn.Symbol == "" || !txn.Quantity.IsPositive() {
			continue
		}
		if txn.Price == nil || !txn.Price.IsPositive() {
			continue
		}
		if _, ok := prices[txn.Symbol]; !ok {
			prices[txn.Symbol] = txn.Price.InexactFloat64()
		}
	}
	return prices
}

// Symbols returns the distinct symbols referenced by the ledger.
func Symbols(txns []Transaction) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, txn := range txns {
		if txn.Symbol == "" || seen[txn.Symbol] {
			continue
		}
		seen[txn.Symbol] = true
		symbols = append(symbols, txn.Symbol)
	}
	return symbols
}
