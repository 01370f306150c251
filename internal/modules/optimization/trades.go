package optimization

const shareEpsilon = 1e-6

// TradeSuggestions sizes the orders that move the portfolio from current to
// target weights. Deltas are valued against total capital (portfolio value
// plus non-negative cash). When a rebalance budget is set and the combined
// buy notional exceeds it, buys are scaled down to fit the budget; sells
// are never scaled, freeing cash is always allowed in full.
func TradeSuggestions(symbols []string, target, current map[string]float64, latestPrices map[string]float64, portfolioValue, cash float64, budget *float64) []TradeSuggestion {
	totalCapital := portfolioValue
	if cash > 0 {
		totalCapital += cash
	}

	deltas := make(map[string]float64, len(target))
	var buyNotional float64
	for _, sym := range symbols {
		delta := (target[sym] - current[sym]) * totalCapital
		deltas[sym] = delta
		if delta > 0 {
			buyNotional += delta
		}
	}

	buyScale := 1.0
	if budget != nil && *budget > 0 && buyNotional > *budget {
		buyScale = *budget / buyNotional
	}

	trades := make([]TradeSuggestion, 0, len(symbols))
	for _, sym := range symbols {
		value := deltas[sym]
		if value > 0 {
			value *= buyScale
		}
		shares := 0.0
		if price := latestPrices[sym]; price > 0 {
			shares = value / price
		}
		action := "hold"
		if shares > shareEpsilon {
			action = "buy"
		} else if shares < -shareEpsilon {
			action = "sell"
		}
		trades = append(trades, TradeSuggestion{
			Symbol:   sym,
			Action:   action,
			Shares:   shares,
			Notional: value,
		})
	}
	return trades
}
