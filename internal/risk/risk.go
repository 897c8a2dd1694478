// Package risk prices positions: sizing under leverage and balance limits,
// take-profit/stop-loss placement, and trailing-stop ratcheting.
package risk

// Config defines risk parameters for one tenant.
type Config struct {
	MaxPositionSizePercent  float64 `json:"max_position_size_percent"`
	Leverage                float64 `json:"leverage"`
	StopLossPercent         float64 `json:"stop_loss_percent"`
	TakeProfitPercent       float64 `json:"take_profit_percent"`
	TrailingStop            bool    `json:"trailing_stop"`
	TrailingStopPercent     float64 `json:"trailing_stop_percent"`
	UseATRStopLoss          bool    `json:"use_atr_stop_loss"`
	ATRStopLossMultiplier   float64 `json:"atr_stop_loss_multiplier"`
	ATRTakeProfitMultiplier float64 `json:"atr_take_profit_multiplier"`
}

// DefaultConfig returns the bot's standard risk parameters.
func DefaultConfig() Config {
	return Config{
		MaxPositionSizePercent:  10,
		Leverage:                5,
		StopLossPercent:         2.0,
		TakeProfitPercent:       4.0,
		TrailingStop:            true,
		TrailingStopPercent:     1.5,
		UseATRStopLoss:          false,
		ATRStopLossMultiplier:   1.5,
		ATRTakeProfitMultiplier: 3.0,
	}
}

// PositionSize computes the asset quantity for a new position:
// (balance × maxPercent/100 × strength) × leverage / price.
// Weak signals scale down proportionally; they are never rejected on size
// alone. Returns 0 for non-positive balance or price.
func PositionSize(balance, price, leverage, maxPercent, strength float64) float64 {
	if balance <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}
	marginBudget := balance * (maxPercent / 100) * strength
	return marginBudget * leverage / price
}

// Margin is the capital locked for a position of the given notional size.
func Margin(size, price, leverage float64) float64 {
	if leverage <= 0 {
		return 0
	}
	return size * price / leverage
}

// Exits holds take-profit and stop-loss trigger prices.
type Exits struct {
	TakeProfit float64
	StopLoss   float64
}

// PercentExits prices TP/SL at fixed percentage offsets from entry.
func PercentExits(entry float64, long bool, tpPercent, slPercent float64) Exits {
	if long {
		return Exits{
			TakeProfit: entry * (1 + tpPercent/100),
			StopLoss:   entry * (1 - slPercent/100),
		}
	}
	return Exits{
		TakeProfit: entry * (1 - tpPercent/100),
		StopLoss:   entry * (1 + slPercent/100),
	}
}

// ATRExits prices TP/SL at ATR-multiple distances from entry.
func ATRExits(entry float64, long bool, atr, slMultiplier, tpMultiplier float64) Exits {
	slDist := atr * slMultiplier
	tpDist := atr * tpMultiplier
	if long {
		return Exits{TakeProfit: entry + tpDist, StopLoss: entry - slDist}
	}
	return Exits{TakeProfit: entry - tpDist, StopLoss: entry + slDist}
}

// ExitsFor picks the pricing mode for the config: ATR mode when enabled and
// a positive ATR reading is available, percentage mode otherwise.
func (c Config) ExitsFor(entry float64, long bool, atr float64) Exits {
	if c.UseATRStopLoss && atr > 0 {
		return ATRExits(entry, long, atr, c.ATRStopLossMultiplier, c.ATRTakeProfitMultiplier)
	}
	return PercentExits(entry, long, c.TakeProfitPercent, c.StopLossPercent)
}

// TrailingStop proposes a ratcheted stop for an open position. It engages
// only once unrealized profit percent exceeds trailingPercent, and the
// proposal is accepted only when it tightens the stop: raises it for a
// long, lowers it for a short. Returns (0, false) when no update applies.
func TrailingStop(entry, current, currentStop float64, long bool, trailingPercent float64) (float64, bool) {
	if entry <= 0 || current <= 0 {
		return 0, false
	}
	if long {
		profitPercent := (current - entry) / entry * 100
		if profitPercent <= trailingPercent {
			return 0, false
		}
		newStop := current * (1 - trailingPercent/100)
		if currentStop == 0 || newStop > currentStop {
			return newStop, true
		}
		return 0, false
	}

	profitPercent := (entry - current) / entry * 100
	if profitPercent <= trailingPercent {
		return 0, false
	}
	newStop := current * (1 + trailingPercent/100)
	if currentStop == 0 || newStop < currentStop {
		return newStop, true
	}
	return 0, false
}
