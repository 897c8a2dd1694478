package strategy

import (
	"fmt"

	"futures-core/internal/indicators"
	"futures-core/internal/market"
)

// RSIMeanReversion goes long on oversold readings and short on overbought
// ones, scoring extreme zones higher. The 1h RSI either confirms the 5m
// reading (+0.2) or is reported as a mixed signal. An optional divergence
// check over the last 10 bars adds +0.15.
type RSIMeanReversion struct {
	oversold          float64
	overbought        float64
	extremeOversold   float64
	extremeOverbought float64
	minStrength       float64
	useDivergence     bool
}

// NewRSIMeanReversion builds the strategy from tenant params.
func NewRSIMeanReversion(p Params) (Strategy, error) {
	if err := checkKeys(p, "oversold_level", "overbought_level", "extreme_oversold", "extreme_overbought", "min_strength", "use_divergence"); err != nil {
		return nil, err
	}
	s := &RSIMeanReversion{
		oversold:          p.Float("oversold_level", 30),
		overbought:        p.Float("overbought_level", 70),
		extremeOversold:   p.Float("extreme_oversold", 20),
		extremeOverbought: p.Float("extreme_overbought", 80),
		minStrength:       p.Float("min_strength", 0.6),
		useDivergence:     p.Bool("use_divergence", false),
	}
	if s.oversold >= s.overbought {
		return nil, fmt.Errorf("oversold_level %.1f must be below overbought_level %.1f", s.oversold, s.overbought)
	}
	if s.extremeOversold > s.oversold || s.extremeOverbought < s.overbought {
		return nil, fmt.Errorf("extreme levels must sit beyond the base levels")
	}
	return s, nil
}

func (s *RSIMeanReversion) Name() string { return "RSI Mean Reversion" }

func (s *RSIMeanReversion) Description() string {
	return "Trades RSI oversold/overbought conditions with mean reversion"
}

func (s *RSIMeanReversion) RequiredTimeframes() []market.Timeframe {
	return []market.Timeframe{market.Timeframe5m, market.Timeframe1h}
}

func (s *RSIMeanReversion) RequiredIndicators() []string {
	return []string{"RSI"}
}

func (s *RSIMeanReversion) Analyze(data Data, currentPrice float64) Signal {
	if !hasData(s, data) {
		return flatSignal(s.Name(), "Insufficient data")
	}

	fast := data[market.Timeframe5m]
	slow := data[market.Timeframe1h]
	rsi5m, ok5m := fast.Value("RSI")
	rsi1h, ok1h := slow.Value("RSI")
	if !ok5m || !ok1h {
		return flatSignal(s.Name(), "RSI not available")
	}

	action := ActionFlat
	strength := 0.0
	var reasons []string

	switch {
	case rsi5m <= s.oversold:
		action = ActionLong
		if rsi5m <= s.extremeOversold {
			strength = 0.9
			reasons = append(reasons, fmt.Sprintf("5m: Extreme oversold (RSI: %.1f)", rsi5m))
		} else {
			strength = 0.7
			reasons = append(reasons, fmt.Sprintf("5m: Oversold (RSI: %.1f)", rsi5m))
		}
		if rsi1h <= s.oversold {
			strength = clamp01(strength + 0.2)
			reasons = append(reasons, fmt.Sprintf("1h: Also oversold (RSI: %.1f) - strong buy", rsi1h))
		} else if rsi1h > 50 {
			reasons = append(reasons, fmt.Sprintf("1h: RSI neutral (%.1f) - mixed signal", rsi1h))
		}

	case rsi5m >= s.overbought:
		action = ActionShort
		if rsi5m >= s.extremeOverbought {
			strength = 0.9
			reasons = append(reasons, fmt.Sprintf("5m: Extreme overbought (RSI: %.1f)", rsi5m))
		} else {
			strength = 0.7
			reasons = append(reasons, fmt.Sprintf("5m: Overbought (RSI: %.1f)", rsi5m))
		}
		if rsi1h >= s.overbought {
			strength = clamp01(strength + 0.2)
			reasons = append(reasons, fmt.Sprintf("1h: Also overbought (RSI: %.1f) - strong sell", rsi1h))
		} else if rsi1h < 50 {
			reasons = append(reasons, fmt.Sprintf("1h: RSI neutral (%.1f) - mixed signal", rsi1h))
		}

	default:
		reasons = append(reasons, fmt.Sprintf("5m: RSI neutral (%.1f) - no clear signal", rsi5m))
		reasons = append(reasons, fmt.Sprintf("1h: RSI %.1f", rsi1h))
	}

	if s.useDivergence {
		switch divergence(fast) {
		case indicators.Bullish:
			strength = clamp01(strength + 0.15)
			reasons = append(reasons, "Bullish divergence detected")
		case indicators.Bearish:
			strength = clamp01(strength + 0.15)
			reasons = append(reasons, "Bearish divergence detected")
		}
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: strength,
		Reasons:    reasons,
		Indicators: map[string]float64{
			"rsi_5m":           rsi5m,
			"rsi_1h":           rsi1h,
			"oversold_level":   s.oversold,
			"overbought_level": s.overbought,
			"current_price":    currentPrice,
		},
		Metadata: map[string]any{
			"strategy": s.Name(),
			"rsi_zone": s.zone(rsi5m),
		},
	}
	recordScores(&sig, sideScore(action, ActionLong, strength), sideScore(action, ActionShort, strength))
	applyFloor(&sig, s.minStrength)
	return sig
}

func (s *RSIMeanReversion) zone(rsi float64) string {
	switch {
	case rsi <= s.extremeOversold:
		return "extreme_oversold"
	case rsi <= s.oversold:
		return "oversold"
	case rsi >= s.extremeOverbought:
		return "extreme_overbought"
	case rsi >= s.overbought:
		return "overbought"
	default:
		return "neutral"
	}
}

// divergence runs a coarse 10-bar check: price making a lower low while
// RSI makes a higher low reads bullish, the mirror reads bearish. The RSI
// endpoint must sit below 40 (bullish) or above 60 (bearish) to count.
func divergence(snap *indicators.Snapshot) indicators.Direction {
	const window = 10
	closes := snap.Candles.Closes()
	rsiSeries := snap.Series("RSI")
	if len(closes) < window || len(rsiSeries) < window {
		return indicators.Neutral
	}
	firstClose := closes[len(closes)-window]
	lastClose := closes[len(closes)-1]
	firstRSI := rsiSeries[len(rsiSeries)-window]
	lastRSI := rsiSeries[len(rsiSeries)-1]

	if lastClose < firstClose && lastRSI > firstRSI && lastRSI < 40 {
		return indicators.Bullish
	}
	if lastClose > firstClose && lastRSI < firstRSI && lastRSI > 60 {
		return indicators.Bearish
	}
	return indicators.Neutral
}
