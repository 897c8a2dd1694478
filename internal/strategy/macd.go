package strategy

import (
	"fmt"

	"futures-core/internal/market"
)

// MACDTrend takes its primary signal from the 5m MACD crossover and
// histogram slope, then checks the 1h trend: confirmation adds +0.2
// strength, contradiction halves it.
type MACDTrend struct {
	minStrength      float64
	useHistogram     bool
	confirmWithTrend bool
}

// NewMACDTrend builds the strategy from tenant params.
func NewMACDTrend(p Params) (Strategy, error) {
	if err := checkKeys(p, "min_strength", "use_histogram", "confirm_with_trend"); err != nil {
		return nil, err
	}
	return &MACDTrend{
		minStrength:      p.Float("min_strength", 0.65),
		useHistogram:     p.Bool("use_histogram", true),
		confirmWithTrend: p.Bool("confirm_with_trend", true),
	}, nil
}

func (s *MACDTrend) Name() string { return "MACD Strategy" }

func (s *MACDTrend) Description() string {
	return "Trades MACD crossovers and histogram strength with 1h trend confirmation"
}

func (s *MACDTrend) RequiredTimeframes() []market.Timeframe {
	return []market.Timeframe{market.Timeframe5m, market.Timeframe1h}
}

func (s *MACDTrend) RequiredIndicators() []string {
	return []string{"MACD", "MACD_signal", "MACD_hist", "EMA_9", "EMA_21"}
}

func (s *MACDTrend) Analyze(data Data, currentPrice float64) Signal {
	if !hasData(s, data) {
		return flatSignal(s.Name(), "Insufficient data")
	}

	fast := data[market.Timeframe5m]
	macd, ok1 := fast.Value("MACD")
	macdSignal, ok2 := fast.Value("MACD_signal")
	hist, ok3 := fast.Value("MACD_hist")
	prevMACD, ok4 := fast.Prev("MACD")
	prevSignal, ok5 := fast.Prev("MACD_signal")
	prevHist, ok6 := fast.Prev("MACD_hist")
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return flatSignal(s.Name(), "Not enough data points")
	}

	bullishCross := macd > macdSignal && prevMACD <= prevSignal
	bearishCross := macd < macdSignal && prevMACD >= prevSignal
	histGrowing := hist > prevHist

	action := ActionFlat
	strength := 0.0
	var reasons []string

	switch {
	case bullishCross:
		action, strength = ActionLong, 0.8
		reasons = append(reasons, "5m: MACD bullish crossover")
	case bearishCross:
		action, strength = ActionShort, 0.8
		reasons = append(reasons, "5m: MACD bearish crossover")
	case s.useHistogram && hist > 0 && histGrowing:
		action, strength = ActionLong, 0.6
		reasons = append(reasons, "5m: MACD histogram positive and growing")
	case s.useHistogram && hist < 0 && !histGrowing:
		action, strength = ActionShort, 0.6
		reasons = append(reasons, "5m: MACD histogram negative and falling")
	case macd > macdSignal && hist > 0:
		action, strength = ActionLong, 0.5
		reasons = append(reasons, "5m: MACD above signal with positive histogram")
	case macd < macdSignal && hist < 0:
		action, strength = ActionShort, 0.5
		reasons = append(reasons, "5m: MACD below signal with negative histogram")
	}

	if s.confirmWithTrend && action != ActionFlat {
		slow := data[market.Timeframe1h]
		emaFast, okF := slow.Value("EMA_9")
		emaSlow, okS := slow.Value("EMA_21")
		macd1h, okM := slow.Value("MACD")
		signal1h, okSig := slow.Value("MACD_signal")
		if okF && okS && okM && okSig {
			trendBullish := emaFast > emaSlow && macd1h > signal1h
			trendBearish := emaFast < emaSlow && macd1h < signal1h
			switch {
			case action == ActionLong && trendBullish:
				strength += 0.2
				reasons = append(reasons, "1h: Trend confirmation (bullish)")
			case action == ActionShort && trendBearish:
				strength += 0.2
				reasons = append(reasons, "1h: Trend confirmation (bearish)")
			case action == ActionLong && trendBearish:
				strength *= 0.5
				reasons = append(reasons, "1h: Trend divergence (bearish trend conflicts)")
			case action == ActionShort && trendBullish:
				strength *= 0.5
				reasons = append(reasons, "1h: Trend divergence (bullish trend conflicts)")
			}
		}
	}

	strength = clamp01(strength)
	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: strength,
		Reasons:    reasons,
		Indicators: map[string]float64{
			"macd":          macd,
			"macd_signal":   macdSignal,
			"macd_hist":     hist,
			"current_price": currentPrice,
		},
		Metadata: map[string]any{
			"strategy":           s.Name(),
			"crossover_detected": bullishCross || bearishCross,
		},
	}
	if len(sig.Reasons) == 0 {
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("5m: no MACD setup (hist: %.4f)", hist))
	}
	recordScores(&sig, sideScore(action, ActionLong, strength), sideScore(action, ActionShort, strength))
	applyFloor(&sig, s.minStrength)
	return sig
}
