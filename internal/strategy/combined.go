package strategy

import (
	"fmt"

	"futures-core/internal/indicators"
	"futures-core/internal/market"
)

// Combined scores EMA, MACD and RSI per timeframe through a majority vote
// (at least 2 of 3 agreeing) and aggregates the timeframe votes through
// the shared weight table. The winning side's normalized score must exceed
// 0.5 before the tenant's own minimum-strength floor applies.
type Combined struct {
	minStrength float64
	timeframes  []market.Timeframe
}

// NewCombined builds the strategy from tenant params.
func NewCombined(p Params) (Strategy, error) {
	if err := checkKeys(p, "min_signal_strength"); err != nil {
		return nil, err
	}
	minStrength := p.Float("min_signal_strength", 0.7)
	if minStrength < 0 || minStrength > 1 {
		return nil, fmt.Errorf("min_signal_strength %.2f out of [0,1]", minStrength)
	}
	return &Combined{
		minStrength: minStrength,
		timeframes:  []market.Timeframe{market.Timeframe5m, market.Timeframe1h, market.Timeframe4h},
	}, nil
}

func (s *Combined) Name() string { return "Combined Multi-Indicator" }

func (s *Combined) Description() string {
	return "Combines EMA, MACD and RSI signals across multiple timeframes"
}

func (s *Combined) RequiredTimeframes() []market.Timeframe {
	return s.timeframes
}

func (s *Combined) RequiredIndicators() []string {
	return []string{"EMA_9", "EMA_21", "MACD", "MACD_signal", "MACD_hist", "RSI"}
}

func (s *Combined) Analyze(data Data, currentPrice float64) Signal {
	if !hasData(s, data) {
		return flatSignal(s.Name(), "Insufficient data")
	}

	votes := make(map[market.Timeframe]vote)
	analyses := make(map[market.Timeframe]timeframeAnalysis)
	var reasons []string

	for _, tf := range s.timeframes {
		snap, ok := data[tf]
		if !ok || snap.Len() < 2 {
			continue
		}
		analysis, ok := analyzeTimeframe(snap, currentPrice)
		if !ok {
			continue
		}
		analyses[tf] = analysis
		votes[tf] = vote{analysis.action, analysis.strength}
		if analysis.action != ActionFlat {
			trend := "bullish"
			if analysis.action == ActionShort {
				trend = "bearish"
			}
			reasons = append(reasons, fmt.Sprintf("%s: %s (EMA: %s, MACD: %s, RSI: %.1f)",
				tf, trend, analysis.emaSignal, analysis.macdSignal, analysis.rsi))
		}
	}

	if len(votes) == 0 {
		return flatSignal(s.Name(), "No valid timeframe data")
	}

	agg := aggregateVotes(votes, 0.5)

	switch agg.action {
	case ActionLong:
		reasons = append([]string{fmt.Sprintf("Overall bullish signal (strength: %.2f)", agg.strength)}, reasons...)
	case ActionShort:
		reasons = append([]string{fmt.Sprintf("Overall bearish signal (strength: %.2f)", agg.strength)}, reasons...)
	default:
		reasons = append([]string{"No strong trend detected"}, reasons...)
	}

	sig := Signal{
		Action:     agg.action,
		Strength:   clamp01(agg.strength),
		Confidence: clamp01(agg.strength),
		Reasons:    reasons,
		Indicators: map[string]float64{"current_price": currentPrice},
		Metadata: map[string]any{
			"strategy":           s.Name(),
			"timeframe_analyses": analyses,
		},
	}
	if fast, ok := data[market.Timeframe5m]; ok {
		for _, name := range []string{"EMA_9", "EMA_21", "MACD", "MACD_signal", "RSI"} {
			if v, ok := fast.Value(name); ok {
				sig.Indicators[name] = v
			}
		}
	}
	recordScores(&sig, agg.bullish, agg.bearish)
	applyFloor(&sig, s.minStrength)
	return sig
}

// timeframeAnalysis is one timeframe's majority-vote outcome.
type timeframeAnalysis struct {
	action     Action
	strength   float64
	emaSignal  string
	macdSignal string
	rsi        float64
}

// analyzeTimeframe votes EMA, MACD and RSI on one snapshot. Two of the
// three must agree for a directional call; the score scales with the vote
// count and the EMA separation.
func analyzeTimeframe(snap *indicators.Snapshot, currentPrice float64) (timeframeAnalysis, bool) {
	ema9, ok1 := snap.Value("EMA_9")
	ema21, ok2 := snap.Value("EMA_21")
	macd, ok3 := snap.Value("MACD")
	macdSignal, ok4 := snap.Value("MACD_signal")
	hist, ok5 := snap.Value("MACD_hist")
	rsi, ok6 := snap.Value("RSI")
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return timeframeAnalysis{}, false
	}

	emaBullish := ema9 > ema21
	emaBearish := ema9 < ema21
	emaStrength := trendStrength(ema9, ema21, currentPrice)

	macdBullish := macd > macdSignal && hist > 0
	macdBearish := macd < macdSignal && hist < 0

	rsiBullish := rsi < 30 || (rsi < 50 && emaBullish)
	rsiBearish := rsi > 70 || (rsi > 50 && emaBearish)

	bullishVotes := countTrue(emaBullish, macdBullish, rsiBullish)
	bearishVotes := countTrue(emaBearish, macdBearish, rsiBearish)

	analysis := timeframeAnalysis{
		action:     ActionFlat,
		emaSignal:  directionWord(emaBullish),
		macdSignal: directionWord(macdBullish),
		rsi:        rsi,
	}
	switch {
	case bullishVotes >= 2:
		analysis.action = ActionLong
		analysis.strength = clamp01(float64(bullishVotes) / 3.0 * (1 + emaStrength) / 2)
	case bearishVotes >= 2:
		analysis.action = ActionShort
		analysis.strength = clamp01(float64(bearishVotes) / 3.0 * (1 + emaStrength) / 2)
	}
	return analysis, true
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func directionWord(bullish bool) string {
	if bullish {
		return "bullish"
	}
	return "bearish"
}
