package strategy

import (
	"fmt"

	"futures-core/internal/indicators"
	"futures-core/internal/market"
)

// SupportResistance is a long-only strategy: it enters when price sits in
// a proximity band just above a 1h support level and is not simultaneously
// near resistance. The stop distance is ATR times a multiplier and the
// take-profit target is the nearest resistance level, with a 3% default
// when none is found. It never emits a short.
type SupportResistance struct {
	supportProximityPct    float64
	resistanceProximityPct float64
	atrMultiplier          float64
	lookback               int
	numLevels              int
	minStrength            float64
	clusterTolerance       float64
}

// NewSupportResistance builds the strategy from tenant params.
func NewSupportResistance(p Params) (Strategy, error) {
	if err := checkKeys(p, "support_proximity_pct", "resistance_proximity_pct", "atr_multiplier", "lookback_period", "num_levels", "min_strength", "cluster_tolerance"); err != nil {
		return nil, err
	}
	s := &SupportResistance{
		supportProximityPct:    p.Float("support_proximity_pct", 1.0),
		resistanceProximityPct: p.Float("resistance_proximity_pct", 1.0),
		atrMultiplier:          p.Float("atr_multiplier", 2.0),
		lookback:               p.Int("lookback_period", 50),
		numLevels:              p.Int("num_levels", 3),
		minStrength:            p.Float("min_strength", 0.6),
		clusterTolerance:       p.Float("cluster_tolerance", 0.005),
	}
	if s.lookback < 5 || s.numLevels < 1 {
		return nil, fmt.Errorf("lookback_period and num_levels must allow pivot detection")
	}
	return s, nil
}

func (s *SupportResistance) Name() string { return "Support/Resistance Long Only" }

func (s *SupportResistance) Description() string {
	return "Buys near support with an ATR-based stop, never shorts"
}

func (s *SupportResistance) RequiredTimeframes() []market.Timeframe {
	return []market.Timeframe{market.Timeframe5m, market.Timeframe1h, market.Timeframe4h}
}

func (s *SupportResistance) RequiredIndicators() []string {
	return []string{"ATR", "EMA_21", "EMA_50"}
}

func (s *SupportResistance) Analyze(data Data, currentPrice float64) Signal {
	if !hasData(s, data) {
		return flatSignal(s.Name(), "Insufficient data")
	}

	// 1h candles give the cleanest pivots for level detection.
	levels := indicators.SupportResistance(data[market.Timeframe1h].Candles, s.lookback, s.numLevels, s.clusterTolerance)

	atr, _ := data[market.Timeframe1h].Value("ATR")
	stopDistance := atr * s.atrMultiplier

	nearSupport, supportLevel, supportStrength := s.nearestSupport(currentPrice, levels.Support)
	nearResistance, resistanceLevel := s.nearestResistance(currentPrice, levels.Resistance)

	action := ActionFlat
	strength := 0.0
	var reasons []string

	switch {
	case nearSupport && !nearResistance:
		action = ActionLong
		strength = supportStrength
		distPct := (currentPrice - supportLevel) / supportLevel * 100
		reasons = append(reasons, fmt.Sprintf("Price %.2f near support %.2f", currentPrice, supportLevel))
		reasons = append(reasons, fmt.Sprintf("Distance to support: %.2f%%", distPct))

		if s.trendBullish(data[market.Timeframe4h]) {
			strength = clamp01(strength + 0.15)
			reasons = append(reasons, "4h trend is bullish - confirmed")
		} else {
			reasons = append(reasons, "4h trend not bullish - caution")
		}

		fastLevels := indicators.SupportResistance(data[market.Timeframe5m].Candles, s.lookback, s.numLevels, s.clusterTolerance)
		if s.hasNearbySupport(currentPrice, fastLevels.Support) {
			strength = clamp01(strength + 0.1)
			reasons = append(reasons, "5m timeframe also shows nearby support")
		}

	case nearResistance:
		distPct := (resistanceLevel - currentPrice) / currentPrice * 100
		reasons = append(reasons, fmt.Sprintf("Price %.2f near resistance %.2f", currentPrice, resistanceLevel))
		reasons = append(reasons, fmt.Sprintf("Distance to resistance: %.2f%%", distPct))
		reasons = append(reasons, "Avoiding long entry near resistance")

	default:
		reasons = append(reasons, fmt.Sprintf("Price %.2f not near key levels", currentPrice))
	}

	takeProfit := currentPrice * 1.03
	if len(levels.Resistance) > 0 {
		takeProfit = levels.Resistance[0]
	}

	sig := Signal{
		Action:     action,
		Strength:   strength,
		Confidence: strength,
		Reasons:    reasons,
		Indicators: map[string]float64{
			"current_price":      currentPrice,
			"atr":                atr,
			"stop_loss_distance": stopDistance,
			"stop_loss_price":    currentPrice - stopDistance,
			"take_profit_price":  takeProfit,
		},
		Metadata: map[string]any{
			"strategy":          s.Name(),
			"position_type":     "long_only",
			"support_levels":    levels.Support,
			"resistance_levels": levels.Resistance,
		},
	}
	recordScores(&sig, sideScore(action, ActionLong, strength), 0)
	applyFloor(&sig, s.minStrength)
	return sig
}

// nearestSupport finds the first support level the price sits within the
// proximity band above. Strength grows from 0.7 toward 1.0 as price
// approaches the level.
func (s *SupportResistance) nearestSupport(price float64, supports []float64) (bool, float64, float64) {
	for _, level := range supports {
		if level <= 0 {
			continue
		}
		distPct := (price - level) / level * 100
		if distPct >= 0 && distPct <= s.supportProximityPct {
			strength := 0.7 + 0.3*(1-distPct/s.supportProximityPct)
			return true, level, clamp01(strength)
		}
	}
	return false, 0, 0
}

func (s *SupportResistance) nearestResistance(price float64, resistances []float64) (bool, float64) {
	for _, level := range resistances {
		distPct := (level - price) / price * 100
		if distPct >= 0 && distPct <= s.resistanceProximityPct {
			return true, level
		}
	}
	return false, 0
}

func (s *SupportResistance) hasNearbySupport(price float64, supports []float64) bool {
	for _, level := range supports {
		if level <= 0 {
			continue
		}
		distPct := (price - level) / level * 100
		if distPct < 0 {
			distPct = -distPct
		}
		if distPct <= s.supportProximityPct*1.5 {
			return true
		}
	}
	return false
}

// trendBullish reads the 4h stack: price above EMA_21 above EMA_50.
func (s *SupportResistance) trendBullish(snap *indicators.Snapshot) bool {
	ema21, ok21 := snap.Value("EMA_21")
	ema50, ok50 := snap.Value("EMA_50")
	if !ok21 || !ok50 {
		return false
	}
	price := snap.LastClose()
	return price > ema21 && ema21 > ema50
}
