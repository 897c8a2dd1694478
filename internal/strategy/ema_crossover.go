package strategy

import (
	"fmt"

	"futures-core/internal/market"
)

// EMACrossover trades EMA crossovers across multiple timeframes. Strength
// comes from the relative EMA separation; a same-bar crossover adds a
// bonus. Per-timeframe votes are aggregated through the shared weight
// table and the winning side must clear a fixed 0.3 floor.
type EMACrossover struct {
	fastPeriod     int
	slowPeriod     int
	minStrength    float64
	multiTimeframe bool
}

// NewEMACrossover builds the strategy from tenant params.
func NewEMACrossover(p Params) (Strategy, error) {
	if err := checkKeys(p, "fast_ema", "slow_ema", "min_strength", "use_multi_timeframe"); err != nil {
		return nil, err
	}
	s := &EMACrossover{
		fastPeriod:     p.Int("fast_ema", 9),
		slowPeriod:     p.Int("slow_ema", 21),
		minStrength:    p.Float("min_strength", 0.6),
		multiTimeframe: p.Bool("use_multi_timeframe", true),
	}
	if s.fastPeriod <= 0 || s.slowPeriod <= 0 {
		return nil, fmt.Errorf("ema periods must be positive")
	}
	if s.fastPeriod >= s.slowPeriod {
		return nil, fmt.Errorf("fast_ema %d must be below slow_ema %d", s.fastPeriod, s.slowPeriod)
	}
	return s, nil
}

func (s *EMACrossover) Name() string { return "EMA Crossover" }

func (s *EMACrossover) Description() string {
	return "Trades EMA crossovers across multiple timeframes"
}

func (s *EMACrossover) RequiredTimeframes() []market.Timeframe {
	if s.multiTimeframe {
		return []market.Timeframe{market.Timeframe5m, market.Timeframe1h, market.Timeframe4h}
	}
	return []market.Timeframe{market.Timeframe5m}
}

func (s *EMACrossover) RequiredIndicators() []string {
	return []string{s.fastKey(), s.slowKey()}
}

func (s *EMACrossover) fastKey() string { return fmt.Sprintf("EMA_%d", s.fastPeriod) }
func (s *EMACrossover) slowKey() string { return fmt.Sprintf("EMA_%d", s.slowPeriod) }

func (s *EMACrossover) Analyze(data Data, currentPrice float64) Signal {
	if !hasData(s, data) {
		return flatSignal(s.Name(), "Insufficient data")
	}

	votes := make(map[market.Timeframe]vote)
	var reasons []string

	for _, tf := range s.RequiredTimeframes() {
		snap := data[tf]
		fast, okFast := snap.Value(s.fastKey())
		slow, okSlow := snap.Value(s.slowKey())
		prevFast, okPrevFast := snap.Prev(s.fastKey())
		prevSlow, okPrevSlow := snap.Prev(s.slowKey())
		if !okFast || !okSlow || !okPrevFast || !okPrevSlow {
			continue
		}

		strength := trendStrength(fast, slow, currentPrice)
		bullishCross := fast > slow && prevFast <= prevSlow
		bearishCross := fast < slow && prevFast >= prevSlow

		switch {
		case bullishCross:
			votes[tf] = vote{ActionLong, clamp01(strength + 0.3)}
			reasons = append(reasons, fmt.Sprintf("%s: Bullish EMA crossover (EMA%d crossed above EMA%d)", tf, s.fastPeriod, s.slowPeriod))
		case bearishCross:
			votes[tf] = vote{ActionShort, clamp01(strength + 0.3)}
			reasons = append(reasons, fmt.Sprintf("%s: Bearish EMA crossover (EMA%d crossed below EMA%d)", tf, s.fastPeriod, s.slowPeriod))
		case fast > slow:
			votes[tf] = vote{ActionLong, strength}
			reasons = append(reasons, fmt.Sprintf("%s: Bullish trend (EMA%d > EMA%d, strength: %.2f)", tf, s.fastPeriod, s.slowPeriod, strength))
		case fast < slow:
			votes[tf] = vote{ActionShort, strength}
			reasons = append(reasons, fmt.Sprintf("%s: Bearish trend (EMA%d < EMA%d, strength: %.2f)", tf, s.fastPeriod, s.slowPeriod, strength))
		default:
			votes[tf] = vote{ActionFlat, 0}
		}
	}

	if len(votes) == 0 {
		return flatSignal(s.Name(), "No valid signals")
	}

	agg := aggregateVotes(votes, 0.3)

	sig := Signal{
		Action:     agg.action,
		Strength:   clamp01(agg.strength),
		Confidence: clamp01(agg.strength),
		Reasons:    reasons,
		Indicators: map[string]float64{"current_price": currentPrice},
		Metadata:   map[string]any{"strategy": s.Name()},
	}
	if snap, ok := data[market.Timeframe5m]; ok {
		if fast, ok := snap.Value(s.fastKey()); ok {
			sig.Indicators["ema_fast"] = fast
		}
		if slow, ok := snap.Value(s.slowKey()); ok {
			sig.Indicators["ema_slow"] = slow
		}
	}
	recordScores(&sig, agg.bullish, agg.bearish)
	applyFloor(&sig, s.minStrength)
	return sig
}
