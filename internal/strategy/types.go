// Package strategy evaluates indicator snapshots across timeframes and
// produces directional trading signals. Strategies are registered under an
// id in a Registry; each tenant activates one strategy instance built fresh
// from its own config, never shared.
package strategy

import (
	"fmt"
	"math"

	"futures-core/internal/indicators"
	"futures-core/internal/market"
)

// Action is the directional call of a signal.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionFlat  Action = "flat"
)

// Signal is the outcome of one strategy evaluation for one symbol.
// Strength and Confidence are clamped to [0,1]. When a minimum-strength
// floor forces the action to flat, Strength keeps its pre-gate value so
// the score stays visible for diagnostics.
type Signal struct {
	Pair       string             `json:"pair"`
	Action     Action             `json:"action"`
	Strength   float64            `json:"strength"`
	Confidence float64            `json:"confidence"`
	Reasons    []string           `json:"reasons"`
	Indicators map[string]float64 `json:"indicators"`
	Metadata   map[string]any     `json:"metadata"`
}

// Data carries one indicator snapshot per timeframe for a single symbol.
type Data map[market.Timeframe]*indicators.Snapshot

// Strategy is the evaluation contract. Analyze must be pure given its
// inputs, must not block, and reports failures as a flat signal with a
// reason instead of an error.
type Strategy interface {
	Name() string
	Description() string
	RequiredTimeframes() []market.Timeframe
	RequiredIndicators() []string
	Analyze(data Data, currentPrice float64) Signal
}

// timeframe weight table shared by the multi-timeframe strategies:
// longer timeframes carry more weight.
var timeframeWeights = map[market.Timeframe]float64{
	market.Timeframe4h: 3.0,
	market.Timeframe1h: 2.0,
	market.Timeframe5m: 1.0,
}

// vote is one timeframe's contribution to a weighted aggregate.
type vote struct {
	action   Action
	strength float64
}

// aggregate is the outcome of weighted multi-timeframe voting. The raw
// bullish and bearish scores survive gating so signal-reversal checks can
// read them even when the action was forced to flat.
type aggregate struct {
	action   Action
	strength float64
	bullish  float64
	bearish  float64
}

// aggregateVotes combines per-timeframe votes by weight, normalizes by the
// total weight of voting timeframes, and picks the winning side if its
// normalized score clears the floor. The losing score is still reported as
// the strength of a flat outcome.
func aggregateVotes(votes map[market.Timeframe]vote, floor float64) aggregate {
	var bullish, bearish, totalWeight float64
	for tf, v := range votes {
		w, ok := timeframeWeights[tf]
		if !ok {
			w = 1.0
		}
		switch v.action {
		case ActionLong:
			bullish += v.strength * w
		case ActionShort:
			bearish += v.strength * w
		}
		totalWeight += w
	}
	if totalWeight > 0 {
		bullish /= totalWeight
		bearish /= totalWeight
	}
	agg := aggregate{action: ActionFlat, bullish: bullish, bearish: bearish}
	switch {
	case bullish > bearish && bullish > floor:
		agg.action, agg.strength = ActionLong, bullish
	case bearish > bullish && bearish > floor:
		agg.action, agg.strength = ActionShort, bearish
	default:
		agg.strength = math.Max(bullish, bearish)
	}
	return agg
}

// recordScores attaches the directional scores to signal metadata. The
// position monitor reads these for reversal exits, so they must reflect
// the pre-gate evaluation.
func recordScores(sig *Signal, bullish, bearish float64) {
	if sig.Metadata == nil {
		sig.Metadata = map[string]any{}
	}
	sig.Metadata["bullish_score"] = bullish
	sig.Metadata["bearish_score"] = bearish
}

// sideScore maps a one-sided strategy outcome onto a directional score.
func sideScore(action, side Action, strength float64) float64 {
	if action == side {
		return strength
	}
	return 0
}

// trendStrength scores the EMA separation as a fraction of the slow EMA,
// scaled so a 10% gap saturates at 1.0. Zero when price sits on the wrong
// side of the slow EMA for the EMA ordering.
func trendStrength(emaFast, emaSlow, price float64) float64 {
	if emaFast == 0 || emaSlow == 0 {
		return 0
	}
	distance := math.Abs(emaFast-emaSlow) / emaSlow
	priceAboveSlow := price > emaSlow
	if (priceAboveSlow && emaFast > emaSlow) || (!priceAboveSlow && emaFast < emaSlow) {
		return math.Min(distance*10, 1.0)
	}
	return 0
}

// hasData reports whether every required timeframe is present and non-empty.
func hasData(s Strategy, data Data) bool {
	for _, tf := range s.RequiredTimeframes() {
		snap, ok := data[tf]
		if !ok || snap.Len() == 0 {
			return false
		}
	}
	return true
}

// flatSignal builds the canonical empty outcome with a single reason.
func flatSignal(strategyName, reason string) Signal {
	return Signal{
		Action:     ActionFlat,
		Reasons:    []string{reason},
		Indicators: map[string]float64{},
		Metadata:   map[string]any{"strategy": strategyName},
	}
}

// applyFloor forces the action to flat when strength is below the floor.
// The strength itself is left untouched.
func applyFloor(sig *Signal, floor float64) {
	if sig.Strength >= floor || sig.Action == ActionFlat {
		return
	}
	sig.Reasons = append(sig.Reasons, fmt.Sprintf("Signal too weak (%.2f < %.2f)", sig.Strength, floor))
	sig.Action = ActionFlat
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
