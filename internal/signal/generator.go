// Package signal turns candle data into trading signals. The Generator
// fetches every timeframe the tenant's active strategy requires, computes
// indicator snapshots, runs the evaluation and applies the tenant's
// minimum-strength floor after scoring.
package signal

import (
	"context"
	"fmt"
	"log"
	"time"

	"futures-core/internal/indicators"
	"futures-core/internal/market"
	"futures-core/internal/strategy"
)

// DefaultCandleLimit is how many candles are fetched per timeframe.
const DefaultCandleLimit = 100

// ReversalThreshold is the opposing score above which an open position is
// considered contradicted by the market.
const ReversalThreshold = 0.6

// Generator produces one Signal per (tenant, pair) evaluation.
type Generator struct {
	candles     market.CandleSource
	prices      market.PriceSource
	registry    *strategy.Registry
	indicators  indicators.Config
	candleLimit int
}

// NewGenerator wires a generator to its data sources and strategy registry.
func NewGenerator(candles market.CandleSource, prices market.PriceSource, registry *strategy.Registry) *Generator {
	return &Generator{
		candles:     candles,
		prices:      prices,
		registry:    registry,
		indicators:  indicators.DefaultConfig(),
		candleLimit: DefaultCandleLimit,
	}
}

// Record is a generated signal annotated for storage and display. ATR
// carries the 1h average true range so the order path can price ATR-mode
// exits without refetching candles.
type Record struct {
	TenantID  string          `json:"tenant_id"`
	Strategy  string          `json:"strategy"`
	Signal    strategy.Signal `json:"signal"`
	Price     float64         `json:"price"`
	ATR       float64         `json:"atr"`
	CreatedAt time.Time       `json:"created_at"`
}

// Generate evaluates the tenant's active strategy for one pair. Missing
// candle data for a required timeframe yields a flat signal with a reason,
// never an error; the scheduler just skips the pair this cycle.
func (g *Generator) Generate(ctx context.Context, tenantID, pair string) Record {
	strat := g.registry.ActiveFor(tenantID)

	data := strategy.Data{}
	for _, tf := range strat.RequiredTimeframes() {
		candles := g.candles.FetchCandles(ctx, pair, tf, g.candleLimit)
		if len(candles) == 0 {
			log.Printf("⚠️ no %s candles for %s, skipping", tf, pair)
			return g.record(tenantID, strat, pair, 0, flatRecord(strat, fmt.Sprintf("No %s candle data", tf)))
		}
		data[tf] = indicators.Compute(candles, g.indicators)
	}

	price := g.prices.LatestPrice(ctx, pair)
	if price == 0 {
		// Fall back to the last close of the fastest fetched timeframe.
		for _, tf := range strat.RequiredTimeframes() {
			if snap, ok := data[tf]; ok {
				price = snap.LastClose()
				break
			}
		}
	}
	if price == 0 {
		return g.record(tenantID, strat, pair, 0, flatRecord(strat, "Price unavailable"))
	}

	sig := strategy.SafeAnalyze(strat, data, price)
	sig.Pair = pair
	log.Printf("Signal for %s: %s (strength: %.2f)", pair, sig.Action, sig.Strength)

	rec := g.record(tenantID, strat, pair, price, sig)
	rec.ATR = latestATR(data, strat.RequiredTimeframes())
	return rec
}

// latestATR prefers the 1h reading and falls back to the first timeframe
// that has one.
func latestATR(data strategy.Data, timeframes []market.Timeframe) float64 {
	if snap, ok := data[market.Timeframe1h]; ok {
		if atr, ok := snap.Value("ATR"); ok {
			return atr
		}
	}
	for _, tf := range timeframes {
		if snap, ok := data[tf]; ok {
			if atr, ok := snap.Value("ATR"); ok {
				return atr
			}
		}
	}
	return 0
}

func (g *Generator) record(tenantID string, strat strategy.Strategy, pair string, price float64, sig strategy.Signal) Record {
	sig.Pair = pair
	return Record{
		TenantID:  tenantID,
		Strategy:  strat.Name(),
		Signal:    sig,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
}

func flatRecord(strat strategy.Strategy, reason string) strategy.Signal {
	return strategy.Signal{
		Action:     strategy.ActionFlat,
		Reasons:    []string{reason},
		Indicators: map[string]float64{},
		Metadata:   map[string]any{"strategy": strat.Name()},
	}
}

// ShouldClose reports whether a fresh signal contradicts an open position
// strongly enough to exit: the opposing side's score must exceed the
// reversal threshold and beat the position's own side. The scores are read
// pre-gate, so a signal floored to flat still counts.
func ShouldClose(side strategy.Action, sig strategy.Signal) bool {
	bullish := metaScore(sig, "bullish_score")
	bearish := metaScore(sig, "bearish_score")

	switch side {
	case strategy.ActionLong:
		return bearish > ReversalThreshold && bearish > bullish
	case strategy.ActionShort:
		return bullish > ReversalThreshold && bullish > bearish
	}
	return false
}

func metaScore(sig strategy.Signal, key string) float64 {
	if sig.Metadata == nil {
		return 0
	}
	if v, ok := sig.Metadata[key].(float64); ok {
		return v
	}
	return 0
}
