// Package monitor drives each open position through its lifecycle: price
// refresh, take-profit/stop-loss checks, trailing-stop ratcheting and
// signal-reversal exits. Exactly one closing reason wins per tick, with
// TP/SL taking priority over reversal.
package monitor

import (
	"context"
	"log"

	"futures-core/internal/ledger"
	"futures-core/internal/market"
	"futures-core/internal/risk"
	"futures-core/internal/signal"
	"futures-core/internal/strategy"
)

// Close reasons recorded on the resulting trade.
const (
	ReasonTakeProfit = "TP reached"
	ReasonStopLoss   = "SL reached"
	ReasonReversal   = "Signal reversal"
	ReasonManual     = "Manual close"
)

// SignalSource re-evaluates the market for a pair; satisfied by
// signal.Generator.
type SignalSource interface {
	Generate(ctx context.Context, tenantID, pair string) signal.Record
}

// Monitor ticks the open positions of one tenant's ledger.
type Monitor struct {
	tenantID  string
	prices    market.PriceSource
	broker    market.Broker
	ledger    *ledger.Ledger
	generator SignalSource
	risk      risk.Config
}

// New wires a monitor for one tenant.
func New(tenantID string, prices market.PriceSource, broker market.Broker, led *ledger.Ledger, gen SignalSource, riskCfg risk.Config) *Monitor {
	return &Monitor{
		tenantID:  tenantID,
		prices:    prices,
		broker:    broker,
		ledger:    led,
		generator: gen,
		risk:      riskCfg,
	}
}

// Outcome reports what happened to one position during a tick.
type Outcome struct {
	PositionID string
	Pair       string
	Closed     bool
	Reason     string
	Trade      ledger.Trade
}

// Tick processes every open position once and returns the per-position
// outcomes. A position whose price is unavailable is skipped this tick.
func (m *Monitor) Tick(ctx context.Context) []Outcome {
	positions := m.ledger.Positions()
	outcomes := make([]Outcome, 0, len(positions))
	for _, pos := range positions {
		outcomes = append(outcomes, m.checkPosition(ctx, pos))
	}
	return outcomes
}

// ClosePosition closes one position at the current market price on an
// external request.
func (m *Monitor) ClosePosition(ctx context.Context, positionID string) (Outcome, error) {
	pos, ok := m.ledger.Position(positionID)
	if !ok {
		return Outcome{}, ledger.ErrPositionNotFound
	}
	price := m.prices.LatestPrice(ctx, pos.Pair)
	if price == 0 {
		price = pos.CurrentPrice
	}
	return m.close(ctx, pos, price, ReasonManual), nil
}

func (m *Monitor) checkPosition(ctx context.Context, pos ledger.Position) Outcome {
	out := Outcome{PositionID: pos.ID, Pair: pos.Pair}

	price := m.prices.LatestPrice(ctx, pos.Pair)
	if price == 0 {
		log.Printf("⚠️ [%s] price unavailable for %s, skipping tick", m.tenantID, pos.Pair)
		return out
	}

	updated, err := m.ledger.UpdatePrice(pos.ID, price)
	if err != nil {
		// Closed between snapshot and update, nothing to do.
		return out
	}

	if reason := exitReason(updated, price); reason != "" {
		return m.close(ctx, updated, price, reason)
	}

	if m.risk.TrailingStop {
		long := updated.Side == ledger.Long
		if newStop, ok := risk.TrailingStop(updated.EntryPrice, price, updated.StopLoss, long, m.risk.TrailingStopPercent); ok {
			if err := m.ledger.UpdateStopLoss(updated.ID, newStop); err == nil {
				log.Printf("📈 [%s] trailing stop for %s %s: %.2f -> %.2f",
					m.tenantID, updated.Side, updated.Pair, updated.StopLoss, newStop)
			}
			return out
		}
	}

	rec := m.generator.Generate(ctx, m.tenantID, updated.Pair)
	if signal.ShouldClose(sideAction(updated.Side), rec.Signal) {
		log.Printf("🔄 [%s] signal reversal for %s %s", m.tenantID, updated.Side, updated.Pair)
		return m.close(ctx, updated, price, ReasonReversal)
	}
	return out
}

// close submits the exchange close first; the ledger is only mutated on a
// successful acknowledgement.
func (m *Monitor) close(ctx context.Context, pos ledger.Position, price float64, reason string) Outcome {
	out := Outcome{PositionID: pos.ID, Pair: pos.Pair, Reason: reason}

	if err := m.broker.ClosePosition(ctx, pos.ID); err != nil {
		log.Printf("❌ [%s] close order failed for %s: %v", m.tenantID, pos.Pair, err)
		return out
	}

	trade, err := m.ledger.Close(pos.ID, price, reason)
	if err != nil {
		return out
	}
	out.Closed = true
	out.Trade = trade
	return out
}

// exitReason checks TP before SL; long positions exit at price >= TP or
// price <= SL, shorts mirrored. A zero level is treated as unset.
func exitReason(pos ledger.Position, price float64) string {
	if pos.Side == ledger.Long {
		if pos.TakeProfit > 0 && price >= pos.TakeProfit {
			return ReasonTakeProfit
		}
		if pos.StopLoss > 0 && price <= pos.StopLoss {
			return ReasonStopLoss
		}
		return ""
	}
	if pos.TakeProfit > 0 && price <= pos.TakeProfit {
		return ReasonTakeProfit
	}
	if pos.StopLoss > 0 && price >= pos.StopLoss {
		return ReasonStopLoss
	}
	return ""
}

func sideAction(side ledger.Side) strategy.Action {
	if side == ledger.Short {
		return strategy.ActionShort
	}
	return strategy.ActionLong
}
