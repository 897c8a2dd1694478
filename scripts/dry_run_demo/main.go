package main

import (
	"context"
	"log"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/market"
	"futures-core/internal/monitor"
	"futures-core/internal/risk"
	"futures-core/internal/scheduler"
	"futures-core/internal/signal"
	"futures-core/internal/strategy"
)

// dry_run_demo exercises a full trading cycle against the mock feed: signal
// generation, position sizing, paper fills and the monitor's exit checks.
// It never touches an exchange or the database.
//
// Usage:
//   go run ./scripts/dry_run_demo

func main() {
	log.Println("=== dry-run demo starting ===")

	const tenantID = "demo"
	feed := market.NewMockFeed(50000, 150)
	bus := events.NewBus()
	registry := strategy.NewRegistry()
	generator := signal.NewGenerator(feed, feed, registry)

	led := ledger.New(tenantID, 1000, 3)
	riskCfg := risk.DefaultConfig()
	loopCfg := scheduler.DefaultConfig()
	loopCfg.Symbols = []string{"B-BTC_USDT", "B-ETH_USDT"}
	loopCfg.MinSignalStrength = 0.3 // demo: open eagerly

	mon := monitor.New(tenantID, feed, feed, led, generator, riskCfg)
	sched := scheduler.New(tenantID, loopCfg, riskCfg, led, mon, generator, feed, bus)

	opened, unsub := bus.Subscribe(events.EventPositionOpened, 10)
	defer unsub()
	go func() {
		for p := range opened {
			tp := p.(events.TenantPayload)
			pos := tp.Data.(ledger.Position)
			log.Printf("📢 event: opened %s %s @ %.2f", pos.Side, pos.Pair, pos.EntryPrice)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		log.Printf("--- cycle %d ---", i+1)
		sched.Tick(ctx)
		time.Sleep(200 * time.Millisecond)
	}

	w := led.Wallet()
	log.Printf("final wallet: balance=%.2f locked=%.2f trades=%d pnl=%.2f",
		w.Balance, w.LockedMargin, w.TotalTrades, w.TotalPnL)
	for _, pos := range led.Positions() {
		log.Printf("open: %s %s entry=%.2f sl=%.2f tp=%.2f pnl=%.2f",
			pos.Side, pos.Pair, pos.EntryPrice, pos.StopLoss, pos.TakeProfit, pos.PnL)
	}
	log.Println("=== dry-run demo complete ===")
}
