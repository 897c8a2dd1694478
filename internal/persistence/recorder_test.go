package persistence

import (
	"context"
	"testing"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/monitor"
	"futures-core/internal/signal"
	"futures-core/internal/strategy"
	"futures-core/pkg/db"
)

func testQueries(t *testing.T) *db.TenantQueries {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return database.Queries()
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func openPosition(t *testing.T, led *ledger.Ledger) ledger.Position {
	t.Helper()
	pos, err := led.Open(ledger.OpenRequest{
		Pair:       "B-BTC_USDT",
		Side:       ledger.Long,
		EntryPrice: 50000,
		Size:       0.01,
		Leverage:   5,
		Margin:     100,
		TakeProfit: 52000,
		StopLoss:   49000,
	})
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return pos
}

func TestRecorderPersistsSignals(t *testing.T) {
	queries := testQueries(t)
	bus := events.NewBus()
	ledgers := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})

	rec := NewRecorder(queries, bus, ledgers)
	rec.Start(context.Background())
	defer rec.Close()

	bus.PublishTenant(events.EventSignal, "tenant-1", signal.Record{
		TenantID: "tenant-1",
		Strategy: "combined",
		Signal: strategy.Signal{
			Pair:     "B-BTC_USDT",
			Action:   strategy.ActionLong,
			Strength: 0.8,
			Reasons:  []string{"ema crossover", "rsi recovering"},
		},
		Price: 50000,
	})

	waitFor(t, func() bool {
		rows, err := queries.GetSignalsByTenant(context.Background(), "tenant-1", "", 10)
		return err == nil && len(rows) == 1
	}, "signal row inserted")

	rows, err := queries.GetSignalsByTenant(context.Background(), "tenant-1", "", 10)
	if err != nil {
		t.Fatalf("get signals: %v", err)
	}
	if rows[0].Action != "long" || rows[0].Strength != 0.8 {
		t.Errorf("unexpected signal row: action=%s strength=%v", rows[0].Action, rows[0].Strength)
	}
	if rows[0].Reasons != "ema crossover; rsi recovering" {
		t.Errorf("reasons not joined: %q", rows[0].Reasons)
	}
}

func TestRecorderPositionLifecycle(t *testing.T) {
	queries := testQueries(t)
	bus := events.NewBus()
	ledgers := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})
	led := ledgers.GetOrCreate("tenant-1")

	rec := NewRecorder(queries, bus, ledgers)
	rec.Start(context.Background())
	defer rec.Close()

	pos := openPosition(t, led)
	bus.PublishTenant(events.EventPositionOpened, "tenant-1", pos)

	waitFor(t, func() bool {
		rows, err := queries.GetPositionsByTenant(context.Background(), "tenant-1")
		return err == nil && len(rows) == 1
	}, "position row upserted")

	w, err := queries.GetWallet(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 900 || w.LockedMargin != 100 {
		t.Errorf("wallet snapshot = balance %v locked %v, want 900/100", w.Balance, w.LockedMargin)
	}

	trade, err := led.Close(pos.ID, 52000, "take_profit")
	if err != nil {
		t.Fatalf("close position: %v", err)
	}
	bus.PublishTenant(events.EventPositionClosed, "tenant-1", monitor.Outcome{
		PositionID: pos.ID,
		Pair:       pos.Pair,
		Closed:     true,
		Reason:     "take_profit",
		Trade:      trade,
	})
	bus.PublishTenant(events.EventTradeRecorded, "tenant-1", trade)

	waitFor(t, func() bool {
		trades, err := queries.GetTradesByTenant(context.Background(), "tenant-1", 10)
		if err != nil || len(trades) != 1 {
			return false
		}
		positions, err := queries.GetPositionsByTenant(context.Background(), "tenant-1")
		return err == nil && len(positions) == 0
	}, "trade inserted and position deleted")

	trades, _ := queries.GetTradesByTenant(context.Background(), "tenant-1", 10)
	if trades[0].Reason != "take_profit" || trades[0].PnL <= 0 {
		t.Errorf("unexpected trade row: reason=%s pnl=%v", trades[0].Reason, trades[0].PnL)
	}
}

func TestRecorderUpdatesMarkPrice(t *testing.T) {
	queries := testQueries(t)
	bus := events.NewBus()
	ledgers := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})
	led := ledgers.GetOrCreate("tenant-1")

	rec := NewRecorder(queries, bus, ledgers)
	rec.Start(context.Background())
	defer rec.Close()

	pos := openPosition(t, led)
	bus.PublishTenant(events.EventPositionOpened, "tenant-1", pos)

	updated, err := led.UpdatePrice(pos.ID, 51000)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	bus.PublishTenant(events.EventPositionUpdated, "tenant-1", updated)

	waitFor(t, func() bool {
		rows, err := queries.GetPositionsByTenant(context.Background(), "tenant-1")
		return err == nil && len(rows) == 1 && rows[0].CurrentPrice == 51000
	}, "mark price refreshed")
}

func TestRestoreLedgersRebuildsState(t *testing.T) {
	queries := testQueries(t)
	ctx := context.Background()

	if err := queries.UpsertWallet(ctx, db.WalletRow{
		TenantID:       "tenant-1",
		Balance:        850,
		LockedMargin:   150,
		InitialBalance: 1000,
		TotalPnL:       0,
	}); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	if err := queries.UpsertPosition(ctx, db.PositionRow{
		ID:           "pos-1",
		TenantID:     "tenant-1",
		Pair:         "B-ETH_USDT",
		Side:         "short",
		EntryPrice:   3000,
		CurrentPrice: 2950,
		Size:         0.25,
		Leverage:     5,
		Margin:       150,
		TakeProfit:   2850,
		StopLoss:     3100,
		Status:       "open",
		OpenedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	manager := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})
	if err := RestoreLedgers(ctx, queries, manager, 3); err != nil {
		t.Fatalf("restore: %v", err)
	}

	led := manager.Get("tenant-1")
	if led == nil {
		t.Fatal("tenant-1 not restored")
	}
	if got := led.Wallet().Balance; got != 850 {
		t.Errorf("restored balance = %v, want 850", got)
	}
	pos, ok := led.PositionForPair("B-ETH_USDT")
	if !ok {
		t.Fatal("open position not restored")
	}
	if pos.ID != "pos-1" || pos.Side != ledger.Short {
		t.Errorf("restored position = %s %s, want pos-1 short", pos.ID, pos.Side)
	}
}

func TestRestoreLedgersReloadsTradeHistory(t *testing.T) {
	queries := testQueries(t)
	ctx := context.Background()

	if err := queries.UpsertWallet(ctx, db.WalletRow{
		TenantID:       "tenant-1",
		Balance:        1025,
		InitialBalance: 1000,
		TotalPnL:       25,
		TotalTrades:    2,
		WinningTrades:  1,
		LosingTrades:   1,
	}); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	seed := []db.TradeRow{
		{ID: "trade-1", TenantID: "tenant-1", PositionID: "pos-1", Pair: "B-BTC_USDT",
			Side: "long", EntryPrice: 50000, ExitPrice: 51000, Size: 0.04,
			PnL: 40, PnLPercent: 40, Reason: "TP reached", OpenedAt: time.Now().UTC()},
		{ID: "trade-2", TenantID: "tenant-1", PositionID: "pos-2", Pair: "B-ETH_USDT",
			Side: "short", EntryPrice: 3000, ExitPrice: 3050, Size: 0.3,
			PnL: -15, PnLPercent: -15, Reason: "SL reached", OpenedAt: time.Now().UTC()},
	}
	for _, tr := range seed {
		if err := queries.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("seed trade %s: %v", tr.ID, err)
		}
	}

	manager := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})
	if err := RestoreLedgers(ctx, queries, manager, 3); err != nil {
		t.Fatalf("restore: %v", err)
	}

	led := manager.Get("tenant-1")
	if led == nil {
		t.Fatal("tenant-1 not restored")
	}
	if got := len(led.Trades(0)); got != 2 {
		t.Fatalf("restored trade history = %d trades, want 2", got)
	}

	stats := led.Statistics()
	if stats.TotalTrades != 2 || stats.WinningTrades != 1 || stats.LosingTrades != 1 {
		t.Fatalf("counts wrong: %+v", stats)
	}
	if stats.AvgWin != 40 || stats.LargestWin != 40 {
		t.Errorf("win aggregates = avg %v largest %v, want 40", stats.AvgWin, stats.LargestWin)
	}
	if stats.AvgLoss != -15 || stats.LargestLoss != -15 {
		t.Errorf("loss aggregates = avg %v largest %v, want -15", stats.AvgLoss, stats.LargestLoss)
	}
}

func TestSaveAllSnapshotsOpenState(t *testing.T) {
	queries := testQueries(t)
	manager := ledger.NewManager(ledger.Defaults{InitialBalance: 1000, MaxOpenPositions: 3})
	led := manager.GetOrCreate("tenant-1")
	openPosition(t, led)

	SaveAll(context.Background(), queries, manager, []string{"tenant-1", "tenant-missing"})

	w, err := queries.GetWallet(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 900 {
		t.Errorf("saved balance = %v, want 900", w.Balance)
	}
	rows, err := queries.GetPositionsByTenant(context.Background(), "tenant-1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("saved positions = %d (%v), want 1", len(rows), err)
	}
}
