package db

import (
	"context"
	"testing"
	"time"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestTenantQueriesRequireTenantID(t *testing.T) {
	q := testDB(t).Queries()
	ctx := context.Background()

	t.Run("GetPositionsByTenant requires tenantID", func(t *testing.T) {
		_, err := q.GetPositionsByTenant(ctx, "")
		if err != ErrTenantIDRequired {
			t.Errorf("expected ErrTenantIDRequired, got %v", err)
		}
	})

	t.Run("GetTradesByTenant requires tenantID", func(t *testing.T) {
		_, err := q.GetTradesByTenant(ctx, "", 100)
		if err != ErrTenantIDRequired {
			t.Errorf("expected ErrTenantIDRequired, got %v", err)
		}
	})

	t.Run("GetSignalsByTenant requires tenantID", func(t *testing.T) {
		_, err := q.GetSignalsByTenant(ctx, "", "", 100)
		if err != ErrTenantIDRequired {
			t.Errorf("expected ErrTenantIDRequired, got %v", err)
		}
	})

	t.Run("UpsertWallet requires tenantID", func(t *testing.T) {
		if err := q.UpsertWallet(ctx, WalletRow{}); err != ErrTenantIDRequired {
			t.Errorf("expected ErrTenantIDRequired, got %v", err)
		}
	})
}

func TestTenantQueriesDataIsolation(t *testing.T) {
	q := testDB(t).Queries()
	ctx := context.Background()

	tenantA := "tenant-a-123"
	tenantB := "tenant-b-456"

	tradeA := TradeRow{
		ID: "trade-a-1", TenantID: tenantA, PositionID: "pos-a-1",
		Pair: "B-BTC_USDT", Side: "long", EntryPrice: 50000, ExitPrice: 51000,
		Size: 0.1, Leverage: 5, Margin: 1000, PnL: 100, PnLPercent: 10,
		Reason: "TP reached", OpenedAt: time.Now(),
	}
	tradeB := TradeRow{
		ID: "trade-b-1", TenantID: tenantB, PositionID: "pos-b-1",
		Pair: "B-ETH_USDT", Side: "short", EntryPrice: 3000, ExitPrice: 3100,
		Size: 1, Leverage: 5, Margin: 600, PnL: -100, PnLPercent: -16.7,
		Reason: "SL reached", OpenedAt: time.Now(),
	}

	if err := q.InsertTrade(ctx, tradeA); err != nil {
		t.Fatalf("Failed to insert trade A: %v", err)
	}
	if err := q.InsertTrade(ctx, tradeB); err != nil {
		t.Fatalf("Failed to insert trade B: %v", err)
	}

	t.Run("Tenant A sees only their trades", func(t *testing.T) {
		trades, err := q.GetTradesByTenant(ctx, tenantA, 100)
		if err != nil {
			t.Fatalf("Failed to get trades: %v", err)
		}
		if len(trades) != 1 {
			t.Fatalf("expected 1 trade, got %d", len(trades))
		}
		if trades[0].ID != "trade-a-1" {
			t.Errorf("expected trade-a-1, got %s", trades[0].ID)
		}
	})

	t.Run("Zero limit returns full history", func(t *testing.T) {
		trades, err := q.GetTradesByTenant(ctx, tenantA, 0)
		if err != nil {
			t.Fatalf("Failed to get trades: %v", err)
		}
		if len(trades) != 1 {
			t.Fatalf("expected 1 trade, got %d", len(trades))
		}
	})

	t.Run("Unknown tenant sees no trades", func(t *testing.T) {
		trades, err := q.GetTradesByTenant(ctx, "tenant-unknown", 100)
		if err != nil {
			t.Fatalf("Failed to get trades: %v", err)
		}
		if len(trades) != 0 {
			t.Errorf("expected 0 trades, got %d", len(trades))
		}
	})
}

func TestWalletRoundTrip(t *testing.T) {
	q := testDB(t).Queries()
	ctx := context.Background()

	w := WalletRow{
		TenantID: "tenant-1", Balance: 900, LockedMargin: 100,
		InitialBalance: 1000, TotalPnL: 0, TotalTrades: 0,
	}
	if err := q.UpsertWallet(ctx, w); err != nil {
		t.Fatalf("Failed to upsert wallet: %v", err)
	}

	w.Balance = 950
	w.LockedMargin = 50
	w.TotalPnL = 0
	if err := q.UpsertWallet(ctx, w); err != nil {
		t.Fatalf("Failed to update wallet: %v", err)
	}

	got, err := q.GetWallet(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if got.Balance != 950 || got.LockedMargin != 50 {
		t.Errorf("wallet = %+v, want balance 950 locked 50", got)
	}
	if got.InitialBalance != 1000 {
		t.Errorf("initial balance = %.2f, want 1000 preserved", got.InitialBalance)
	}

	if _, err := q.GetWallet(ctx, "tenant-missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing wallet, got %v", err)
	}
}

func TestPositionUpsertAndDelete(t *testing.T) {
	q := testDB(t).Queries()
	ctx := context.Background()

	p := PositionRow{
		ID: "pos-1", TenantID: "tenant-1", Pair: "B-BTC_USDT", Side: "long",
		EntryPrice: 100, CurrentPrice: 100, Size: 2, Leverage: 5, Margin: 40,
		TakeProfit: 104, StopLoss: 98, OpenedAt: time.Now(),
	}
	if err := q.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("Failed to insert position: %v", err)
	}

	p.CurrentPrice = 102
	p.UnrealizedPnL = 4
	if err := q.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("Failed to update position: %v", err)
	}

	positions, err := q.GetPositionsByTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("Failed to get positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].CurrentPrice != 102 || positions[0].UnrealizedPnL != 4 {
		t.Errorf("position = %+v, want current 102 pnl 4", positions[0])
	}

	if err := q.DeletePosition(ctx, "tenant-1", "pos-1"); err != nil {
		t.Fatalf("Failed to delete position: %v", err)
	}
	positions, err = q.GetPositionsByTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("Failed to get positions: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("expected 0 positions after delete, got %d", len(positions))
	}
}

func TestSignalHistoryFilterByPair(t *testing.T) {
	q := testDB(t).Queries()
	ctx := context.Background()

	for _, pair := range []string{"B-BTC_USDT", "B-ETH_USDT", "B-BTC_USDT"} {
		err := q.InsertSignal(ctx, SignalRow{
			TenantID: "tenant-1", Pair: pair, Strategy: "combined",
			Action: "long", Strength: 0.8, Price: 100,
			Reasons: JoinReasons([]string{"trend up", "macd cross"}),
		})
		if err != nil {
			t.Fatalf("Failed to insert signal: %v", err)
		}
	}

	all, err := q.GetSignalsByTenant(ctx, "tenant-1", "", 100)
	if err != nil {
		t.Fatalf("Failed to get signals: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 signals, got %d", len(all))
	}

	btc, err := q.GetSignalsByTenant(ctx, "tenant-1", "B-BTC_USDT", 100)
	if err != nil {
		t.Fatalf("Failed to get signals: %v", err)
	}
	if len(btc) != 2 {
		t.Errorf("expected 2 BTC signals, got %d", len(btc))
	}
}

func TestStrategyConfigQueries(t *testing.T) {
	database := testDB(t)
	q := database.Queries()
	ctx := context.Background()

	_, err := database.DB.Exec(`
		INSERT INTO strategy_configs (tenant_id, strategy_id, params)
		VALUES ('tenant-1', 'macd_trend', '{"min_strength":0.7}')
	`)
	if err != nil {
		t.Fatalf("Failed to seed config: %v", err)
	}

	cfg, err := q.GetStrategyConfig(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("Failed to get config: %v", err)
	}
	if cfg.StrategyID != "macd_trend" {
		t.Errorf("strategy = %s, want macd_trend", cfg.StrategyID)
	}

	tenants, err := q.Tenants(ctx)
	if err != nil {
		t.Fatalf("Failed to list tenants: %v", err)
	}
	if len(tenants) != 1 || tenants[0] != "tenant-1" {
		t.Errorf("tenants = %v, want [tenant-1]", tenants)
	}
}
