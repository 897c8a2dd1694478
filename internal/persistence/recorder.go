// Package persistence mirrors in-memory trading state into SQLite so a
// restart picks up wallets, open positions and history where they left off.
package persistence

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/monitor"
	"futures-core/internal/signal"
	"futures-core/pkg/db"
)

const subscriberBuffer = 256

// Recorder subscribes to the engine's event bus and writes each event to
// the database off the trading loop's critical path. One goroutine drains
// all topics, so writes for a tenant land in the order they were published.
type Recorder struct {
	queries *db.TenantQueries
	bus     *events.Bus
	ledgers *ledger.Manager

	mu     sync.Mutex
	writes int64
	errors int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRecorder creates a recorder bound to the shared bus and query layer.
func NewRecorder(queries *db.TenantQueries, bus *events.Bus, ledgers *ledger.Manager) *Recorder {
	return &Recorder{
		queries: queries,
		bus:     bus,
		ledgers: ledgers,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the persisted topics and launches the write loop.
func (r *Recorder) Start(ctx context.Context) {
	signals, unsubSignals := r.bus.Subscribe(events.EventSignal, subscriberBuffer)
	opened, unsubOpened := r.bus.Subscribe(events.EventPositionOpened, subscriberBuffer)
	updated, unsubUpdated := r.bus.Subscribe(events.EventPositionUpdated, subscriberBuffer)
	closed, unsubClosed := r.bus.Subscribe(events.EventPositionClosed, subscriberBuffer)
	trades, unsubTrades := r.bus.Subscribe(events.EventTradeRecorded, subscriberBuffer)

	go func() {
		defer close(r.done)
		defer unsubSignals()
		defer unsubOpened()
		defer unsubUpdated()
		defer unsubClosed()
		defer unsubTrades()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case p := <-signals:
				r.handleSignal(ctx, p)
			case p := <-opened:
				r.handlePositionOpened(ctx, p)
			case p := <-updated:
				r.handlePositionUpdated(ctx, p)
			case p := <-closed:
				r.handlePositionClosed(ctx, p)
			case p := <-trades:
				r.handleTrade(ctx, p)
			}
		}
	}()
}

// Close stops the write loop and waits for in-flight writes to finish.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	w, e := r.Stats()
	log.Printf("💾 persistence recorder stopped: %d writes, %d errors", w, e)
}

// Stats reports total writes and write errors since start.
func (r *Recorder) Stats() (writes, errors int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes, r.errors
}

func (r *Recorder) record(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if err != nil {
		r.errors++
		log.Printf("⚠️ persistence %s failed: %v", op, err)
	}
}

func (r *Recorder) handleSignal(ctx context.Context, payload any) {
	tp, ok := payload.(events.TenantPayload)
	if !ok {
		return
	}
	rec, ok := tp.Data.(signal.Record)
	if !ok {
		return
	}
	err := r.queries.InsertSignal(ctx, db.SignalRow{
		TenantID:   tp.TenantID,
		Pair:       rec.Signal.Pair,
		Strategy:   rec.Strategy,
		Action:     string(rec.Signal.Action),
		Strength:   rec.Signal.Strength,
		Confidence: rec.Signal.Confidence,
		Price:      rec.Price,
		Reasons:    db.JoinReasons(rec.Signal.Reasons),
	})
	r.record("insert signal", err)
}

func (r *Recorder) handlePositionOpened(ctx context.Context, payload any) {
	tp, ok := payload.(events.TenantPayload)
	if !ok {
		return
	}
	pos, ok := tp.Data.(ledger.Position)
	if !ok {
		return
	}
	r.record("upsert position", r.queries.UpsertPosition(ctx, positionRow(tp.TenantID, pos)))
	r.snapshotWallet(ctx, tp.TenantID)
}

func (r *Recorder) handlePositionUpdated(ctx context.Context, payload any) {
	tp, ok := payload.(events.TenantPayload)
	if !ok {
		return
	}
	pos, ok := tp.Data.(ledger.Position)
	if !ok {
		return
	}
	r.record("upsert position", r.queries.UpsertPosition(ctx, positionRow(tp.TenantID, pos)))
}

func (r *Recorder) handlePositionClosed(ctx context.Context, payload any) {
	tp, ok := payload.(events.TenantPayload)
	if !ok {
		return
	}
	out, ok := tp.Data.(monitor.Outcome)
	if !ok {
		return
	}
	r.record("delete position", r.queries.DeletePosition(ctx, tp.TenantID, out.PositionID))
}

func (r *Recorder) handleTrade(ctx context.Context, payload any) {
	tp, ok := payload.(events.TenantPayload)
	if !ok {
		return
	}
	trade, ok := tp.Data.(ledger.Trade)
	if !ok {
		return
	}
	err := r.queries.InsertTrade(ctx, db.TradeRow{
		ID:         uuid.NewString(),
		TenantID:   tp.TenantID,
		PositionID: trade.PositionID,
		Pair:       trade.Pair,
		Side:       string(trade.Side),
		EntryPrice: trade.EntryPrice,
		ExitPrice:  trade.ExitPrice,
		Size:       trade.Size,
		Leverage:   trade.Leverage,
		PnL:        trade.PnL,
		PnLPercent: trade.PnLPercent,
		Reason:     trade.CloseReason,
		OpenedAt:   trade.OpenedAt,
	})
	r.record("insert trade", err)
	r.snapshotWallet(ctx, tp.TenantID)
}

func (r *Recorder) snapshotWallet(ctx context.Context, tenantID string) {
	led := r.ledgers.Get(tenantID)
	if led == nil {
		return
	}
	w := led.Wallet()
	err := r.queries.UpsertWallet(ctx, db.WalletRow{
		TenantID:       tenantID,
		Balance:        w.Balance,
		LockedMargin:   w.LockedMargin,
		InitialBalance: w.InitialBalance,
		TotalPnL:       w.TotalPnL,
		TotalTrades:    w.TotalTrades,
		WinningTrades:  w.WinningTrades,
		LosingTrades:   w.LosingTrades,
	})
	r.record("upsert wallet", err)
}

func positionRow(tenantID string, pos ledger.Position) db.PositionRow {
	return db.PositionRow{
		ID:            pos.ID,
		TenantID:      tenantID,
		Pair:          pos.Pair,
		Side:          string(pos.Side),
		EntryPrice:    pos.EntryPrice,
		CurrentPrice:  pos.CurrentPrice,
		Size:          pos.Size,
		Leverage:      pos.Leverage,
		Margin:        pos.Margin,
		TakeProfit:    pos.TakeProfit,
		StopLoss:      pos.StopLoss,
		UnrealizedPnL: pos.PnL,
		Status:        pos.Status,
		OpenedAt:      pos.OpenedAt,
	}
}

// RestoreLedgers loads every persisted tenant into the manager, rebuilding
// wallets, open positions and closed-trade history. Tenants without rows
// fall through to the manager's defaults on first use.
func RestoreLedgers(ctx context.Context, queries *db.TenantQueries, manager *ledger.Manager, maxOpenPositions int) error {
	tenants, err := queries.Tenants(ctx)
	if err != nil {
		return err
	}

	for _, tenantID := range tenants {
		row, err := queries.GetWallet(ctx, tenantID)
		if err == db.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}

		rows, err := queries.GetPositionsByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		positions := make([]ledger.Position, 0, len(rows))
		for _, p := range rows {
			positions = append(positions, ledger.Position{
				ID:           p.ID,
				Pair:         p.Pair,
				Side:         ledger.Side(p.Side),
				EntryPrice:   p.EntryPrice,
				Size:         p.Size,
				Leverage:     p.Leverage,
				Margin:       p.Margin,
				TakeProfit:   p.TakeProfit,
				StopLoss:     p.StopLoss,
				CurrentPrice: p.CurrentPrice,
				PnL:          p.UnrealizedPnL,
				Status:       p.Status,
				OpenedAt:     p.OpenedAt,
			})
		}

		tradeRows, err := queries.GetTradesByTenant(ctx, tenantID, 0)
		if err != nil {
			return err
		}
		// Query is newest-first; the ledger keeps history newest-last.
		trades := make([]ledger.Trade, 0, len(tradeRows))
		for i := len(tradeRows) - 1; i >= 0; i-- {
			t := tradeRows[i]
			trades = append(trades, ledger.Trade{
				PositionID:  t.PositionID,
				Pair:        t.Pair,
				Side:        ledger.Side(t.Side),
				Size:        t.Size,
				EntryPrice:  t.EntryPrice,
				ExitPrice:   t.ExitPrice,
				Leverage:    t.Leverage,
				PnL:         t.PnL,
				PnLPercent:  t.PnLPercent,
				CloseReason: t.Reason,
				OpenedAt:    t.OpenedAt,
				ClosedAt:    t.ClosedAt,
			})
		}

		wallet := ledger.Wallet{
			Balance:        row.Balance,
			LockedMargin:   row.LockedMargin,
			InitialBalance: row.InitialBalance,
			TotalPnL:       row.TotalPnL,
			TotalTrades:    row.TotalTrades,
			WinningTrades:  row.WinningTrades,
			LosingTrades:   row.LosingTrades,
		}
		manager.Put(tenantID, ledger.Restore(tenantID, wallet, positions, trades, maxOpenPositions))
		log.Printf("💾 restored tenant %s: balance=%.2f open_positions=%d trades=%d",
			tenantID, wallet.Balance, len(positions), len(trades))
	}

	if len(tenants) > 0 {
		log.Printf("💾 restored %d tenant(s) from database", len(tenants))
	}
	return nil
}

// SaveAll snapshots every active tenant's wallet and open positions, used
// on shutdown after the trading loops have stopped.
func SaveAll(ctx context.Context, queries *db.TenantQueries, manager *ledger.Manager, tenants []string) {
	for _, tenantID := range tenants {
		led := manager.Get(tenantID)
		if led == nil {
			continue
		}
		w := led.Wallet()
		if err := queries.UpsertWallet(ctx, db.WalletRow{
			TenantID:       tenantID,
			Balance:        w.Balance,
			LockedMargin:   w.LockedMargin,
			InitialBalance: w.InitialBalance,
			TotalPnL:       w.TotalPnL,
			TotalTrades:    w.TotalTrades,
			WinningTrades:  w.WinningTrades,
			LosingTrades:   w.LosingTrades,
		}); err != nil {
			log.Printf("⚠️ final wallet save failed for %s: %v", tenantID, err)
		}
		for _, pos := range led.Positions() {
			if err := queries.UpsertPosition(ctx, positionRow(tenantID, pos)); err != nil {
				log.Printf("⚠️ final position save failed for %s %s: %v", tenantID, pos.Pair, err)
			}
		}
	}
}
