// Package ledger is the authoritative per-tenant store of balance, locked
// margin, open positions and closed-trade history. All margin accounting
// runs through here: opening a position debits exactly its margin from the
// available balance, closing credits back exactly the margin plus realized
// P&L. Unrealized P&L never touches the wallet, only the position's own
// pnl field.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Side is a position direction.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Declared open-precondition failures. These abort the transition and the
// ledger stays untouched; callers log and retry naturally next cycle.
var (
	ErrPairAlreadyOpen     = errors.New("position already open for pair")
	ErrMaxPositions        = errors.New("max open positions reached")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPositionNotFound    = errors.New("position not found")
)

// Position is one open leveraged position. It is owned by exactly one
// tenant's ledger and mutated only through UpdatePrice and Close.
type Position struct {
	ID           string    `json:"id"`
	Pair         string    `json:"pair"`
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	Size         float64   `json:"size"`
	Leverage     float64   `json:"leverage"`
	Margin       float64   `json:"margin"`
	TakeProfit   float64   `json:"take_profit"`
	StopLoss     float64   `json:"stop_loss"`
	CurrentPrice float64   `json:"current_price"`
	PnL          float64   `json:"pnl"`
	PnLPercent   float64   `json:"pnl_percent"`
	Status       string    `json:"status"`
	OpenedAt     time.Time `json:"opened_at"`
}

// Trade is an immutable closed-position record.
type Trade struct {
	PositionID  string    `json:"position_id"`
	Pair        string    `json:"pair"`
	Side        Side      `json:"side"`
	Size        float64   `json:"size"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Leverage    float64   `json:"leverage"`
	PnL         float64   `json:"pnl"`
	PnLPercent  float64   `json:"pnl_percent"`
	CloseReason string    `json:"close_reason"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
}

// Wallet is the tenant's margin account. Balance + LockedMargin always
// equals InitialBalance + TotalPnL.
type Wallet struct {
	Balance        float64 `json:"balance"`
	LockedMargin   float64 `json:"locked_margin"`
	InitialBalance float64 `json:"initial_balance"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
}

// TotalEquity is available balance plus locked margin, excluding the
// unrealized P&L of open positions.
func (w Wallet) TotalEquity() float64 {
	return w.Balance + w.LockedMargin
}

// OpenRequest describes a position about to be recorded after a successful
// order acknowledgement.
type OpenRequest struct {
	Pair       string
	Side       Side
	EntryPrice float64
	Size       float64
	Leverage   float64
	Margin     float64
	TakeProfit float64
	StopLoss   float64
}

// Ledger holds one tenant's wallet, open positions and trade history.
// The trading loop is the only writer; the dashboard read path takes the
// read lock and gets eventually-consistent snapshots.
type Ledger struct {
	mu        sync.RWMutex
	tenantID  string
	wallet    Wallet
	maxOpen   int
	positions map[string]*Position
	trades    []Trade
}

// New creates a ledger with the given starting balance and open-position
// cap.
func New(tenantID string, initialBalance float64, maxOpenPositions int) *Ledger {
	return &Ledger{
		tenantID: tenantID,
		wallet: Wallet{
			Balance:        initialBalance,
			InitialBalance: initialBalance,
		},
		maxOpen:   maxOpenPositions,
		positions: make(map[string]*Position),
	}
}

// Restore rebuilds a ledger from persisted state. Positions keep their
// original IDs so the monitor can close them across restarts, and the
// closed-trade history is carried over so Trades and Statistics stay
// consistent with the wallet counters.
func Restore(tenantID string, wallet Wallet, positions []Position, trades []Trade, maxOpenPositions int) *Ledger {
	l := &Ledger{
		tenantID:  tenantID,
		wallet:    wallet,
		maxOpen:   maxOpenPositions,
		positions: make(map[string]*Position, len(positions)),
		trades:    append([]Trade(nil), trades...),
	}
	for i := range positions {
		p := positions[i]
		l.positions[p.ID] = &p
	}
	return l
}

// TenantID identifies the owning tenant.
func (l *Ledger) TenantID() string { return l.tenantID }

// CanOpen checks the open preconditions without mutating anything.
func (l *Ledger) CanOpen(pair string, margin float64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.canOpenLocked(pair, margin)
}

func (l *Ledger) canOpenLocked(pair string, margin float64) error {
	for _, p := range l.positions {
		if p.Pair == pair {
			return ErrPairAlreadyOpen
		}
	}
	if len(l.positions) >= l.maxOpen {
		return ErrMaxPositions
	}
	if l.wallet.Balance < margin {
		return ErrInsufficientBalance
	}
	return nil
}

// Open records a new position, debiting its margin from the balance. The
// preconditions are re-checked under the lock; any failure leaves the
// ledger untouched.
func (l *Ledger) Open(req OpenRequest) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.canOpenLocked(req.Pair, req.Margin); err != nil {
		return Position{}, err
	}

	l.wallet.Balance -= req.Margin
	l.wallet.LockedMargin += req.Margin

	pos := &Position{
		ID:           uuid.NewString(),
		Pair:         req.Pair,
		Side:         req.Side,
		EntryPrice:   req.EntryPrice,
		Size:         req.Size,
		Leverage:     req.Leverage,
		Margin:       req.Margin,
		TakeProfit:   req.TakeProfit,
		StopLoss:     req.StopLoss,
		CurrentPrice: req.EntryPrice,
		Status:       "open",
		OpenedAt:     time.Now().UTC(),
	}
	l.positions[pos.ID] = pos

	log.Printf("💰 [%s] opened %s %s: entry=%.2f size=%.6f margin=%.2f balance=%.2f",
		l.tenantID, pos.Side, pos.Pair, pos.EntryPrice, pos.Size, pos.Margin, l.wallet.Balance)
	return *pos, nil
}

// UpdatePrice refreshes a position's mark price and unrealized P&L.
func (l *Ledger) UpdatePrice(positionID string, price float64) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[positionID]
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	pos.CurrentPrice = price
	pos.PnL = realizedPnL(pos.Side, pos.EntryPrice, price, pos.Size)
	if pos.Margin > 0 {
		pos.PnLPercent = pos.PnL / pos.Margin * 100
	}
	return *pos, nil
}

// UpdateStopLoss tightens a position's stop. Callers are expected to have
// run the trailing ratchet first; the value is stored as given.
func (l *Ledger) UpdateStopLoss(positionID string, stop float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[positionID]
	if !ok {
		return ErrPositionNotFound
	}
	pos.StopLoss = stop
	return nil
}

// Close realizes a position: credits margin plus P&L back to the balance,
// updates the trade counters, appends an immutable Trade and removes the
// position from the open set. A position can be closed exactly once.
func (l *Ledger) Close(positionID string, exitPrice float64, reason string) (Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[positionID]
	if !ok {
		return Trade{}, ErrPositionNotFound
	}

	pnl := realizedPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Size)

	l.wallet.LockedMargin -= pos.Margin
	l.wallet.Balance += pos.Margin + pnl
	l.wallet.TotalPnL += pnl
	l.wallet.TotalTrades++
	if pnl > 0 {
		l.wallet.WinningTrades++
	} else {
		l.wallet.LosingTrades++
	}

	trade := Trade{
		PositionID:  pos.ID,
		Pair:        pos.Pair,
		Side:        pos.Side,
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Leverage:    pos.Leverage,
		PnL:         pnl,
		CloseReason: reason,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    time.Now().UTC(),
	}
	if pos.Margin > 0 {
		trade.PnLPercent = pnl / pos.Margin * 100
	}
	l.trades = append(l.trades, trade)
	delete(l.positions, positionID)

	log.Printf("💰 [%s] closed %s %s: entry=%.2f exit=%.2f pnl=%.2f (%s) balance=%.2f",
		l.tenantID, trade.Side, trade.Pair, trade.EntryPrice, trade.ExitPrice, trade.PnL, reason, l.wallet.Balance)
	return trade, nil
}

// realizedPnL applies the side formula: long (exit-entry)*size, short
// (entry-exit)*size.
func realizedPnL(side Side, entry, exit, size float64) float64 {
	if side == Long {
		return (exit - entry) * size
	}
	return (entry - exit) * size
}

// Wallet returns a snapshot of the margin account.
func (l *Ledger) Wallet() Wallet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.wallet
}

// Position returns a copy of one open position.
func (l *Ledger) Position(positionID string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if pos, ok := l.positions[positionID]; ok {
		return *pos, true
	}
	return Position{}, false
}

// Positions lists copies of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// PositionForPair returns a copy of the open position on a pair, if any.
func (l *Ledger) PositionForPair(pair string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, pos := range l.positions {
		if pos.Pair == pair {
			return *pos, true
		}
	}
	return Position{}, false
}

// HasPositionForPair reports whether the pair already has an open position.
func (l *Ledger) HasPositionForPair(pair string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, pos := range l.positions {
		if pos.Pair == pair {
			return true
		}
	}
	return false
}

// OpenCount is the number of open positions.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Utilization is locked margin over total equity, in [0,1]. Zero equity
// reads as fully utilized.
func (l *Ledger) Utilization() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	equity := l.wallet.TotalEquity()
	if equity <= 0 {
		return 1
	}
	return l.wallet.LockedMargin / equity
}

// Trades returns the most recent closed trades, newest last.
func (l *Ledger) Trades(limit int) []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.trades) {
		limit = len(l.trades)
	}
	out := make([]Trade, limit)
	copy(out, l.trades[len(l.trades)-limit:])
	return out
}

// Statistics summarizes the closed-trade history.
type Statistics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	TotalPnL      float64 `json:"total_pnl"`
	PnLPercent    float64 `json:"pnl_percent"`
}

// Statistics computes win rate and P&L aggregates over the trade history.
func (l *Ledger) Statistics() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Statistics{
		TotalTrades:   l.wallet.TotalTrades,
		WinningTrades: l.wallet.WinningTrades,
		LosingTrades:  l.wallet.LosingTrades,
		TotalPnL:      l.wallet.TotalPnL,
	}
	if l.wallet.InitialBalance > 0 {
		stats.PnLPercent = (l.wallet.TotalEquity() - l.wallet.InitialBalance) / l.wallet.InitialBalance * 100
	}
	if stats.TotalTrades == 0 {
		return stats
	}
	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100

	var winSum, lossSum float64
	for _, t := range l.trades {
		if t.PnL > 0 {
			winSum += t.PnL
			if t.PnL > stats.LargestWin {
				stats.LargestWin = t.PnL
			}
		} else {
			lossSum += t.PnL
			if t.PnL < stats.LargestLoss {
				stats.LargestLoss = t.PnL
			}
		}
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = winSum / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = lossSum / float64(stats.LosingTrades)
	}
	return stats
}

// String renders a short wallet summary for logs.
func (l *Ledger) String() string {
	w := l.Wallet()
	return fmt.Sprintf("ledger[%s] balance=%.2f locked=%.2f pnl=%.2f open=%d",
		l.tenantID, w.Balance, w.LockedMargin, w.TotalPnL, l.OpenCount())
}
