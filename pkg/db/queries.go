// Package db provides tenant-isolated persistence for wallets, positions,
// trades and signal history.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTenantIDRequired = errors.New("tenant_id is required for data isolation")
	ErrNotFound         = errors.New("record not found")
)

// TenantQueries provides tenant-isolated database queries.
type TenantQueries struct {
	db *sql.DB
}

// NewTenantQueries creates a new TenantQueries instance.
func NewTenantQueries(db *sql.DB) *TenantQueries {
	return &TenantQueries{db: db}
}

// ----------------------------------------
// Wallet Queries
// ----------------------------------------

// UpsertWallet persists a tenant's wallet snapshot.
func (q *TenantQueries) UpsertWallet(ctx context.Context, w WalletRow) error {
	if w.TenantID == "" {
		return ErrTenantIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO wallets (tenant_id, balance, locked_margin, initial_balance,
		                     total_pnl, total_trades, winning_trades, losing_trades, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id) DO UPDATE SET
			balance = excluded.balance,
			locked_margin = excluded.locked_margin,
			total_pnl = excluded.total_pnl,
			total_trades = excluded.total_trades,
			winning_trades = excluded.winning_trades,
			losing_trades = excluded.losing_trades,
			updated_at = CURRENT_TIMESTAMP
	`, w.TenantID, w.Balance, w.LockedMargin, w.InitialBalance,
		w.TotalPnL, w.TotalTrades, w.WinningTrades, w.LosingTrades)

	return err
}

// GetWallet loads a tenant's wallet.
func (q *TenantQueries) GetWallet(ctx context.Context, tenantID string) (*WalletRow, error) {
	if tenantID == "" {
		return nil, ErrTenantIDRequired
	}

	var w WalletRow
	err := q.db.QueryRowContext(ctx, `
		SELECT tenant_id, balance, locked_margin, initial_balance,
		       total_pnl, total_trades, winning_trades, losing_trades, updated_at
		FROM wallets
		WHERE tenant_id = ?
	`, tenantID).Scan(&w.TenantID, &w.Balance, &w.LockedMargin, &w.InitialBalance,
		&w.TotalPnL, &w.TotalTrades, &w.WinningTrades, &w.LosingTrades, &w.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query wallet: %w", err)
	}
	return &w, nil
}

// ----------------------------------------
// Position Queries
// ----------------------------------------

// GetPositionsByTenant returns all open positions for a tenant.
func (q *TenantQueries) GetPositionsByTenant(ctx context.Context, tenantID string) ([]PositionRow, error) {
	if tenantID == "" {
		return nil, ErrTenantIDRequired
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, tenant_id, pair, side, entry_price, current_price, size,
		       leverage, margin, take_profit, stop_loss, unrealized_pnl, status,
		       opened_at, updated_at
		FROM positions
		WHERE tenant_id = ? AND status = 'open'
		ORDER BY opened_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []PositionRow
	for rows.Next() {
		var p PositionRow
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Pair, &p.Side, &p.EntryPrice,
			&p.CurrentPrice, &p.Size, &p.Leverage, &p.Margin, &p.TakeProfit,
			&p.StopLoss, &p.UnrealizedPnL, &p.Status, &p.OpenedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpsertPosition creates or refreshes an open position row.
func (q *TenantQueries) UpsertPosition(ctx context.Context, p PositionRow) error {
	if p.TenantID == "" {
		return ErrTenantIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO positions (id, tenant_id, pair, side, entry_price, current_price,
		                       size, leverage, margin, take_profit, stop_loss,
		                       unrealized_pnl, status, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'open', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id, pair) DO UPDATE SET
			current_price = excluded.current_price,
			take_profit = excluded.take_profit,
			stop_loss = excluded.stop_loss,
			unrealized_pnl = excluded.unrealized_pnl,
			updated_at = CURRENT_TIMESTAMP
	`, p.ID, p.TenantID, p.Pair, p.Side, p.EntryPrice, p.CurrentPrice,
		p.Size, p.Leverage, p.Margin, p.TakeProfit, p.StopLoss,
		p.UnrealizedPnL, p.OpenedAt)

	return err
}

// DeletePosition removes a closed position row.
func (q *TenantQueries) DeletePosition(ctx context.Context, tenantID, positionID string) error {
	if tenantID == "" {
		return ErrTenantIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		DELETE FROM positions WHERE tenant_id = ? AND id = ?
	`, tenantID, positionID)
	return err
}

// ----------------------------------------
// Trade Queries
// ----------------------------------------

// GetTradesByTenant returns the most recent trades for a tenant. A limit
// of zero or less returns the full history.
func (q *TenantQueries) GetTradesByTenant(ctx context.Context, tenantID string, limit int) ([]TradeRow, error) {
	if tenantID == "" {
		return nil, ErrTenantIDRequired
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, tenant_id, position_id, pair, side, entry_price, exit_price,
		       size, leverage, margin, pnl, pnl_percent, reason, opened_at, closed_at
		FROM trades
		WHERE tenant_id = ?
		ORDER BY closed_at DESC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(&t.ID, &t.TenantID, &t.PositionID, &t.Pair, &t.Side,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.Leverage, &t.Margin,
			&t.PnL, &t.PnLPercent, &t.Reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertTrade records a completed round trip.
func (q *TenantQueries) InsertTrade(ctx context.Context, t TradeRow) error {
	if t.TenantID == "" {
		return ErrTenantIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO trades (id, tenant_id, position_id, pair, side, entry_price,
		                    exit_price, size, leverage, margin, pnl, pnl_percent,
		                    reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, t.ID, t.TenantID, t.PositionID, t.Pair, t.Side, t.EntryPrice,
		t.ExitPrice, t.Size, t.Leverage, t.Margin, t.PnL, t.PnLPercent,
		t.Reason, t.OpenedAt)

	return err
}

// ----------------------------------------
// Signal Queries
// ----------------------------------------

// InsertSignal appends a signal to the history.
func (q *TenantQueries) InsertSignal(ctx context.Context, s SignalRow) error {
	if s.TenantID == "" {
		return ErrTenantIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO signals (tenant_id, pair, strategy, action, strength,
		                     confidence, price, reasons, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, s.TenantID, s.Pair, s.Strategy, s.Action, s.Strength,
		s.Confidence, s.Price, s.Reasons)

	return err
}

// GetSignalsByTenant returns recent signals, optionally filtered by pair.
func (q *TenantQueries) GetSignalsByTenant(ctx context.Context, tenantID, pair string, limit int) ([]SignalRow, error) {
	if tenantID == "" {
		return nil, ErrTenantIDRequired
	}

	query := `
		SELECT id, tenant_id, pair, strategy, action, strength, confidence,
		       price, COALESCE(reasons, ''), created_at
		FROM signals
		WHERE tenant_id = ?`
	args := []any{tenantID}
	if pair != "" {
		query += " AND pair = ?"
		args = append(args, pair)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []SignalRow
	for rows.Next() {
		var s SignalRow
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Pair, &s.Strategy, &s.Action,
			&s.Strength, &s.Confidence, &s.Price, &s.Reasons, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// ----------------------------------------
// Strategy Config Queries
// ----------------------------------------

// GetStrategyConfigs returns every tenant's active strategy selection.
func (q *TenantQueries) GetStrategyConfigs(ctx context.Context) ([]StrategyConfigRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tenant_id, strategy_id, COALESCE(params, ''), updated_at
		FROM strategy_configs
		ORDER BY tenant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query strategy configs: %w", err)
	}
	defer rows.Close()

	var configs []StrategyConfigRow
	for rows.Next() {
		var c StrategyConfigRow
		if err := rows.Scan(&c.TenantID, &c.StrategyID, &c.Params, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// UpsertStrategyConfig saves a tenant's active strategy selection.
func (q *TenantQueries) UpsertStrategyConfig(ctx context.Context, s StrategyConfigRow) error {
	if s.TenantID == "" {
		return ErrTenantIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO strategy_configs (tenant_id, strategy_id, params, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id) DO UPDATE SET
			strategy_id = excluded.strategy_id,
			params = excluded.params,
			updated_at = CURRENT_TIMESTAMP
	`, s.TenantID, s.StrategyID, s.Params)

	return err
}

// GetStrategyConfig returns one tenant's selection.
func (q *TenantQueries) GetStrategyConfig(ctx context.Context, tenantID string) (*StrategyConfigRow, error) {
	if tenantID == "" {
		return nil, ErrTenantIDRequired
	}

	var c StrategyConfigRow
	err := q.db.QueryRowContext(ctx, `
		SELECT tenant_id, strategy_id, COALESCE(params, ''), updated_at
		FROM strategy_configs
		WHERE tenant_id = ?
	`, tenantID).Scan(&c.TenantID, &c.StrategyID, &c.Params, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query strategy config: %w", err)
	}
	return &c, nil
}

// Tenants lists every tenant id that has state in any table.
func (q *TenantQueries) Tenants(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tenant_id FROM wallets
		UNION
		SELECT tenant_id FROM strategy_configs
		ORDER BY tenant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// JoinReasons flattens signal reasons for storage.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}
