package db

import "time"

// WalletRow is a tenant's persisted margin account.
type WalletRow struct {
	TenantID       string
	Balance        float64
	LockedMargin   float64
	InitialBalance float64
	TotalPnL       float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	UpdatedAt      time.Time
}

// PositionRow is an open position as stored in the DB.
type PositionRow struct {
	ID            string
	TenantID      string
	Pair          string
	Side          string
	EntryPrice    float64
	CurrentPrice  float64
	Size          float64
	Leverage      float64
	Margin        float64
	TakeProfit    float64
	StopLoss      float64
	UnrealizedPnL float64
	Status        string
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// TradeRow is a completed round trip.
type TradeRow struct {
	ID         string
	TenantID   string
	PositionID string
	Pair       string
	Side       string
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Leverage   float64
	Margin     float64
	PnL        float64
	PnLPercent float64
	Reason     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// SignalRow is one emitted signal, kept for the dashboard history view.
type SignalRow struct {
	ID         int64
	TenantID   string
	Pair       string
	Strategy   string
	Action     string
	Strength   float64
	Confidence float64
	Price      float64
	Reasons    string
	CreatedAt  time.Time
}

// StrategyConfigRow is a tenant's active strategy selection.
type StrategyConfigRow struct {
	TenantID   string
	StrategyID string
	Params     string
	UpdatedAt  time.Time
}
