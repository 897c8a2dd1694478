package market

import "context"

// CandleSource fetches historical candles for a symbol/timeframe.
// Implementations return an empty series on failure, never a partial one.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, tf Timeframe, limit int) Series
}

// PriceSource reports the latest traded price. A zero return means the
// price is currently unavailable and dependent actions must be skipped.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) float64
}

// OrderResult is the acknowledgement for a filled market order.
type OrderResult struct {
	OrderID    string
	EntryPrice float64
}

// Broker executes orders and reports account balance. Errors from OpenOrder
// mean no position exists on the venue; callers must not mutate any ledger
// state in that case.
type Broker interface {
	OpenOrder(ctx context.Context, symbol, side string, size float64) (OrderResult, error)
	ClosePosition(ctx context.Context, positionID string) error
	Balance(ctx context.Context) (BrokerBalance, error)
}

// BrokerBalance mirrors the venue's futures wallet view.
type BrokerBalance struct {
	Total     float64
	Available float64
	Locked    float64
}
