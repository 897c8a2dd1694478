package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PaperBroker simulates order execution against live prices. Fills are
// instant at the latest traded price; the ledger owns all accounting.
type PaperBroker struct {
	prices PriceSource
}

func NewPaperBroker(prices PriceSource) *PaperBroker {
	return &PaperBroker{prices: prices}
}

// OpenOrder fills at the current market price. An unavailable price
// fails the order so no phantom position is recorded.
func (b *PaperBroker) OpenOrder(ctx context.Context, symbol, side string, size float64) (OrderResult, error) {
	price := b.prices.LatestPrice(ctx, symbol)
	if price <= 0 {
		return OrderResult{}, fmt.Errorf("no price available for %s", symbol)
	}
	return OrderResult{OrderID: uuid.NewString(), EntryPrice: price}, nil
}

// ClosePosition always acknowledges; simulated exits cannot fail.
func (b *PaperBroker) ClosePosition(context.Context, string) error { return nil }

// Balance reports zero; the per-tenant ledger is authoritative.
func (b *PaperBroker) Balance(context.Context) (BrokerBalance, error) {
	return BrokerBalance{}, nil
}
