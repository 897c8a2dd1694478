package depth

import (
	"context"
	"fmt"
	"time"

	"futures-core/internal/market"
)

// SyntheticSource fabricates an order book around the live price of a
// PriceSource, for dry-run mode where no venue book is available. Levels
// are spaced 0.05% apart with liquidity tapering away from the touch.
type SyntheticSource struct {
	Prices market.PriceSource
}

// FetchOrderBook builds a symmetric book centered on the latest price.
func (s SyntheticSource) FetchOrderBook(ctx context.Context, pair string, levels int) (Book, error) {
	price := s.Prices.LatestPrice(ctx, pair)
	if price <= 0 {
		return Book{}, fmt.Errorf("no price available for %s", pair)
	}
	if levels <= 0 {
		levels = DefaultLevels
	}

	const tick = 0.0005
	book := Book{
		Pair:      pair,
		Timestamp: time.Now().UnixMilli(),
		Bids:      make([]Level, 0, levels),
		Asks:      make([]Level, 0, levels),
	}
	for i := 1; i <= levels; i++ {
		offset := price * tick * float64(i)
		qty := 10.0 / float64(i)
		book.Bids = append(book.Bids, Level{Price: price - offset, Quantity: qty})
		book.Asks = append(book.Asks, Level{Price: price + offset, Quantity: qty})
	}
	return book, nil
}
