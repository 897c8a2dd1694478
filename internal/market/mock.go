package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockFeed generates synthetic candles and prices for local development and
// dry-run mode. Each symbol follows an independent random walk seeded from
// the symbol name, so repeated fetches within a process stay coherent.
type MockFeed struct {
	mu         sync.Mutex
	StartPrice float64
	Step       float64
	last       map[string]float64
	rng        *rand.Rand
}

func NewMockFeed(startPrice, step float64) *MockFeed {
	if startPrice <= 0 {
		startPrice = 100.0
	}
	if step <= 0 {
		step = 0.5
	}
	return &MockFeed{
		StartPrice: startPrice,
		Step:       step,
		last:       make(map[string]float64),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchCandles synthesizes an ascending series ending near the symbol's
// current walk price.
func (m *MockFeed) FetchCandles(_ context.Context, symbol string, tf Timeframe, limit int) Series {
	if limit <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	price := m.price(symbol)
	interval := timeframeDuration(tf)
	now := time.Now().Truncate(interval)

	series := make(Series, limit)
	// Walk backwards from the current price so the last close matches.
	p := price
	for i := limit - 1; i >= 0; i-- {
		open := p + (m.rng.Float64()*2-1)*m.Step
		high := math.Max(open, p) + m.rng.Float64()*m.Step
		low := math.Min(open, p) - m.rng.Float64()*m.Step
		series[i] = Candle{
			Open:      open,
			High:      high,
			Low:       low,
			Close:     p,
			Volume:    100 + m.rng.Float64()*900,
			Timestamp: now.Add(-time.Duration(limit-1-i) * interval),
		}
		p = open
	}
	return series
}

// LatestPrice advances the random walk by one step and returns it.
func (m *MockFeed) LatestPrice(_ context.Context, symbol string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.price(symbol) + (m.rng.Float64()*2-1)*m.Step
	if p <= 0 {
		p = m.StartPrice
	}
	m.last[symbol] = p
	return p
}

// OpenOrder fills instantly at the current walk price.
func (m *MockFeed) OpenOrder(ctx context.Context, symbol, side string, size float64) (OrderResult, error) {
	price := m.LatestPrice(ctx, symbol)
	return OrderResult{OrderID: uuid.NewString(), EntryPrice: price}, nil
}

// ClosePosition always acknowledges; the simulated ledger owns the accounting.
func (m *MockFeed) ClosePosition(context.Context, string) error { return nil }

// Balance is unused in dry-run mode (the ledger is authoritative); report zero.
func (m *MockFeed) Balance(context.Context) (BrokerBalance, error) {
	return BrokerBalance{}, nil
}

func (m *MockFeed) price(symbol string) float64 {
	if p, ok := m.last[symbol]; ok {
		return p
	}
	m.last[symbol] = m.StartPrice
	return m.StartPrice
}

func timeframeDuration(tf Timeframe) time.Duration {
	switch tf {
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	default:
		return time.Minute
	}
}
