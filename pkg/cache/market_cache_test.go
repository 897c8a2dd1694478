package cache

import (
	"fmt"
	"testing"
	"time"

	"futures-core/internal/market"
)

func TestPriceRoundTrip(t *testing.T) {
	c := NewMarketCache()
	c.SetPrice("B-BTC_USDT", 50000)

	price, ok := c.Price("B-BTC_USDT", 0)
	if !ok || price != 50000 {
		t.Fatalf("price = %.2f ok=%v, want 50000 true", price, ok)
	}

	if _, ok := c.Price("B-ETH_USDT", 0); ok {
		t.Error("unexpected hit for missing pair")
	}
}

func TestPriceStalenessWindow(t *testing.T) {
	c := NewMarketCache()
	c.SetPrice("B-BTC_USDT", 50000)

	if _, ok := c.Price("B-BTC_USDT", time.Minute); !ok {
		t.Error("fresh price rejected")
	}
	if _, ok := c.Price("B-BTC_USDT", time.Nanosecond); ok {
		t.Error("stale price accepted")
	}
}

func TestCandlesKeyedByTimeframe(t *testing.T) {
	c := NewMarketCache()
	series := market.Series{{Close: 100}, {Close: 101}}
	c.SetCandles("B-BTC_USDT", market.Timeframe5m, series)

	got, ok := c.Candles("B-BTC_USDT", market.Timeframe5m, 0)
	if !ok || len(got) != 2 {
		t.Fatalf("candles = %v ok=%v, want 2 candles", got, ok)
	}
	if _, ok := c.Candles("B-BTC_USDT", market.Timeframe1h, 0); ok {
		t.Error("series leaked across timeframes")
	}
}

func TestCleanupRemovesOldEntries(t *testing.T) {
	c := NewMarketCache()
	for i := 0; i < 40; i++ {
		c.SetPrice(fmt.Sprintf("PAIR-%d", i), float64(i))
	}
	if c.Len() != 40 {
		t.Fatalf("len = %d, want 40", c.Len())
	}

	time.Sleep(5 * time.Millisecond)
	removed := c.Cleanup(time.Millisecond)
	if removed != 40 || c.Len() != 0 {
		t.Errorf("removed %d, len %d; want 40 removed, 0 left", removed, c.Len())
	}
}

func TestAllPrices(t *testing.T) {
	c := NewMarketCache()
	c.SetPrice("B-BTC_USDT", 50000)
	c.SetPrice("B-ETH_USDT", 3000)

	all := c.AllPrices()
	if len(all) != 2 || all["B-ETH_USDT"] != 3000 {
		t.Errorf("all = %v", all)
	}
}
