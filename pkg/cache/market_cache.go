// Package cache holds short-lived market data so repeated scans within
// one cycle do not hit the exchange REST API again.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"futures-core/internal/market"
)

const numShards = 16

// MarketCache is a sharded cache for latest prices and candle series.
// Keys are pair symbols; candle series are keyed by pair and timeframe.
type MarketCache struct {
	shards [numShards]*shard
}

type shard struct {
	mu      sync.RWMutex
	prices  map[string]priceEntry
	candles map[string]candleEntry
}

type priceEntry struct {
	price     float64
	updatedAt time.Time
}

type candleEntry struct {
	series    market.Series
	updatedAt time.Time
}

func NewMarketCache() *MarketCache {
	c := &MarketCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard{
			prices:  make(map[string]priceEntry),
			candles: make(map[string]candleEntry),
		}
	}
	return c
}

func (c *MarketCache) getShard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

func candleKey(pair string, tf market.Timeframe) string {
	return pair + "|" + string(tf)
}

// SetPrice stores the latest price for a pair.
func (c *MarketCache) SetPrice(pair string, price float64) {
	s := c.getShard(pair)
	s.mu.Lock()
	s.prices[pair] = priceEntry{price: price, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Price retrieves a price no older than maxAge. Zero maxAge accepts any.
func (c *MarketCache) Price(pair string, maxAge time.Duration) (float64, bool) {
	s := c.getShard(pair)
	s.mu.RLock()
	entry, ok := s.prices[pair]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if maxAge > 0 && time.Since(entry.updatedAt) > maxAge {
		return 0, false
	}
	return entry.price, true
}

// SetCandles stores a candle series for a pair and timeframe.
func (c *MarketCache) SetCandles(pair string, tf market.Timeframe, series market.Series) {
	key := candleKey(pair, tf)
	s := c.getShard(key)
	s.mu.Lock()
	s.candles[key] = candleEntry{series: series, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Candles retrieves a series no older than maxAge. Zero maxAge accepts any.
func (c *MarketCache) Candles(pair string, tf market.Timeframe, maxAge time.Duration) (market.Series, bool) {
	key := candleKey(pair, tf)
	s := c.getShard(key)
	s.mu.RLock()
	entry, ok := s.candles[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if maxAge > 0 && time.Since(entry.updatedAt) > maxAge {
		return nil, false
	}
	return entry.series, true
}

// Len returns total cached entries across all shards.
func (c *MarketCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.prices) + len(s.candles)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries older than maxAge and reports how many.
func (c *MarketCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, s := range c.shards {
		s.mu.Lock()
		for key, entry := range s.prices {
			if entry.updatedAt.Before(cutoff) {
				delete(s.prices, key)
				removed++
			}
		}
		for key, entry := range s.candles {
			if entry.updatedAt.Before(cutoff) {
				delete(s.candles, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// AllPrices returns every cached price (for the status endpoint).
func (c *MarketCache) AllPrices() map[string]float64 {
	result := make(map[string]float64)
	for _, s := range c.shards {
		s.mu.RLock()
		for pair, entry := range s.prices {
			result[pair] = entry.price
		}
		s.mu.RUnlock()
	}
	return result
}
