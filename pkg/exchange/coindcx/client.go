// Package coindcx wraps the CoinDCX futures REST API: public market data
// (candles, ticker, order book) and the authenticated order endpoints.
package coindcx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"futures-core/internal/depth"
	"futures-core/internal/market"
	"futures-core/pkg/cache"
)

// DefaultBaseURL serves the public market data endpoints.
const DefaultBaseURL = "https://public.coindcx.com"

// candleCacheTTL matches the scan interval so one cycle reuses fetches.
const candleCacheTTL = 60 * time.Second

// Client wraps REST access to CoinDCX futures.
type Client struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	HTTPClient *http.Client

	limiter *rate.Limiter
	cache   *cache.MarketCache
}

// NewClient builds a rate-limited REST client. CoinDCX allows roughly
// ten public requests per second per IP.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(8), 10),
		cache:      cache.NewMarketCache(),
	}
}

// FetchCandles fetches an ascending OHLCV series. Failures return an
// empty series; the signal path treats that as "no data".
func (c *Client) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) market.Series {
	if series, ok := c.cache.Candles(symbol, tf, candleCacheTTL); ok {
		return series
	}

	params := url.Values{}
	params.Set("pair", symbol)
	params.Set("interval", string(tf))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var raw []map[string]any
	if err := c.get(ctx, "/market_data/candles?"+params.Encode(), &raw); err != nil {
		log.Printf("⚠️ candle fetch failed for %s %s: %v", symbol, tf, err)
		return nil
	}

	series := make(market.Series, 0, len(raw))
	for _, item := range raw {
		series = append(series, market.Candle{
			Open:      toFloat(item["open"]),
			High:      toFloat(item["high"]),
			Low:       toFloat(item["low"]),
			Close:     toFloat(item["close"]),
			Volume:    toFloat(item["volume"]),
			Timestamp: time.UnixMilli(toInt64(item["time"])),
		})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	c.cache.SetCandles(symbol, tf, series)
	return series
}

// LatestPrice returns the last traded price, or 0 when unavailable.
func (c *Client) LatestPrice(ctx context.Context, symbol string) float64 {
	var resp struct {
		LastPrice any `json:"last_price"`
	}
	if err := c.get(ctx, "/market_data/ticker?pair="+url.QueryEscape(symbol), &resp); err != nil {
		log.Printf("⚠️ ticker fetch failed for %s: %v", symbol, err)
		if price, ok := c.cache.Price(symbol, candleCacheTTL); ok {
			return price
		}
		return 0
	}

	price := toFloat(resp.LastPrice)
	if price > 0 {
		c.cache.SetPrice(symbol, price)
	}
	return price
}

// FetchOrderBook returns the current book. CoinDCX serves levels as
// price->quantity string maps.
func (c *Client) FetchOrderBook(ctx context.Context, pair string, levels int) (depth.Book, error) {
	params := url.Values{}
	params.Set("pair", pair)
	if levels > 0 {
		params.Set("depth", strconv.Itoa(levels))
	}

	var resp struct {
		Timestamp int64             `json:"ts"`
		Bids      map[string]string `json:"bids"`
		Asks      map[string]string `json:"asks"`
	}
	if err := c.get(ctx, "/market_data/orderbook?"+params.Encode(), &resp); err != nil {
		return depth.Book{}, fmt.Errorf("fetch orderbook %s: %w", pair, err)
	}

	return depth.Book{
		Pair:      pair,
		Timestamp: resp.Timestamp,
		Bids:      parseLevels(resp.Bids),
		Asks:      parseLevels(resp.Asks),
	}, nil
}

// OpenOrder submits a market order and reports the average fill price.
func (c *Client) OpenOrder(ctx context.Context, symbol, side string, size float64) (market.OrderResult, error) {
	body := map[string]any{
		"pair":          symbol,
		"side":          side,
		"order_type":    "market_order",
		"size":          size,
		"time_in_force": "GTC",
	}

	var resp struct {
		ID           string `json:"id"`
		AveragePrice any    `json:"average_price"`
	}
	if err := c.post(ctx, "/futures/create_order", body, &resp); err != nil {
		return market.OrderResult{}, fmt.Errorf("create order %s %s: %w", symbol, side, err)
	}
	return market.OrderResult{OrderID: resp.ID, EntryPrice: toFloat(resp.AveragePrice)}, nil
}

// ClosePosition exits an entire position at market.
func (c *Client) ClosePosition(ctx context.Context, positionID string) error {
	body := map[string]any{"position_id": positionID}
	if err := c.post(ctx, "/futures/exit_position", body, nil); err != nil {
		return fmt.Errorf("exit position %s: %w", positionID, err)
	}
	return nil
}

// Balance reads the futures wallet.
func (c *Client) Balance(ctx context.Context) (market.BrokerBalance, error) {
	var resp struct {
		Balance       any `json:"balance"`
		LockedBalance any `json:"locked_balance"`
	}
	if err := c.post(ctx, "/futures/get_balance", map[string]any{}, &resp); err != nil {
		return market.BrokerBalance{}, fmt.Errorf("get balance: %w", err)
	}

	available := toFloat(resp.Balance)
	locked := toFloat(resp.LockedBalance)
	return market.BrokerBalance{
		Total:     available + locked,
		Available: available,
		Locked:    locked,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("coindcx status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body["timestamp"] = time.Now().UnixMilli()
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AUTH-APIKEY", c.APIKey)
	req.Header.Set("X-AUTH-SIGNATURE", c.sign(payload))

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("coindcx status %d", res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// sign computes the HMAC-SHA256 hex digest over the JSON payload.
func (c *Client) sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseLevels(levels map[string]string) []depth.Level {
	out := make([]depth.Level, 0, len(levels))
	for priceStr, qtyStr := range levels {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(qtyStr, 64)
		if err != nil {
			continue
		}
		out = append(out, depth.Level{Price: price, Quantity: qty})
	}
	return out
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(t, 10, 64)
		return i
	default:
		return 0
	}
}
