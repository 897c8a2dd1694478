// Package depth analyzes order book liquidity: spread, bid/ask
// imbalance, depth within price bands and large resting orders. The
// output is advisory only and never drives entries on its own.
package depth

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// Level is one order book price level.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Book is an order book snapshot. Bids and Asks need not be sorted.
type Book struct {
	Pair      string  `json:"pair"`
	Timestamp int64   `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
}

// Source fetches an order book snapshot for a pair.
type Source interface {
	FetchOrderBook(ctx context.Context, pair string, levels int) (Book, error)
}

// Wall is a resting order much larger than the book average.
type Wall struct {
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	Strength string  `json:"strength"`
}

// Analysis is the full liquidity report for one snapshot.
type Analysis struct {
	Pair            string  `json:"pair"`
	Timestamp       int64   `json:"timestamp"`
	MidPrice        float64 `json:"mid_price"`
	BestBid         float64 `json:"best_bid"`
	BestAsk         float64 `json:"best_ask"`
	Spread          float64 `json:"spread"`
	SpreadPercent   float64 `json:"spread_pct"`
	SpreadStatus    string  `json:"spread_status"`
	BidVolume       float64 `json:"bid_volume"`
	AskVolume       float64 `json:"ask_volume"`
	ImbalanceRatio  float64 `json:"imbalance_ratio"`
	ImbalanceStatus string  `json:"imbalance_status"`
	Depth2Pct       float64 `json:"depth_2pct"`
	Depth5Pct       float64 `json:"depth_5pct"`
	LiquidityStatus string  `json:"liquidity_status"`
	LargeBidWall    *Wall   `json:"large_bid_wall,omitempty"`
	LargeAskWall    *Wall   `json:"large_ask_wall,omitempty"`
	WallSignal      string  `json:"market_maker_signal"`
}

const (
	imbalanceBandPct = 2.0
	bullishRatio     = 0.60
	bearishRatio     = 0.40

	wallMultiple = 3.0

	highLiquidityUSD   = 500_000.0
	mediumLiquidityUSD = 100_000.0
)

// DefaultLevels is the order book depth requested from the exchange.
const DefaultLevels = 50

// Analyzer fetches and scores order books.
type Analyzer struct {
	source Source
	levels int
}

func NewAnalyzer(source Source, levels int) *Analyzer {
	if levels <= 0 {
		levels = DefaultLevels
	}
	return &Analyzer{source: source, levels: levels}
}

// Analyze fetches the current book for a pair and scores it. Fetch
// failures and empty books return a neutral report, never an error; the
// caller treats liquidity data as best-effort.
func (a *Analyzer) Analyze(ctx context.Context, pair string) Analysis {
	book, err := a.source.FetchOrderBook(ctx, pair, a.levels)
	if err != nil {
		log.Printf("⚠️ order book fetch failed for %s: %v", pair, err)
		return emptyAnalysis(pair)
	}
	return AnalyzeBook(book)
}

// AnalyzeBook scores a snapshot without fetching.
func AnalyzeBook(book Book) Analysis {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return emptyAnalysis(book.Pair)
	}

	bids := sortedCopy(book.Bids)
	asks := sortedCopy(book.Asks)

	bestBid := bids[len(bids)-1].Price
	bestAsk := asks[0].Price
	mid := (bestBid + bestAsk) / 2
	if mid == 0 {
		return emptyAnalysis(book.Pair)
	}

	spread := bestAsk - bestBid
	spreadPct := spread / mid * 100

	bidVol := volumeAbove(bids, mid*(1-imbalanceBandPct/100))
	askVol := volumeBelow(asks, mid*(1+imbalanceBandPct/100))

	ratio := 0.5
	if total := bidVol + askVol; total > 0 {
		ratio = bidVol / total
	}

	depth2 := volumeAbove(bids, mid*0.98) + volumeBelow(asks, mid*1.02)
	depth5 := volumeAbove(bids, mid*0.95) + volumeBelow(asks, mid*1.05)

	largeBid, largeAsk := detectWalls(bids, asks)

	return Analysis{
		Pair:            book.Pair,
		Timestamp:       book.Timestamp,
		MidPrice:        mid,
		BestBid:         bestBid,
		BestAsk:         bestAsk,
		Spread:          spread,
		SpreadPercent:   spreadPct,
		SpreadStatus:    classifySpread(spreadPct),
		BidVolume:       bidVol,
		AskVolume:       askVol,
		ImbalanceRatio:  ratio,
		ImbalanceStatus: classifyImbalance(ratio),
		Depth2Pct:       depth2,
		Depth5Pct:       depth5,
		LiquidityStatus: classifyLiquidity(depth2 * mid),
		LargeBidWall:    largeBid,
		LargeAskWall:    largeAsk,
		WallSignal:      wallSignal(largeBid, largeAsk),
	}
}

func sortedCopy(levels []Level) []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func volumeAbove(levels []Level, floor float64) float64 {
	total := 0.0
	for _, lv := range levels {
		if lv.Price >= floor {
			total += lv.Quantity
		}
	}
	return total
}

func volumeBelow(levels []Level, ceil float64) float64 {
	total := 0.0
	for _, lv := range levels {
		if lv.Price <= ceil {
			total += lv.Quantity
		}
	}
	return total
}

// detectWalls flags the largest bid and ask when they exceed three times
// the average level size across the whole book.
func detectWalls(bids, asks []Level) (*Wall, *Wall) {
	var total float64
	n := len(bids) + len(asks)
	for _, lv := range bids {
		total += lv.Quantity
	}
	for _, lv := range asks {
		total += lv.Quantity
	}
	if n == 0 {
		return nil, nil
	}
	threshold := total / float64(n) * wallMultiple

	return wallIfLarge(largest(bids), threshold), wallIfLarge(largest(asks), threshold)
}

func largest(levels []Level) Level {
	var best Level
	for _, lv := range levels {
		if lv.Quantity > best.Quantity {
			best = lv
		}
	}
	return best
}

func wallIfLarge(lv Level, threshold float64) *Wall {
	if lv.Quantity <= threshold {
		return nil
	}
	strength := "medium"
	if lv.Quantity > threshold*2 {
		strength = "strong"
	}
	return &Wall{Price: lv.Price, Size: lv.Quantity, Strength: strength}
}

func wallSignal(bid, ask *Wall) string {
	switch {
	case bid != nil && ask != nil:
		return "range_bound"
	case bid != nil:
		return "bullish"
	case ask != nil:
		return "bearish"
	default:
		return "neutral"
	}
}

func classifySpread(pct float64) string {
	switch {
	case pct < 0.05:
		return "tight"
	case pct < 0.2:
		return "normal"
	default:
		return "wide"
	}
}

func classifyImbalance(ratio float64) string {
	switch {
	case ratio > bullishRatio:
		return "bullish"
	case ratio < bearishRatio:
		return "bearish"
	default:
		return "neutral"
	}
}

func classifyLiquidity(usd float64) string {
	switch {
	case usd > highLiquidityUSD:
		return "high"
	case usd > mediumLiquidityUSD:
		return "medium"
	default:
		return "low"
	}
}

func emptyAnalysis(pair string) Analysis {
	return Analysis{
		Pair:            pair,
		ImbalanceRatio:  0.5,
		SpreadStatus:    "unknown",
		ImbalanceStatus: "neutral",
		LiquidityStatus: "unknown",
		WallSignal:      "neutral",
	}
}

// String gives a one-line summary for logs.
func (a Analysis) String() string {
	return fmt.Sprintf("%s mid=%.2f spread=%.4f%% (%s) imbalance=%.2f (%s) liquidity=%s",
		a.Pair, a.MidPrice, a.SpreadPercent, a.SpreadStatus,
		a.ImbalanceRatio, a.ImbalanceStatus, a.LiquidityStatus)
}
