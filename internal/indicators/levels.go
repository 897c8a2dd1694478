package indicators

import (
	"math"
	"sort"

	"futures-core/internal/market"
)

// Levels holds support and resistance price levels around the current price.
// Supports are sorted nearest-first below price, resistances nearest-first
// above it.
type Levels struct {
	Support      []float64
	Resistance   []float64
	CurrentPrice float64
}

// SupportResistance detects pivot highs/lows over the last `lookback`
// candles, clusters pivots within `tolerance` relative distance by
// averaging, and keeps the numLevels clusters closest to the current price
// on each side. When fewer clusters exist, synthetic levels at 2% offsets
// per slot fill the remainder so callers always get numLevels entries.
func SupportResistance(series market.Series, lookback, numLevels int, tolerance float64) Levels {
	if len(series) < lookback || lookback < 5 {
		return Levels{}
	}
	recent := series[len(series)-lookback:]
	currentPrice := series.LastClose()

	var resistancePts, supportPts []float64
	for i := 2; i < len(recent)-2; i++ {
		h := recent[i].High
		if h > recent[i-1].High && h > recent[i-2].High &&
			h > recent[i+1].High && h > recent[i+2].High {
			resistancePts = append(resistancePts, h)
		}
		l := recent[i].Low
		if l < recent[i-1].Low && l < recent[i-2].Low &&
			l < recent[i+1].Low && l < recent[i+2].Low {
			supportPts = append(supportPts, l)
		}
	}

	resistance := clusterLevels(resistancePts, tolerance)
	support := clusterLevels(supportPts, tolerance)

	// Keep levels on the proper side of price, nearest first.
	var above, below []float64
	for _, r := range resistance {
		if r > currentPrice {
			above = append(above, r)
		}
	}
	for _, s := range support {
		if s < currentPrice {
			below = append(below, s)
		}
	}
	sort.Float64s(above)
	sort.Sort(sort.Reverse(sort.Float64Slice(below)))
	if len(above) > numLevels {
		above = above[:numLevels]
	}
	if len(below) > numLevels {
		below = below[:numLevels]
	}

	// Percentage-offset fallbacks when detection found too few levels.
	for len(above) < numLevels {
		above = append(above, currentPrice*(1+0.02*float64(len(above)+1)))
	}
	for len(below) < numLevels {
		below = append(below, currentPrice*(1-0.02*float64(len(below)+1)))
	}

	return Levels{
		Support:      below,
		Resistance:   above,
		CurrentPrice: currentPrice,
	}
}

// clusterLevels merges levels within `tolerance` relative distance of the
// running cluster tail, replacing each cluster with its average.
func clusterLevels(levels []float64, tolerance float64) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	var clusters []float64
	cluster := []float64{sorted[0]}
	for _, level := range sorted[1:] {
		tail := cluster[len(cluster)-1]
		if math.Abs(level-tail)/tail < tolerance {
			cluster = append(cluster, level)
			continue
		}
		clusters = append(clusters, average(cluster))
		cluster = []float64{level}
	}
	clusters = append(clusters, average(cluster))
	return clusters
}

func average(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
