package indicators

import (
	"math"
	"testing"
	"time"

	"futures-core/internal/market"
)

func constantSeries(price float64, n int) market.Series {
	s := make(market.Series, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range s {
		s[i] = market.Candle{
			Open: price, High: price, Low: price, Close: price,
			Volume: 1, Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return s
}

func trendingSeries(start, step float64, n int) market.Series {
	s := make(market.Series, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := start
	for i := range s {
		s[i] = market.Candle{
			Open: p, High: p + math.Abs(step), Low: p - math.Abs(step), Close: p + step,
			Volume: 1, Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		p += step
	}
	return s
}

func TestEMAConstantSeriesConvergesToConstant(t *testing.T) {
	closes := constantSeries(42.5, 100).Closes()
	ema, err := EMA(closes, 9)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}
	if got := ema[len(ema)-1]; math.Abs(got-42.5) > 1e-9 {
		t.Fatalf("EMA of constant series = %v, expected 42.5", got)
	}
}

func TestEMAInsufficientData(t *testing.T) {
	if _, err := EMA(nil, 9); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := EMA([]float64{1, 2, 3}, 0); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData for period 0, got %v", err)
	}
}

func TestRSIBounds(t *testing.T) {
	tests := []struct {
		name   string
		series market.Series
	}{
		{"uptrend", trendingSeries(100, 1.5, 60)},
		{"downtrend", trendingSeries(200, -1.5, 60)},
		{"choppy", func() market.Series {
			s := trendingSeries(100, 1, 60)
			for i := range s {
				if i%2 == 0 {
					s[i].Close -= 3
				}
			}
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, err := RSI(tt.series.Closes(), 14)
			if err != nil {
				t.Fatalf("RSI returned error: %v", err)
			}
			for i, v := range rsi {
				if math.IsNaN(v) {
					if i >= 14 {
						t.Fatalf("RSI[%d] is NaN past warm-up", i)
					}
					continue
				}
				if v < 0 || v > 100 {
					t.Fatalf("RSI[%d] = %v, out of [0,100]", i, v)
				}
			}
		})
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	rsi, err := RSI(trendingSeries(100, 1, 30).Closes(), 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}
	if got := rsi[len(rsi)-1]; got != 100 {
		t.Fatalf("RSI with zero losses = %v, expected 100", got)
	}
}

func TestATRConstantSeries(t *testing.T) {
	// Constant prices with identical high/low produce zero true range.
	atr, err := ATR(constantSeries(50, 40), 14)
	if err != nil {
		t.Fatalf("ATR returned error: %v", err)
	}
	if got := atr[len(atr)-1]; got != 0 {
		t.Fatalf("ATR of flat series = %v, expected 0", got)
	}
}

func TestMACDOnConstantSeriesIsZero(t *testing.T) {
	res, err := MACD(constantSeries(10, 60).Closes(), 12, 26, 9)
	if err != nil {
		t.Fatalf("MACD returned error: %v", err)
	}
	last := len(res.Line) - 1
	if res.Line[last] != 0 || res.Signal[last] != 0 || res.Hist[last] != 0 {
		t.Fatalf("MACD of constant series = (%v, %v, %v), expected zeros",
			res.Line[last], res.Signal[last], res.Hist[last])
	}
}

func TestTrendDirection(t *testing.T) {
	tests := []struct {
		name   string
		series market.Series
		want   Direction
	}{
		{"uptrend is bullish", trendingSeries(100, 1, 120), Bullish},
		{"downtrend is bearish", trendingSeries(300, -1, 120), Bearish},
		{"flat ties are neutral", constantSeries(100, 120), Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Compute(tt.series, DefaultConfig())
			if got := TrendDirection(snap); got != tt.want {
				t.Fatalf("TrendDirection = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestMACDCrossDetection(t *testing.T) {
	// A long downtrend followed by a sharp rally forces the MACD line back
	// up through its signal line.
	s := trendingSeries(200, -1, 80)
	p := s.LastClose()
	base := s[len(s)-1].Timestamp
	for i := 0; i < 15; i++ {
		p += 4
		s = append(s, market.Candle{
			Open: p - 4, High: p + 1, Low: p - 5, Close: p,
			Volume: 1, Timestamp: base.Add(time.Duration(i+1) * time.Hour),
		})
	}

	crossed := false
	for n := 81; n <= len(s); n++ {
		snap := Compute(s[:n], DefaultConfig())
		if MACDCross(snap) == Bullish {
			crossed = true
			break
		}
	}
	if !crossed {
		t.Fatal("expected a bullish MACD crossover during the rally")
	}
}

func TestSnapshotIncludesOscillators(t *testing.T) {
	snap := Compute(trendingSeries(100, 1, 60), DefaultConfig())

	mid, ok := snap.Value("BB_middle")
	if !ok {
		t.Fatal("BB_middle missing from snapshot")
	}
	upper, _ := snap.Value("BB_upper")
	lower, _ := snap.Value("BB_lower")
	if !(lower < mid && mid < upper) {
		t.Fatalf("band order wrong: lower=%v mid=%v upper=%v", lower, mid, upper)
	}

	k, ok := snap.Value("STOCH_K")
	if !ok {
		t.Fatal("STOCH_K missing from snapshot")
	}
	if k < 0 || k > 100 {
		t.Fatalf("STOCH_K = %v, out of [0,100]", k)
	}
	if _, ok := snap.Value("STOCH_D"); !ok {
		t.Fatal("STOCH_D missing from snapshot")
	}

	adx, ok := snap.Value("ADX")
	if !ok {
		t.Fatal("ADX missing from snapshot")
	}
	if adx < 0 || adx > 100 {
		t.Fatalf("ADX = %v, out of [0,100]", adx)
	}
}

func TestClassifyRSI(t *testing.T) {
	up := Compute(trendingSeries(100, 1, 60), DefaultConfig())
	if got := ClassifyRSI(up, 70, 30); got != Overbought {
		t.Fatalf("uptrend RSI zone = %v, expected overbought", got)
	}
	down := Compute(trendingSeries(300, -1, 60), DefaultConfig())
	if got := ClassifyRSI(down, 70, 30); got != Oversold {
		t.Fatalf("downtrend RSI zone = %v, expected oversold", got)
	}
}

func TestSupportResistanceFallbackLevels(t *testing.T) {
	// Flat series has no pivots; percentage-offset fallbacks must fill in.
	levels := SupportResistance(constantSeries(100, 60), 50, 3, 0.005)
	if len(levels.Support) != 3 || len(levels.Resistance) != 3 {
		t.Fatalf("levels = %d support / %d resistance, expected 3/3",
			len(levels.Support), len(levels.Resistance))
	}
	if levels.Resistance[0] != 102 || levels.Support[0] != 98 {
		t.Fatalf("fallback levels = %v / %v, expected 102 / 98",
			levels.Resistance[0], levels.Support[0])
	}
	for _, s := range levels.Support {
		if s >= levels.CurrentPrice {
			t.Fatalf("support %v not below price %v", s, levels.CurrentPrice)
		}
	}
	for _, r := range levels.Resistance {
		if r <= levels.CurrentPrice {
			t.Fatalf("resistance %v not above price %v", r, levels.CurrentPrice)
		}
	}
}

func TestSupportResistancePivotDetection(t *testing.T) {
	// Build a series with a clear double top near 110 and a trough near 90.
	s := make(market.Series, 0, 60)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pattern := []float64{100, 104, 110, 104, 100, 95, 90, 95, 100, 104, 110, 104, 100}
	for i := 0; i < 60; i++ {
		p := pattern[i%len(pattern)]
		s = append(s, market.Candle{
			Open: p, High: p + 0.5, Low: p - 0.5, Close: p,
			Volume: 1, Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	levels := SupportResistance(s, 50, 3, 0.005)
	if len(levels.Resistance) == 0 {
		t.Fatal("expected detected resistance levels")
	}
	if r := levels.Resistance[0]; math.Abs(r-110.5) > 1.0 {
		t.Fatalf("nearest resistance = %v, expected about 110.5", r)
	}
	if sup := levels.Support[0]; math.Abs(sup-89.5) > 1.0 {
		t.Fatalf("nearest support = %v, expected about 89.5", sup)
	}
}

func TestBollingerFlatSeries(t *testing.T) {
	res, err := Bollinger(constantSeries(100, 40).Closes(), 20, 2)
	if err != nil {
		t.Fatalf("Bollinger returned error: %v", err)
	}
	last := len(res.Middle) - 1
	if res.Middle[last] != 100 || res.Upper[last] != 100 || res.Lower[last] != 100 {
		t.Fatalf("flat Bollinger = (%v, %v, %v), expected all 100",
			res.Middle[last], res.Upper[last], res.Lower[last])
	}
}

func TestStochasticBounds(t *testing.T) {
	k, d, err := Stochastic(trendingSeries(100, 1, 40), 14, 3)
	if err != nil {
		t.Fatalf("Stochastic returned error: %v", err)
	}
	for i := range k {
		if math.IsNaN(k[i]) {
			continue
		}
		if k[i] < 0 || k[i] > 100 {
			t.Fatalf("%%K[%d] = %v, out of [0,100]", i, k[i])
		}
	}
	if last, ok := Last(d); !ok || last < 0 || last > 100 {
		t.Fatalf("%%D last = %v (ok=%v), out of [0,100]", last, ok)
	}
}

func TestADXComputes(t *testing.T) {
	adx, err := ADX(trendingSeries(100, 1, 60), 14)
	if err != nil {
		t.Fatalf("ADX returned error: %v", err)
	}
	last, ok := Last(adx)
	if !ok {
		t.Fatal("ADX last value undefined")
	}
	if last < 0 || last > 100 {
		t.Fatalf("ADX = %v, out of [0,100]", last)
	}
}
