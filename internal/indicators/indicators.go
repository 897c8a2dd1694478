// Package indicators implements the pure technical-indicator math the
// signal pipeline runs on: EMA, MACD, RSI, ATR, Bollinger Bands, Stochastic,
// ADX, plus trend/crossover classification and support/resistance levels.
// All functions are stateless over an input candle series.
package indicators

import (
	"errors"
	"math"

	"futures-core/internal/market"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator needs. Callers treat it as a neutral reading, not a failure.
var ErrInsufficientData = errors.New("insufficient candle data")

// EMA computes the exponential moving average with smoothing 2/(period+1),
// seeded from the first value. Output is aligned index-for-index with input.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) == 0 {
		return nil, ErrInsufficientData
	}
	k := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out, nil
}

// MACDResult holds the MACD line, signal line, and histogram series.
type MACDResult struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

// MACD computes line = EMA(fast) - EMA(slow), signal = EMA(line, signalPeriod)
// and hist = line - signal.
func MACD(values []float64, fast, slow, signalPeriod int) (MACDResult, error) {
	emaFast, err := EMA(values, fast)
	if err != nil {
		return MACDResult{}, err
	}
	emaSlow, err := EMA(values, slow)
	if err != nil {
		return MACDResult{}, err
	}
	line := make([]float64, len(values))
	for i := range values {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signal, err := EMA(line, signalPeriod)
	if err != nil {
		return MACDResult{}, err
	}
	hist := make([]float64, len(values))
	for i := range values {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Hist: hist}, nil
}

// RSI computes the Relative Strength Index with Wilder's smoothing. The
// first `period` entries are NaN (undefined); defined values are in [0,100].
func RSI(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period+1 {
		return nil, ErrInsufficientData
	}

	out := make([]float64, len(values))
	for i := 0; i < period && i < len(out); i++ {
		out[i] = math.NaN()
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the Average True Range as an EMA of the true range.
// True range = max(high-low, |high-prevClose|, |low-prevClose|).
// The original mixed Wilder's and EMA smoothing; the EMA variant is used
// consistently here.
func ATR(series market.Series, period int) ([]float64, error) {
	if period <= 0 || len(series) == 0 {
		return nil, ErrInsufficientData
	}
	tr := make([]float64, len(series))
	tr[0] = series[0].High - series[0].Low
	for i := 1; i < len(series); i++ {
		c := series[i]
		prevClose := series[i-1].Close
		tr[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return EMA(tr, period)
}

// Last returns the final value of a series, NaN-safe: NaN maps to ok=false.
func Last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	v := values[len(values)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
