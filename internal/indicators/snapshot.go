package indicators

import (
	"fmt"

	"futures-core/internal/market"
)

// Config holds indicator parameters for one snapshot computation.
type Config struct {
	EMAPeriods      []int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	RSIPeriod       int
	ATRPeriod       int
	BollingerPeriod int
	BollingerStdDev float64
	StochasticK     int
	StochasticD     int
	ADXPeriod       int
}

// DefaultConfig mirrors the bot's standard parameter set.
func DefaultConfig() Config {
	return Config{
		EMAPeriods:      []int{9, 15, 20, 21, 50, 200},
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		RSIPeriod:       14,
		ATRPeriod:       14,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
		StochasticK:     14,
		StochasticD:     3,
		ADXPeriod:       14,
	}
}

// Snapshot is a set of derived series keyed by indicator name ("EMA_9",
// "MACD", "RSI", ...), each aligned index-for-index with its source candle
// series. A snapshot is rebuilt from scratch on every refresh and never
// mutated afterwards.
type Snapshot struct {
	Candles market.Series
	series  map[string][]float64
}

// Compute builds a fresh snapshot of every configured indicator.
// A series shorter than the largest period still yields a snapshot; the
// individual series that could not be computed are simply absent and read
// as neutral downstream.
func Compute(candles market.Series, cfg Config) *Snapshot {
	snap := &Snapshot{
		Candles: candles,
		series:  make(map[string][]float64),
	}
	closes := candles.Closes()

	for _, p := range cfg.EMAPeriods {
		if ema, err := EMA(closes, p); err == nil {
			snap.series[fmt.Sprintf("EMA_%d", p)] = ema
		}
	}
	if macd, err := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal); err == nil {
		snap.series["MACD"] = macd.Line
		snap.series["MACD_signal"] = macd.Signal
		snap.series["MACD_hist"] = macd.Hist
	}
	if rsi, err := RSI(closes, cfg.RSIPeriod); err == nil {
		snap.series["RSI"] = rsi
	}
	if atr, err := ATR(candles, cfg.ATRPeriod); err == nil {
		snap.series["ATR"] = atr
	}
	if bb, err := Bollinger(closes, cfg.BollingerPeriod, cfg.BollingerStdDev); err == nil {
		snap.series["BB_middle"] = bb.Middle
		snap.series["BB_upper"] = bb.Upper
		snap.series["BB_lower"] = bb.Lower
	}
	if k, d, err := Stochastic(candles, cfg.StochasticK, cfg.StochasticD); err == nil {
		snap.series["STOCH_K"] = k
		snap.series["STOCH_D"] = d
	}
	if adx, err := ADX(candles, cfg.ADXPeriod); err == nil {
		snap.series["ADX"] = adx
	}
	return snap
}

// Series returns the named indicator series, or nil if it was not computed.
func (s *Snapshot) Series(name string) []float64 {
	if s == nil {
		return nil
	}
	return s.series[name]
}

// Value returns the latest defined value of the named series.
func (s *Snapshot) Value(name string) (float64, bool) {
	return Last(s.Series(name))
}

// Prev returns the second-to-last value of the named series.
func (s *Snapshot) Prev(name string) (float64, bool) {
	ser := s.Series(name)
	if len(ser) < 2 {
		return 0, false
	}
	return Last(ser[:len(ser)-1])
}

// Len reports the underlying candle count.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// LastClose is the most recent close of the source series.
func (s *Snapshot) LastClose() float64 {
	if s == nil {
		return 0
	}
	return s.Candles.LastClose()
}
