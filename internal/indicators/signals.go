package indicators

// Direction classifies an indicator reading.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// RSIZone classifies an RSI reading against configured thresholds.
type RSIZone string

const (
	Overbought RSIZone = "overbought"
	Oversold   RSIZone = "oversold"
	RSINeutral RSIZone = "neutral"
)

// TrendDirection checks strict EMA stacking: bullish iff
// EMA_9 > EMA_15 > EMA_20 > EMA_50, bearish iff fully reversed.
// Ties or missing series yield Neutral.
func TrendDirection(s *Snapshot) Direction {
	e9, ok9 := s.Value("EMA_9")
	e15, ok15 := s.Value("EMA_15")
	e20, ok20 := s.Value("EMA_20")
	e50, ok50 := s.Value("EMA_50")
	if !ok9 || !ok15 || !ok20 || !ok50 {
		return Neutral
	}
	if e9 > e15 && e15 > e20 && e20 > e50 {
		return Bullish
	}
	if e9 < e15 && e15 < e20 && e20 < e50 {
		return Bearish
	}
	return Neutral
}

// MACDCross detects a signal-line crossover on the last two bars.
// Bullish when MACD moves from at-or-below the signal line to above it;
// bearish on the mirror. Stateless, two-sample lookback only.
func MACDCross(s *Snapshot) Direction {
	cur, okCur := s.Value("MACD")
	curSig, okCurSig := s.Value("MACD_signal")
	prev, okPrev := s.Prev("MACD")
	prevSig, okPrevSig := s.Prev("MACD_signal")
	if !okCur || !okCurSig || !okPrev || !okPrevSig {
		return Neutral
	}
	if prev <= prevSig && cur > curSig {
		return Bullish
	}
	if prev >= prevSig && cur < curSig {
		return Bearish
	}
	return Neutral
}

// ClassifyRSI maps the latest RSI value onto threshold zones.
func ClassifyRSI(s *Snapshot, overbought, oversold float64) RSIZone {
	rsi, ok := s.Value("RSI")
	if !ok {
		return RSINeutral
	}
	if rsi >= overbought {
		return Overbought
	}
	if rsi <= oversold {
		return Oversold
	}
	return RSINeutral
}
