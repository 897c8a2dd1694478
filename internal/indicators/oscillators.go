package indicators

import (
	"math"

	"futures-core/internal/market"
)

// BollingerResult holds the middle band (SMA) and the upper/lower bands.
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes period-SMA bands at numStdDev standard deviations.
// The first period-1 entries are NaN.
func Bollinger(values []float64, period int, numStdDev float64) (BollingerResult, error) {
	if period <= 0 || len(values) < period {
		return BollingerResult{}, ErrInsufficientData
	}
	n := len(values)
	res := BollingerResult{
		Middle: make([]float64, n),
		Upper:  make([]float64, n),
		Lower:  make([]float64, n),
	}
	for i := 0; i < period-1; i++ {
		res.Middle[i] = math.NaN()
		res.Upper[i] = math.NaN()
		res.Lower[i] = math.NaN()
	}
	for i := period - 1; i < n; i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		variance := 0.0
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(period))
		res.Middle[i] = mean
		res.Upper[i] = mean + numStdDev*std
		res.Lower[i] = mean - numStdDev*std
	}
	return res, nil
}

// Stochastic computes %K over kPeriod and its dPeriod-SMA %D.
// Undefined leading entries are NaN. Values are in [0,100].
func Stochastic(series market.Series, kPeriod, dPeriod int) (k, d []float64, err error) {
	if kPeriod <= 0 || dPeriod <= 0 || len(series) < kPeriod+dPeriod-1 {
		return nil, nil, ErrInsufficientData
	}
	n := len(series)
	k = make([]float64, n)
	for i := 0; i < kPeriod-1; i++ {
		k[i] = math.NaN()
	}
	for i := kPeriod - 1; i < n; i++ {
		hi, lo := series[i].High, series[i].Low
		for j := i - kPeriod + 1; j <= i; j++ {
			hi = math.Max(hi, series[j].High)
			lo = math.Min(lo, series[j].Low)
		}
		if hi == lo {
			k[i] = 50
			continue
		}
		k[i] = (series[i].Close - lo) / (hi - lo) * 100
	}

	d = make([]float64, n)
	for i := 0; i < n; i++ {
		if i < kPeriod+dPeriod-2 {
			d[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(dPeriod)
	}
	return k, d, nil
}

// ADX computes the Average Directional Index with EMA smoothing of the
// directional movements and true range. Undefined leading entries are NaN.
func ADX(series market.Series, period int) ([]float64, error) {
	if period <= 0 || len(series) < period+1 {
		return nil, ErrInsufficientData
	}
	n := len(series)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	tr[0] = series[0].High - series[0].Low

	for i := 1; i < n; i++ {
		upMove := series[i].High - series[i-1].High
		downMove := series[i-1].Low - series[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		prevClose := series[i-1].Close
		tr[i] = math.Max(series[i].High-series[i].Low,
			math.Max(math.Abs(series[i].High-prevClose), math.Abs(series[i].Low-prevClose)))
	}

	smTR, _ := EMA(tr, period)
	smPlus, _ := EMA(plusDM, period)
	smMinus, _ := EMA(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if smTR[i] == 0 {
			dx[i] = 0
			continue
		}
		plusDI := smPlus[i] / smTR[i] * 100
		minusDI := smMinus[i] / smTR[i] * 100
		if plusDI+minusDI == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
	}

	adx, err := EMA(dx, period)
	if err != nil {
		return nil, err
	}
	for i := 0; i < period && i < n; i++ {
		adx[i] = math.NaN()
	}
	return adx, nil
}
