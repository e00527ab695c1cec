// Package indicator provides the price and volume indicators the entry
// filters read.
package indicator

import "math"

// EMA computes a standard exponential moving average over prices.
// The first value seeds the average; alpha = 2/(period+1).
func EMA(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = alpha*prices[i] + (1-alpha)*out[i-1]
	}
	return out
}

// LastEMA returns the final EMA value, or NaN when it cannot be computed.
func LastEMA(prices []float64, period int) float64 {
	ema := EMA(prices, period)
	if len(ema) == 0 {
		return math.NaN()
	}
	return ema[len(ema)-1]
}

// VolumeRatio is the last volume relative to the mean of the trailing
// lookback volumes (the last volume included). Returns 1 when the mean is
// zero or there is no data.
func VolumeRatio(volumes []float64, lookback int) float64 {
	if len(volumes) == 0 || lookback <= 0 {
		return 1.0
	}
	start := len(volumes) - lookback
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, v := range volumes[start:] {
		sum += v
	}
	mean := sum / float64(len(volumes)-start)
	if mean <= 0 {
		return 1.0
	}
	return volumes[len(volumes)-1] / mean
}

// PriceVsEMA is the relative deviation of price from its EMA.
func PriceVsEMA(price, ema float64) float64 {
	if ema == 0 || math.IsNaN(ema) {
		return 0
	}
	return (price - ema) / ema
}
