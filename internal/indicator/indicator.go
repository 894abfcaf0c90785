// Package indicator provides stateless technical-indicator math over price
// sequences. All rolling indicators return NaN for the first period-1
// outputs rather than zero; a zero there would read as a real price level
// and produce false signals at the start of a series. Variance is population
// variance throughout.
package indicator

import "math"

// SMA returns the simple moving average of prices over the given period.
// Outputs before index period-1 are NaN.
func SMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average of prices over the given
// period, seeded with the SMA of the first period values. Outputs before
// index period-1 are NaN.
func EMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	var seed float64
	for _, p := range prices[:period] {
		seed += p
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / (float64(period) + 1.0)
	prev := seed
	for i := period; i < len(prices); i++ {
		prev = (prices[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// RollingStd returns the rolling population standard deviation of prices
// over the given period. Outputs before index period-1 are NaN.
func RollingStd(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	for i := period - 1; i < len(prices); i++ {
		window := prices[i-period+1 : i+1]
		out[i] = Std(window)
	}
	return out
}

// RSI returns the relative strength index using Wilder smoothing. Outputs
// before index period are NaN (the first period price changes seed the
// average gain/loss).
func RSI(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger returns the Bollinger band midline (SMA) and the upper/lower
// bands at k standard deviations. Outputs before index period-1 are NaN.
func Bollinger(prices []float64, period int, k float64) (middle, upper, lower []float64) {
	middle = SMA(prices, period)
	std := RollingStd(prices, period)
	upper = nanSlice(len(prices))
	lower = nanSlice(len(prices))
	for i := range prices {
		if !math.IsNaN(middle[i]) {
			upper[i] = middle[i] + k*std[i]
			lower[i] = middle[i] - k*std[i]
		}
	}
	return middle, upper, lower
}

// Returns computes period-over-period fractional returns. The result has
// len(prices)-1 entries; a zero-price observation yields a zero return.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return out
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Std returns the population standard deviation, or 0 for fewer than one
// observation.
func Std(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Volatility returns the annualized volatility of a return series using a
// 252 trading-day year, or 0 for fewer than 2 observations.
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return Std(returns) * math.Sqrt(252)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
