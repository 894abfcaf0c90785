package builtins

import (
	"math"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/indicator"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*LowVolMomentum)(nil)

// LowVolMomentum rides fast/slow EMA trends, but only while realized
// volatility sits inside a configured band: too little volatility means no
// opportunity, too much means whipsaw risk. Position confidence falls as
// volatility approaches the upper bound.
type LowVolMomentum struct {
	strategy.Base

	FastPeriod             int
	SlowPeriod             int
	VolatilityLookback     int
	MinVolatility          float64
	MaxVolatility          float64
	TrendStrengthThreshold float64
}

// NewLowVolMomentum creates the strategy with defaults for any zero-valued
// parameter.
func NewLowVolMomentum(cfg LowVolMomentum) *LowVolMomentum {
	s := cfg
	if s.FastPeriod <= 0 {
		s.FastPeriod = 10
	}
	if s.SlowPeriod <= 0 {
		s.SlowPeriod = 30
	}
	if s.VolatilityLookback <= 0 {
		s.VolatilityLookback = 20
	}
	if s.MinVolatility <= 0 {
		s.MinVolatility = 0.005
	}
	if s.MaxVolatility <= 0 {
		s.MaxVolatility = 0.025
	}
	if s.TrendStrengthThreshold <= 0 {
		s.TrendStrengthThreshold = 0.02
	}
	return &s
}

// Name returns "low-vol-momentum".
func (s *LowVolMomentum) Name() string { return "low-vol-momentum" }

// GenerateSignal produces the momentum intent for one bar.
func (s *LowVolMomentum) GenerateSignal(md domain.MarketData, _ time.Time) domain.Signal {
	if len(md.Bars) < s.SlowPeriod {
		return domain.Hold(md.Symbol, "")
	}

	prices := md.Closes()
	current := prices[len(prices)-1]

	fast := indicator.EMA(prices, s.FastPeriod)
	slow := indicator.EMA(prices, s.SlowPeriod)

	curFast := fast[len(fast)-1]
	curSlow := slow[len(slow)-1]
	if math.IsNaN(curFast) || math.IsNaN(curSlow) || curSlow == 0 {
		return domain.Hold(md.Symbol, "")
	}
	prevFast, prevSlow := curFast, curSlow
	if len(fast) > 1 && !math.IsNaN(fast[len(fast)-2]) && !math.IsNaN(slow[len(slow)-2]) {
		prevFast = fast[len(fast)-2]
		prevSlow = slow[len(slow)-2]
	}

	returns := indicator.Returns(prices)
	recent := returns
	if len(returns) >= s.VolatilityLookback {
		recent = returns[len(returns)-s.VolatilityLookback:]
	}
	vol := 0.0
	if len(recent) > 1 {
		vol = indicator.Std(recent)
	}

	if vol < s.MinVolatility {
		return domain.Hold(md.Symbol, "volatility_too_low")
	}
	if vol > s.MaxVolatility {
		return domain.Hold(md.Symbol, "volatility_too_high")
	}

	trendStrength := (curFast - curSlow) / curSlow

	bullCross := prevFast <= prevSlow && curFast > curSlow
	bearCross := prevFast >= prevSlow && curFast < curSlow
	bullTrend := curFast > curSlow && trendStrength > s.TrendStrengthThreshold
	bearTrend := curFast < curSlow && trendStrength < -s.TrendStrengthThreshold

	// Strength maxes out at 5% EMA divergence.
	strength := math.Min(1.0, math.Abs(trendStrength)/0.05)
	confidence := math.Min(1.0, (s.MaxVolatility-vol)/(s.MaxVolatility-s.MinVolatility))

	meta := map[string]string{
		"trend_strength": formatFloat(trendStrength),
		"volatility":     formatFloat(vol),
	}

	switch {
	case bullCross || (bullTrend && current > curFast):
		return domain.Signal{
			Type:       domain.SignalLong,
			Symbol:     md.Symbol,
			Strength:   strength,
			Confidence: confidence,
			StopLoss:   curSlow,
			Metadata:   meta,
		}
	case bearCross || (bearTrend && current < curFast):
		return domain.Signal{
			Type:       domain.SignalClose,
			Symbol:     md.Symbol,
			Strength:   strength,
			Confidence: confidence,
			Metadata:   meta,
		}
	}

	return domain.Signal{Type: domain.SignalHold, Symbol: md.Symbol, Metadata: meta}
}

// VectorizedSignals classifies every bar at once for the vectorized engine:
// 1 while the fast EMA is above the slow EMA, -1 while below, 0 otherwise.
// Bars outside the volatility band are 0.
func (s *LowVolMomentum) VectorizedSignals(bars []domain.Bar) []int {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Close
	}

	fast := indicator.EMA(prices, s.FastPeriod)
	slow := indicator.EMA(prices, s.SlowPeriod)
	returns := indicator.Returns(prices)
	vol := indicator.RollingStd(returns, s.VolatilityLookback)

	out := make([]int, len(bars))
	for i := range bars {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			continue
		}
		// Returns series is offset by one from prices.
		if i == 0 || i-1 >= len(vol) || math.IsNaN(vol[i-1]) {
			continue
		}
		v := vol[i-1]
		if v < s.MinVolatility || v > s.MaxVolatility {
			continue
		}
		switch {
		case fast[i] > slow[i]:
			out[i] = 1
		case fast[i] < slow[i]:
			out[i] = -1
		}
	}
	return out
}
