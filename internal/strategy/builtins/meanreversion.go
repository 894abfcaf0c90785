// Package builtins provides the strategy implementations that ship with
// tradesim.
package builtins

import (
	"math"
	"strconv"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/indicator"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MeanReversion)(nil)

// MeanReversion buys when price closes below the lower Bollinger band with
// RSI confirming oversold, and closes when price stretches above the upper
// band with RSI overbought. A volatility filter keeps it out of choppy
// regimes, where reversion entries get run over.
type MeanReversion struct {
	strategy.Base

	LookbackPeriod   int
	StdDevThreshold  float64
	RSIOversold      float64
	RSIOverbought    float64
	VolatilityFilter float64 // max per-bar volatility to trade
	RSIPeriod        int
}

// NewMeanReversion creates the strategy with defaults for any zero-valued
// parameter.
func NewMeanReversion(cfg MeanReversion) *MeanReversion {
	s := cfg
	if s.LookbackPeriod <= 0 {
		s.LookbackPeriod = 20
	}
	if s.StdDevThreshold <= 0 {
		s.StdDevThreshold = 2.0
	}
	if s.RSIOversold <= 0 {
		s.RSIOversold = 30
	}
	if s.RSIOverbought <= 0 {
		s.RSIOverbought = 70
	}
	if s.VolatilityFilter <= 0 {
		s.VolatilityFilter = 0.03
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	return &s
}

// Name returns "mean-reversion".
func (s *MeanReversion) Name() string { return "mean-reversion" }

// GenerateSignal produces the mean-reversion intent for one bar.
func (s *MeanReversion) GenerateSignal(md domain.MarketData, _ time.Time) domain.Signal {
	if len(md.Bars) < s.LookbackPeriod {
		return domain.Hold(md.Symbol, "")
	}

	prices := md.Closes()
	current := prices[len(prices)-1]

	middle, upper, lower := indicator.Bollinger(prices, s.LookbackPeriod, s.StdDevThreshold)
	rsiSeries := indicator.RSI(prices, s.RSIPeriod)
	rsi := rsiSeries[len(rsiSeries)-1]

	returns := indicator.Returns(prices)
	vol := 0.0
	if len(returns) >= s.LookbackPeriod {
		vol = indicator.Std(returns[len(returns)-s.LookbackPeriod:])
	}
	if vol > s.VolatilityFilter {
		return domain.Hold(md.Symbol, "high_vol")
	}

	mid := middle[len(middle)-1]
	up := upper[len(upper)-1]
	low := lower[len(lower)-1]
	if math.IsNaN(mid) || math.IsNaN(rsi) {
		return domain.Hold(md.Symbol, "")
	}

	zScore := 0.0
	if bandWidth := (up - low) / 2; bandWidth > 0 {
		zScore = (current - mid) / bandWidth
	}

	meta := map[string]string{
		"z_score": formatFloat(zScore),
		"rsi":     formatFloat(rsi),
	}

	switch {
	case current <= low && rsi <= s.RSIOversold:
		return domain.Signal{
			Type:        domain.SignalLong,
			Symbol:      md.Symbol,
			Strength:    math.Min(1.0, math.Abs(zScore)/s.StdDevThreshold),
			Confidence:  (s.RSIOversold - rsi) / s.RSIOversold,
			TargetPrice: mid,
			StopLoss:    current * 0.95,
			Metadata:    meta,
		}
	case current >= up && rsi >= s.RSIOverbought:
		return domain.Signal{
			Type:       domain.SignalClose,
			Symbol:     md.Symbol,
			Strength:   math.Min(1.0, math.Abs(zScore)/s.StdDevThreshold),
			Confidence: (rsi - s.RSIOverbought) / (100 - s.RSIOverbought),
			Metadata:   meta,
		}
	}

	return domain.Signal{Type: domain.SignalHold, Symbol: md.Symbol, Metadata: meta}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
