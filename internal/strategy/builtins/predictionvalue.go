package builtins

import (
	"math"
	"sort"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/indicator"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*PredictionValue)(nil)

// PredictionValue trades event contracts priced in [0, 1]: it compares the
// market's implied probability against an externally supplied estimate of
// the true probability and takes the side with sufficient edge. Extreme
// favorites and underdogs are filtered out.
type PredictionValue struct {
	strategy.Base

	MinEdge        float64
	MaxImpliedProb float64
	MinImpliedProb float64
	MinVolume      int64

	estimates map[string]float64
}

// NewPredictionValue creates the strategy with defaults for any zero-valued
// parameter.
func NewPredictionValue(cfg PredictionValue) *PredictionValue {
	s := cfg
	if s.MinEdge <= 0 {
		s.MinEdge = 0.05
	}
	if s.MaxImpliedProb <= 0 {
		s.MaxImpliedProb = 0.90
	}
	if s.MinImpliedProb <= 0 {
		s.MinImpliedProb = 0.10
	}
	if s.MinVolume <= 0 {
		s.MinVolume = 1000
	}
	s.estimates = make(map[string]float64)
	return &s
}

// Name returns "prediction-value".
func (s *PredictionValue) Name() string { return "prediction-value" }

// SetProbabilityEstimate sets the estimated true probability for a market.
// Estimates come from an external model; without one the strategy falls
// back to a rolling historical mean.
func (s *PredictionValue) SetProbabilityEstimate(symbol string, prob float64) {
	s.estimates[symbol] = prob
}

// GenerateSignal produces the value intent for one bar of an event market.
func (s *PredictionValue) GenerateSignal(md domain.MarketData, _ time.Time) domain.Signal {
	marketPrice := md.CurrentPrice
	if marketPrice == 0 && len(md.Bars) > 0 {
		marketPrice = md.Bars[len(md.Bars)-1].Close
	}

	trueProb, ok := s.estimates[md.Symbol]
	if !ok {
		// Fall back to a 20-bar rolling mean as a naive estimate.
		if len(md.Bars) <= 20 {
			return domain.Hold(md.Symbol, "no_probability_estimate")
		}
		sma := indicator.SMA(md.Closes(), 20)
		trueProb = sma[len(sma)-1]
		if math.IsNaN(trueProb) {
			return domain.Hold(md.Symbol, "no_probability_estimate")
		}
	}

	implied := marketPrice
	if implied > s.MaxImpliedProb || implied < s.MinImpliedProb {
		return domain.Hold(md.Symbol, "extreme_probability")
	}

	edge := trueProb - implied
	meta := map[string]string{
		"edge":         formatFloat(edge),
		"true_prob":    formatFloat(trueProb),
		"implied_prob": formatFloat(implied),
	}

	if math.Abs(edge) < s.MinEdge {
		meta["below_threshold"] = "true"
		return domain.Signal{Type: domain.SignalHold, Symbol: md.Symbol, Metadata: meta}
	}

	// Strength maxes out at 15% edge; confidence shrinks with the gap
	// between our estimate and the market's, floored at 0.5.
	strength := math.Min(1.0, math.Abs(edge)/0.15)
	confidence := math.Max(0.5, 1.0-math.Abs(implied-trueProb)*2)

	if edge > 0 {
		meta["action"] = "buy_yes"
		return domain.Signal{
			Type:       domain.SignalLong,
			Symbol:     md.Symbol,
			Strength:   strength,
			Confidence: confidence,
			Metadata:   meta,
		}
	}
	meta["action"] = "buy_no"
	return domain.Signal{
		Type:       domain.SignalShort,
		Symbol:     md.Symbol,
		Strength:   strength,
		Confidence: confidence,
		Metadata:   meta,
	}
}

// ExpectedValue returns the expected value per dollar risked of a yes or no
// contract, given an estimated true probability and the market price of the
// yes side.
func (s *PredictionValue) ExpectedValue(trueProb, marketPrice float64, contract string) float64 {
	if contract == "yes" {
		winAmount := 1.0 - marketPrice
		loseAmount := marketPrice
		return trueProb*winAmount - (1-trueProb)*loseAmount
	}
	noPrice := 1.0 - marketPrice
	winAmount := 1.0 - noPrice
	loseAmount := noPrice
	return (1-trueProb)*winAmount - trueProb*loseAmount
}

// Opportunity is a scanned market with its edge and the side to take.
type Opportunity struct {
	Symbol string
	Edge   float64
	Action string
}

// EventMarket is the quote snapshot of one event contract.
type EventMarket struct {
	Symbol       string
	YesPrice     float64 // implied probability, 0-1
	Volume       int64
	OpenInterest int64
}

// FindOpportunities scans event markets for tradable edges, sorted by
// absolute edge descending. Markets without an estimate, outside the
// implied-probability band, or below the volume floor are skipped.
func (s *PredictionValue) FindOpportunities(markets []EventMarket) []Opportunity {
	var out []Opportunity
	for _, m := range markets {
		trueProb, ok := s.estimates[m.Symbol]
		if !ok {
			continue
		}
		if m.YesPrice > s.MaxImpliedProb || m.YesPrice < s.MinImpliedProb || m.Volume < s.MinVolume {
			continue
		}
		edge := trueProb - m.YesPrice
		if math.Abs(edge) < s.MinEdge {
			continue
		}
		action := "buy_yes"
		if edge < 0 {
			action = "buy_no"
		}
		out = append(out, Opportunity{Symbol: m.Symbol, Edge: edge, Action: action})
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Edge) > math.Abs(out[j].Edge)
	})
	return out
}
