// Package risk provides position sizing and portfolio-level risk gating.
// The canonical sizer is fractional Kelly; a RiskManager wraps a sizer with
// drawdown, daily-loss, and open-position guards that can veto or scale
// every trade.
package risk

import "fmt"

// PositionSizer computes a dollar allocation from a trade win/loss profile.
type PositionSizer interface {
	// PositionSize returns the dollar amount to allocate given the
	// historical win rate, average win, average loss (positive number),
	// and available capital. A zero return means no trade.
	PositionSize(winRate, avgWin, avgLoss, capital float64) float64
}

// Compile-time interface check.
var _ PositionSizer = (*KellyCriterion)(nil)

// KellyCriterion sizes positions by fractional Kelly:
//
//	f* = (b*p - q) / b
//
// where b = avgWin/avgLoss (odds), p = winRate, q = 1-p. The applied
// fraction is f* scaled by Fraction (e.g. 0.25 for quarter-Kelly) and
// clamped to [MinPositionPct, MaxPositionPct] of capital.
type KellyCriterion struct {
	Fraction       float64 // fraction of full Kelly to apply
	MinPositionPct float64 // floor on the applied fraction of capital
	MaxPositionPct float64 // cap on the applied fraction of capital
}

// NewKellyCriterion validates the sizer bounds. Nonsensical bounds are a
// fatal configuration error, not a runtime condition.
func NewKellyCriterion(fraction, minPct, maxPct float64) (*KellyCriterion, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("kelly fraction %g out of range (0, 1]", fraction)
	}
	if minPct < 0 || maxPct <= 0 {
		return nil, fmt.Errorf("position bounds must be positive: min=%g max=%g", minPct, maxPct)
	}
	if minPct > maxPct {
		return nil, fmt.Errorf("min position pct %g exceeds max %g", minPct, maxPct)
	}
	return &KellyCriterion{Fraction: fraction, MinPositionPct: minPct, MaxPositionPct: maxPct}, nil
}

// DefaultKelly returns the quarter-Kelly sizer with 1%-10% position bounds.
func DefaultKelly() *KellyCriterion {
	return &KellyCriterion{Fraction: 0.25, MinPositionPct: 0.01, MaxPositionPct: 0.10}
}

// KellyFraction returns the full Kelly fraction. An avgLoss <= 0 makes the
// odds undefined and is treated as no edge. The result can be negative when
// the statistical edge is negative.
func (k *KellyCriterion) KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss <= 0 {
		return 0
	}
	b := avgWin / avgLoss
	if b == 0 {
		return 0
	}
	p := winRate
	q := 1 - p
	return (b*p - q) / b
}

// PositionSize returns the dollar allocation for the given profile. A full
// Kelly fraction <= 0 returns zero regardless of the configured minimum: a
// negative edge must never be forced up to a floor position.
func (k *KellyCriterion) PositionSize(winRate, avgWin, avgLoss, capital float64) float64 {
	kelly := k.KellyFraction(winRate, avgWin, avgLoss)
	if kelly <= 0 {
		return 0
	}

	pct := kelly * k.Fraction
	if pct < k.MinPositionPct {
		pct = k.MinPositionPct
	}
	if pct > k.MaxPositionPct {
		pct = k.MaxPositionPct
	}
	return capital * pct
}
