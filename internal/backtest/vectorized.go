package backtest

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/indicator"
	"tradesim/internal/portfolio"
)

// SignalFunc classifies every bar at once for the vectorized engine: a
// positive value at index i means hold a long position through bar i.
type SignalFunc func(bars []domain.Bar) []int

// RunVectorized replays the bars without fill simulation: a binary position
// series multiplied against bar returns, with a flat commission charged on
// each position change. It produces the same Result shape as Run but with
// an empty trade log and zero trade-count metrics. Useful for fast
// parameter sweeps before an event-driven run.
func (b *Backtest) RunVectorized(bars []domain.Bar, signals SignalFunc, symbol string) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars supplied for %s", symbol)
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("invalid price history for %s: %w", symbol, err)
	}

	raw := signals(bars)
	if len(raw) != len(bars) {
		return nil, fmt.Errorf("signal series length %d does not match %d bars", len(raw), len(bars))
	}

	// Long-only binary positions.
	positions := make([]float64, len(bars))
	for i, v := range raw {
		if v > 0 {
			positions[i] = 1
		}
	}

	prices := make([]float64, len(bars))
	for i, bar := range bars {
		prices[i] = bar.Close
	}
	barReturns := indicator.Returns(prices)

	// Position held through bar i earns the return of bar i+1; each change
	// in position pays the flat commission rate. The series starts flat, so
	// a long signal on the first bar is itself a charged entry.
	stratReturns := make([]float64, len(barReturns))
	prev := 0.0
	for i := range stratReturns {
		stratReturns[i] = positions[i] * barReturns[i]
		if change := positions[i] - prev; change != 0 {
			stratReturns[i] -= b.commissionRate * absf(change)
		}
		prev = positions[i]
	}

	equity := make([]domain.EquityPoint, len(bars))
	cum := b.initialCapital
	equity[0] = domain.EquityPoint{Timestamp: bars[0].Timestamp, Equity: cum}
	for i, r := range stratReturns {
		cum *= 1 + r
		equity[i+1] = domain.EquityPoint{Timestamp: bars[i+1].Timestamp, Equity: cum}
	}

	equities := make([]float64, len(equity))
	for i, pt := range equity {
		equities[i] = pt.Equity
	}

	metrics := map[string]float64{
		"total_return_pct": (cum - b.initialCapital) / b.initialCapital * 100,
		"sharpe_ratio":     portfolio.Sharpe(stratReturns),
		"sortino_ratio":    portfolio.Sortino(stratReturns),
		"max_drawdown_pct": portfolio.MaxDrawdown(equities) * 100,
		"win_rate":         0,
		"profit_factor":    0,
		"avg_trade_pnl":    0,
		"num_trades":       0,
	}

	return &Result{
		StrategyName:   b.strategy.Name() + "_vectorized",
		Start:          bars[0].Timestamp,
		End:            bars[len(bars)-1].Timestamp,
		InitialCapital: b.initialCapital,
		FinalEquity:    cum,
		Metrics:        metrics,
		EquityCurve:    equity,
		Trades:         nil,
		Signals:        nil,
	}, nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
