package backtest

import (
	"fmt"
	"strings"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/portfolio"
	"tradesim/internal/strategy"
)

// Result is the complete output of one run: the final state, the full
// equity curve and trade log, and every signal the strategy emitted.
type Result struct {
	StrategyName   string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalEquity    float64
	Metrics        map[string]float64
	EquityCurve    []domain.EquityPoint
	Trades         []domain.Trade
	Signals        []strategy.SignalRecord
}

// Summary renders a human-readable report of the run.
func (r *Result) Summary() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Backtest Results: %s\n", r.StrategyName)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Period:          %s to %s\n",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Initial Capital: $%.2f\n", r.InitialCapital)
	fmt.Fprintf(&b, "Final Equity:    $%.2f\n", r.FinalEquity)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 60))
	for _, key := range portfolio.MetricKeys {
		fmt.Fprintf(&b, "%-20s %12.4f\n", key, r.Metrics[key])
	}
	fmt.Fprintf(&b, "%s\n", line)
	return b.String()
}
