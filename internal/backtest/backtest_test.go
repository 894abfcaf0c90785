package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/portfolio"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
)

func mkBars(symbol string, prices []float64) []domain.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(prices))
	for i, p := range prices {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Open:      p,
			High:      p * 1.01,
			Low:       p * 0.99,
			Close:     p,
			Volume:    1000,
		}
	}
	return bars
}

func flatSeries(level float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = level
	}
	return out
}

// holdStrategy never trades.
type holdStrategy struct{ strategy.Base }

func (s *holdStrategy) Name() string { return "always-hold" }
func (s *holdStrategy) GenerateSignal(md domain.MarketData, _ time.Time) domain.Signal {
	return domain.Hold(md.Symbol, "")
}

// longStrategy goes long every bar at full strength.
type longStrategy struct{ strategy.Base }

func (s *longStrategy) Name() string { return "always-long" }
func (s *longStrategy) GenerateSignal(md domain.MarketData, _ time.Time) domain.Signal {
	return domain.Signal{
		Type:       domain.SignalLong,
		Symbol:     md.Symbol,
		Strength:   1.0,
		Confidence: 1.0,
	}
}

// flipStrategy alternates long and close so sells realize P&L.
type flipStrategy struct {
	strategy.Base
	calls int
}

func (s *flipStrategy) Name() string { return "flip" }
func (s *flipStrategy) GenerateSignal(md domain.MarketData, _ time.Time) domain.Signal {
	s.calls++
	if s.calls%2 == 1 {
		return domain.Signal{Type: domain.SignalLong, Symbol: md.Symbol, Strength: 1, Confidence: 1}
	}
	return domain.Signal{Type: domain.SignalClose, Symbol: md.Symbol, Strength: 1, Confidence: 1}
}

// ---------------------------------------------------------------------------
// Event-driven engine
// ---------------------------------------------------------------------------

func TestRunHoldStrategyNeverTrades(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 30))
	bt := New(&holdStrategy{}, 10_000)

	res, err := bt.Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %d, want 0", len(res.Trades))
	}
	if res.FinalEquity != 10_000 {
		t.Errorf("final equity = %v, want exactly 10000", res.FinalEquity)
	}
	if len(res.EquityCurve) != len(bars) {
		t.Errorf("equity curve length = %d, want %d", len(res.EquityCurve), len(bars))
	}
	if got := res.Metrics["num_trades"]; got != 0 {
		t.Errorf("num_trades = %v, want 0", got)
	}
	if len(res.Signals) != len(bars) {
		t.Errorf("recorded signals = %d, want one per bar", len(res.Signals))
	}
}

func TestRunMetricsKeysComplete(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 10))
	res, err := New(&holdStrategy{}, 10_000).Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, key := range portfolio.MetricKeys {
		if _, ok := res.Metrics[key]; !ok {
			t.Errorf("metrics missing key %q", key)
		}
	}
}

func TestRunLongStrategyPaysFees(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 20))
	res, err := New(&longStrategy{}, 10_000).Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected buy trades from an always-long strategy")
	}
	// Flat prices: the only equity change is commissions.
	if res.FinalEquity >= 10_000 {
		t.Errorf("final equity = %v, want below initial after fees", res.FinalEquity)
	}
	for _, tr := range res.Trades {
		if tr.Side != domain.OrderSideBuy {
			t.Errorf("trade side = %q, want all buys", tr.Side)
		}
		if tr.Fees <= 0 {
			t.Errorf("trade fees = %v, want > 0", tr.Fees)
		}
	}
}

func TestRunFlipStrategyRealizesPnL(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	bars := mkBars("TEST", prices)

	res, err := New(&flipStrategy{}, 10_000).Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sells int
	for _, tr := range res.Trades {
		if tr.Side == domain.OrderSideSell {
			sells++
			if tr.RealizedPnL <= 0 {
				t.Errorf("sell at rising prices: realized pnl = %v, want > 0", tr.RealizedPnL)
			}
		}
	}
	if sells == 0 {
		t.Fatal("expected sell trades from the flip strategy")
	}
	if res.Metrics["win_rate"] <= 0 {
		t.Errorf("win_rate = %v, want > 0 with profitable sells", res.Metrics["win_rate"])
	}
}

func TestRunRejectsMalformedBars(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 5))
	bars[2].Timestamp = bars[1].Timestamp // duplicate timestamp

	if _, err := New(&holdStrategy{}, 10_000).Run(bars, "TEST"); err == nil {
		t.Fatal("expected an error for non-chronological bars")
	}
	if _, err := New(&holdStrategy{}, 10_000).Run(nil, "TEST"); err == nil {
		t.Fatal("expected an error for an empty series")
	}
}

func TestRunDeterministic(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	bars := mkBars("TEST", prices)

	run := func() map[string]float64 {
		res, err := New(&flipStrategy{}, 10_000).Run(bars, "TEST")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res.Metrics
	}

	first, second := run(), run()
	for _, key := range portfolio.MetricKeys {
		if first[key] != second[key] {
			t.Errorf("%s differs across identical runs: %v vs %v", key, first[key], second[key])
		}
	}
}

func TestRunReusedBacktestIsReproducible(t *testing.T) {
	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.02, float64(i))
	}
	bars := mkBars("TEST", prices)

	// One Backtest, run twice: the first run drives the equity high-water
	// mark well above the starting capital, which must not gate or resize
	// anything in the second run.
	bt := New(&longStrategy{}, 10_000)
	first, err := bt.Run(bars, "TEST")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := bt.Run(bars, "TEST")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(first.Trades) == 0 {
		t.Fatal("expected trades from an always-long strategy on a rising series")
	}
	if len(second.Trades) != len(first.Trades) {
		t.Errorf("trade count = %d on rerun, want %d", len(second.Trades), len(first.Trades))
	}
	for _, key := range portfolio.MetricKeys {
		if first.Metrics[key] != second.Metrics[key] {
			t.Errorf("%s differs across identical runs: %v vs %v",
				key, first.Metrics[key], second.Metrics[key])
		}
	}
	if len(first.Signals) != len(bars) || len(second.Signals) != len(bars) {
		t.Errorf("signals = %d and %d, want one per bar in each run's result",
			len(first.Signals), len(second.Signals))
	}
}

func TestRunGateBlocksTrading(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 10))
	m := risk.NewManager(nil, risk.ManagerConfig{
		MaxDrawdownPct:    0.15,
		DailyLossLimitPct: 0.03,
		MaxOpenPositions:  0, // zero cap denies every bar
	})

	res, err := New(&longStrategy{}, 10_000, WithRiskManager(m)).Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %d, want 0 with the gate closed", len(res.Trades))
	}
	if len(res.Signals) != 0 {
		t.Errorf("signals = %d, want 0: gate denial precedes signal generation", len(res.Signals))
	}
	if len(res.EquityCurve) != len(bars) {
		t.Errorf("equity curve length = %d, want %d despite denials", len(res.EquityCurve), len(bars))
	}
}

func TestRunResultWindow(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 15))
	res, err := New(&holdStrategy{}, 10_000).Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Start.Equal(bars[0].Timestamp) || !res.End.Equal(bars[len(bars)-1].Timestamp) {
		t.Errorf("window = [%v, %v], want bar range", res.Start, res.End)
	}
	if res.StrategyName != "always-hold" {
		t.Errorf("strategy name = %q", res.StrategyName)
	}
}

func TestSummaryContainsMetrics(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 10))
	res, err := New(&holdStrategy{}, 10_000).Run(bars, "TEST")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := res.Summary()
	for _, want := range []string{"always-hold", "total_return_pct", "sharpe_ratio", "Initial Capital"} {
		if !containsStr(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func containsStr(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Vectorized engine
// ---------------------------------------------------------------------------

func TestRunVectorizedShape(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 20))
	bt := New(&holdStrategy{}, 10_000)

	alwaysLong := func(bars []domain.Bar) []int {
		out := make([]int, len(bars))
		for i := range out {
			out[i] = 1
		}
		return out
	}

	res, err := bt.RunVectorized(bars, alwaysLong, "TEST")
	if err != nil {
		t.Fatalf("RunVectorized: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %d, want empty trade list", len(res.Trades))
	}
	if res.Metrics["num_trades"] != 0 {
		t.Errorf("num_trades = %v, want 0", res.Metrics["num_trades"])
	}
	if len(res.EquityCurve) != len(bars) {
		t.Errorf("equity curve length = %d, want %d", len(res.EquityCurve), len(bars))
	}
	for _, key := range portfolio.MetricKeys {
		if _, ok := res.Metrics[key]; !ok {
			t.Errorf("metrics missing key %q", key)
		}
	}
}

func TestRunVectorizedCommissionOnEntry(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 20))
	bt := New(&holdStrategy{}, 10_000)

	// Flat after bar 5: the only equity impact is the entry commission.
	entry := func(bars []domain.Bar) []int {
		out := make([]int, len(bars))
		for i := 5; i < len(out); i++ {
			out[i] = 1
		}
		return out
	}

	res, err := bt.RunVectorized(bars, entry, "TEST")
	if err != nil {
		t.Fatalf("RunVectorized: %v", err)
	}
	want := 10_000 * (1 - portfolio.DefaultFeeRate)
	if math.Abs(res.FinalEquity-want) > 1e-9 {
		t.Errorf("final equity = %v, want %v (one commission)", res.FinalEquity, want)
	}
}

func TestRunVectorizedFirstBarEntryCharged(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 20))
	bt := New(&holdStrategy{}, 10_000)

	// Long from the very first bar: the series starts flat, so that entry
	// is a position change and pays commission.
	alwaysLong := func(bars []domain.Bar) []int {
		out := make([]int, len(bars))
		for i := range out {
			out[i] = 1
		}
		return out
	}

	res, err := bt.RunVectorized(bars, alwaysLong, "TEST")
	if err != nil {
		t.Fatalf("RunVectorized: %v", err)
	}
	want := 10_000 * (1 - portfolio.DefaultFeeRate)
	if math.Abs(res.FinalEquity-want) > 1e-9 {
		t.Errorf("final equity = %v, want %v (one entry commission)", res.FinalEquity, want)
	}
	if res.StrategyName != "always-hold_vectorized" {
		t.Errorf("strategy name = %q, want vectorized suffix", res.StrategyName)
	}
}

func TestRunVectorizedCapturesTrend(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.01, float64(i))
	}
	bars := mkBars("TEST", prices)
	bt := New(&holdStrategy{}, 10_000)

	alwaysLong := func(bars []domain.Bar) []int {
		out := make([]int, len(bars))
		for i := range out {
			out[i] = 1
		}
		return out
	}

	res, err := bt.RunVectorized(bars, alwaysLong, "TEST")
	if err != nil {
		t.Fatalf("RunVectorized: %v", err)
	}
	if res.FinalEquity <= res.InitialCapital {
		t.Errorf("final equity = %v, want growth riding a +1%%/bar trend", res.FinalEquity)
	}
	if res.Metrics["total_return_pct"] <= 0 {
		t.Errorf("total_return_pct = %v, want > 0", res.Metrics["total_return_pct"])
	}
}

func TestRunVectorizedLengthMismatch(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 10))
	bt := New(&holdStrategy{}, 10_000)

	short := func(bars []domain.Bar) []int { return make([]int, 3) }
	if _, err := bt.RunVectorized(bars, short, "TEST"); err == nil {
		t.Fatal("expected an error for a mismatched signal series")
	}
}

// ---------------------------------------------------------------------------
// Parallel runs
// ---------------------------------------------------------------------------

func TestRunManyIndependentRuns(t *testing.T) {
	bars := mkBars("TEST", flatSeries(100, 20))
	specs := []RunSpec{
		{Strategy: &holdStrategy{}, Symbol: "AAA", Bars: bars, InitialCapital: 10_000},
		{Strategy: &longStrategy{}, Symbol: "BBB", Bars: bars, InitialCapital: 20_000},
	}

	outcomes := RunMany(context.Background(), specs)
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Symbol != "AAA" || outcomes[1].Symbol != "BBB" {
		t.Error("outcomes not in spec order")
	}
	for i, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("outcome %d: %v", i, o.Err)
		}
		if o.Result == nil {
			t.Fatalf("outcome %d: nil result", i)
		}
	}
	if outcomes[0].Result.FinalEquity != 10_000 {
		t.Errorf("hold run final equity = %v, want 10000", outcomes[0].Result.FinalEquity)
	}
	if outcomes[1].Result.FinalEquity >= 20_000 {
		t.Errorf("long run final equity = %v, want below initial after fees", outcomes[1].Result.FinalEquity)
	}
}

func TestRunManyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bars := mkBars("TEST", flatSeries(100, 5))
	outcomes := RunMany(ctx, []RunSpec{
		{Strategy: &holdStrategy{}, Symbol: "AAA", Bars: bars, InitialCapital: 10_000},
	})
	if outcomes[0].Err == nil {
		t.Fatal("expected the context error on a cancelled run")
	}
}
