package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	sma := SMA(prices, 3)

	if !math.IsNaN(sma[0]) || !math.IsNaN(sma[1]) {
		t.Error("SMA should be NaN for the first period-1 outputs")
	}
	if !almostEqual(sma[2], 2) || !almostEqual(sma[3], 3) || !almostEqual(sma[4], 4) {
		t.Errorf("SMA values = %v, want [NaN NaN 2 3 4]", sma)
	}
}

func TestSMAInsufficientData(t *testing.T) {
	sma := SMA([]float64{1, 2}, 5)
	for i, v := range sma {
		if !math.IsNaN(v) {
			t.Errorf("SMA[%d] = %v, want NaN with insufficient data", i, v)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	prices := []float64{2, 4, 6, 8, 10}
	ema := EMA(prices, 3)

	if !math.IsNaN(ema[0]) || !math.IsNaN(ema[1]) {
		t.Error("EMA should be NaN before the seed index")
	}
	// Seed = SMA of first 3 = 4; k = 0.5.
	if !almostEqual(ema[2], 4) {
		t.Errorf("EMA seed = %v, want 4", ema[2])
	}
	if !almostEqual(ema[3], 6) { // (8-4)*0.5 + 4
		t.Errorf("EMA[3] = %v, want 6", ema[3])
	}
	if !almostEqual(ema[4], 8) { // (10-6)*0.5 + 6
		t.Errorf("EMA[4] = %v, want 8", ema[4])
	}
}

func TestRollingStdPopulation(t *testing.T) {
	prices := []float64{1, 2, 3, 4}
	std := RollingStd(prices, 3)

	if !math.IsNaN(std[0]) || !math.IsNaN(std[1]) {
		t.Error("RollingStd should be NaN for the first period-1 outputs")
	}
	// Population std of {1,2,3} = sqrt(2/3).
	want := math.Sqrt(2.0 / 3.0)
	if !almostEqual(std[2], want) {
		t.Errorf("RollingStd[2] = %v, want %v (population variance)", std[2], want)
	}
	if !almostEqual(std[3], want) {
		t.Errorf("RollingStd[3] = %v, want %v", std[3], want)
	}
}

func TestRSIBoundsAndDirection(t *testing.T) {
	// Monotonic rise: RSI should be pinned at 100 once defined.
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	rsi := RSI(up, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Fatalf("RSI[%d] should be NaN during warmup", i)
		}
	}
	if !almostEqual(rsi[len(rsi)-1], 100) {
		t.Errorf("RSI of monotonic rise = %v, want 100", rsi[len(rsi)-1])
	}

	// Monotonic decline pins RSI at 0.
	down := make([]float64, 20)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	rsi = RSI(down, 14)
	if !almostEqual(rsi[len(rsi)-1], 0) {
		t.Errorf("RSI of monotonic decline = %v, want 0", rsi[len(rsi)-1])
	}
}

func TestBollingerBands(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	middle, upper, lower := Bollinger(prices, 3, 2.0)

	if !math.IsNaN(middle[1]) || !math.IsNaN(upper[1]) || !math.IsNaN(lower[1]) {
		t.Error("Bollinger bands should be NaN during warmup")
	}

	std := math.Sqrt(2.0 / 3.0)
	if !almostEqual(middle[2], 2) {
		t.Errorf("middle[2] = %v, want 2", middle[2])
	}
	if !almostEqual(upper[2], 2+2*std) {
		t.Errorf("upper[2] = %v, want %v", upper[2], 2+2*std)
	}
	if !almostEqual(lower[2], 2-2*std) {
		t.Errorf("lower[2] = %v, want %v", lower[2], 2-2*std)
	}
}

func TestReturns(t *testing.T) {
	rets := Returns([]float64{100, 110, 99})
	if len(rets) != 2 {
		t.Fatalf("Returns length = %d, want 2", len(rets))
	}
	if !almostEqual(rets[0], 0.10) {
		t.Errorf("rets[0] = %v, want 0.10", rets[0])
	}
	if !almostEqual(rets[1], -0.10) {
		t.Errorf("rets[1] = %v, want -0.10", rets[1])
	}

	if Returns([]float64{100}) != nil {
		t.Error("Returns of a single price should be nil")
	}
}

func TestVolatilityDegenerate(t *testing.T) {
	if v := Volatility(nil); v != 0 {
		t.Errorf("Volatility(nil) = %v, want 0", v)
	}
	if v := Volatility([]float64{0.01}); v != 0 {
		t.Errorf("Volatility of one return = %v, want 0", v)
	}
	if v := Volatility([]float64{0.01, 0.01, 0.01}); v != 0 {
		t.Errorf("Volatility of constant returns = %v, want 0", v)
	}
}

func TestVolatilityAnnualized(t *testing.T) {
	rets := []float64{0.01, -0.01, 0.01, -0.01}
	want := Std(rets) * math.Sqrt(252)
	if got := Volatility(rets); !almostEqual(got, want) {
		t.Errorf("Volatility = %v, want %v", got, want)
	}
}
