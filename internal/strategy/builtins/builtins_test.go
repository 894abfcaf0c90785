package builtins

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"tradesim/internal/domain"
)

// marketData builds a MarketData window from a close-price sequence.
func marketData(symbol string, prices []float64) domain.MarketData {
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
	return domain.MarketData{
		Symbol:       symbol,
		AssetClass:   domain.AssetStock,
		Bars:         bars,
		CurrentPrice: prices[len(prices)-1],
	}
}

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// MeanReversion
// ---------------------------------------------------------------------------

func TestMeanReversionHoldInsufficientData(t *testing.T) {
	s := NewMeanReversion(MeanReversion{})
	sig := s.GenerateSignal(marketData("TEST", []float64{100, 101, 102}), now)

	if sig.Type != domain.SignalHold {
		t.Errorf("signal = %q, want hold with 3 bars", sig.Type)
	}
	if sig.Strength != 0 {
		t.Errorf("strength = %v, want 0", sig.Strength)
	}
}

func TestMeanReversionOversold(t *testing.T) {
	s := NewMeanReversion(MeanReversion{LookbackPeriod: 20, StdDevThreshold: 2.0, RSIOversold: 30})

	// Flat then sharp decline: price well below the lower band, RSI depressed.
	prices := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100,
		100, 100, 100, 100, 100, 95, 90, 85, 80, 75}
	sig := s.GenerateSignal(marketData("TEST", prices), now)

	if sig.Type != domain.SignalLong && sig.Type != domain.SignalHold {
		t.Errorf("signal = %q, want long or hold", sig.Type)
	}
	if sig.Type == domain.SignalLong {
		if sig.Strength <= 0 || sig.Strength > 1 {
			t.Errorf("strength = %v, want in (0, 1]", sig.Strength)
		}
		if sig.TargetPrice <= 0 {
			t.Error("long signal should target the band midline")
		}
	}
}

func TestMeanReversionOverbought(t *testing.T) {
	s := NewMeanReversion(MeanReversion{LookbackPeriod: 20, StdDevThreshold: 2.0, RSIOverbought: 70})

	prices := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100,
		100, 100, 100, 100, 100, 105, 110, 115, 120, 125}
	sig := s.GenerateSignal(marketData("TEST", prices), now)

	if sig.Type != domain.SignalClose && sig.Type != domain.SignalHold {
		t.Errorf("signal = %q, want close or hold", sig.Type)
	}
}

func TestMeanReversionVolatilityFilter(t *testing.T) {
	s := NewMeanReversion(MeanReversion{VolatilityFilter: 0.01})

	rng := rand.New(rand.NewSource(42))
	prices := make([]float64, 30)
	level := 100.0
	for i := range prices {
		level += rng.NormFloat64() * 5
		prices[i] = level
	}

	sig := s.GenerateSignal(marketData("TEST", prices), now)
	if sig.Type != domain.SignalHold {
		t.Fatalf("signal = %q, want hold in a high-volatility regime", sig.Type)
	}
	if sig.Metadata["reason"] != "high_vol" {
		t.Errorf("reason = %q, want %q", sig.Metadata["reason"], "high_vol")
	}
}

// ---------------------------------------------------------------------------
// LowVolMomentum
// ---------------------------------------------------------------------------

func TestMomentumHoldInsufficientData(t *testing.T) {
	s := NewLowVolMomentum(LowVolMomentum{})
	sig := s.GenerateSignal(marketData("TEST", []float64{100, 101, 102}), now)

	if sig.Type != domain.SignalHold {
		t.Errorf("signal = %q, want hold", sig.Type)
	}
}

func trendPrices(from, to float64, n int, noise float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]float64, n)
	for i := range prices {
		base := from + (to-from)*float64(i)/float64(n-1)
		prices[i] = base + rng.NormFloat64()*noise
	}
	return prices
}

func TestMomentumUptrend(t *testing.T) {
	s := NewLowVolMomentum(LowVolMomentum{
		FastPeriod: 5, SlowPeriod: 10, MinVolatility: 0.0001, MaxVolatility: 0.05,
	})

	prices := trendPrices(100, 110, 40, 0.5, 42)
	sig := s.GenerateSignal(marketData("TEST", prices), now)

	if sig.Type != domain.SignalLong && sig.Type != domain.SignalHold {
		t.Errorf("signal = %q, want long or hold in an uptrend", sig.Type)
	}
}

func TestMomentumDowntrend(t *testing.T) {
	s := NewLowVolMomentum(LowVolMomentum{
		FastPeriod: 5, SlowPeriod: 10, MinVolatility: 0.0001, MaxVolatility: 0.05,
	})

	prices := trendPrices(110, 100, 40, 0.5, 42)
	sig := s.GenerateSignal(marketData("TEST", prices), now)

	if sig.Type != domain.SignalClose && sig.Type != domain.SignalHold {
		t.Errorf("signal = %q, want close or hold in a downtrend", sig.Type)
	}
}

func TestMomentumVolatilityBand(t *testing.T) {
	s := NewLowVolMomentum(LowVolMomentum{MaxVolatility: 0.01})

	rng := rand.New(rand.NewSource(42))
	prices := make([]float64, 40)
	level := 100.0
	for i := range prices {
		level += rng.NormFloat64() * 3
		prices[i] = level
	}

	sig := s.GenerateSignal(marketData("TEST", prices), now)
	if sig.Type != domain.SignalHold {
		t.Fatalf("signal = %q, want hold above the volatility band", sig.Type)
	}
	if sig.Metadata["reason"] != "volatility_too_high" {
		t.Errorf("reason = %q, want %q", sig.Metadata["reason"], "volatility_too_high")
	}
}

func TestMomentumVectorizedSignals(t *testing.T) {
	s := NewLowVolMomentum(LowVolMomentum{
		FastPeriod: 5, SlowPeriod: 10, MinVolatility: 0.0001, MaxVolatility: 0.05,
	})

	prices := trendPrices(100, 108, 50, 0.3, 7)
	md := marketData("TEST", prices)

	signals := s.VectorizedSignals(md.Bars)
	if len(signals) != len(md.Bars) {
		t.Fatalf("signals length = %d, want %d", len(signals), len(md.Bars))
	}
	for i, v := range signals {
		if v < -1 || v > 1 {
			t.Fatalf("signals[%d] = %d, want in {-1, 0, 1}", i, v)
		}
	}
	// Warmup region carries no signal.
	for i := 0; i < s.SlowPeriod-1; i++ {
		if signals[i] != 0 {
			t.Errorf("signals[%d] = %d, want 0 during warmup", i, signals[i])
		}
	}
}

// ---------------------------------------------------------------------------
// PredictionValue
// ---------------------------------------------------------------------------

func flatPrices(level float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = level
	}
	return out
}

func TestPredictionBuyYesUnderpriced(t *testing.T) {
	s := NewPredictionValue(PredictionValue{MinEdge: 0.05})
	s.SetProbabilityEstimate("MARKET-A", 0.70)

	md := marketData("MARKET-A", flatPrices(0.60, 25))
	md.AssetClass = domain.AssetPrediction
	sig := s.GenerateSignal(md, now)

	if sig.Type != domain.SignalLong {
		t.Fatalf("signal = %q, want long when yes is underpriced", sig.Type)
	}
	if sig.Metadata["action"] != "buy_yes" {
		t.Errorf("action = %q, want buy_yes", sig.Metadata["action"])
	}
}

func TestPredictionBuyNoOverpriced(t *testing.T) {
	s := NewPredictionValue(PredictionValue{MinEdge: 0.05})
	s.SetProbabilityEstimate("MARKET-A", 0.50)

	md := marketData("MARKET-A", flatPrices(0.60, 25))
	sig := s.GenerateSignal(md, now)

	if sig.Type != domain.SignalShort {
		t.Fatalf("signal = %q, want short when yes is overpriced", sig.Type)
	}
	if sig.Metadata["action"] != "buy_no" {
		t.Errorf("action = %q, want buy_no", sig.Metadata["action"])
	}
}

func TestPredictionInsufficientEdge(t *testing.T) {
	s := NewPredictionValue(PredictionValue{MinEdge: 0.10})
	s.SetProbabilityEstimate("MARKET-A", 0.55)

	sig := s.GenerateSignal(marketData("MARKET-A", flatPrices(0.52, 25)), now)

	if sig.Type != domain.SignalHold {
		t.Fatalf("signal = %q, want hold with a 3%% edge below the 10%% floor", sig.Type)
	}
	if sig.Metadata["below_threshold"] != "true" {
		t.Error("hold metadata should flag below_threshold")
	}
}

func TestPredictionExtremeProbabilityFilter(t *testing.T) {
	s := NewPredictionValue(PredictionValue{MaxImpliedProb: 0.90, MinImpliedProb: 0.10})
	s.SetProbabilityEstimate("MARKET-A", 0.95)

	sig := s.GenerateSignal(marketData("MARKET-A", flatPrices(0.92, 25)), now)

	if sig.Type != domain.SignalHold {
		t.Fatalf("signal = %q, want hold for an extreme favorite", sig.Type)
	}
	if sig.Metadata["reason"] != "extreme_probability" {
		t.Errorf("reason = %q, want extreme_probability", sig.Metadata["reason"])
	}
}

func TestPredictionExpectedValue(t *testing.T) {
	s := NewPredictionValue(PredictionValue{})

	// True 70% vs market 60%: EV = 0.70*0.40 - 0.30*0.60 = 0.10.
	ev := s.ExpectedValue(0.70, 0.60, "yes")
	if math.Abs(ev-0.10) > 0.01 {
		t.Errorf("yes EV = %v, want 0.10", ev)
	}

	// Symmetric no side: true 30% vs no-price 0.40.
	ev = s.ExpectedValue(0.30, 0.60, "no")
	if math.Abs(ev-0.30) > 0.01 {
		t.Errorf("no EV = %v, want 0.30", ev)
	}
}

func TestPredictionFindOpportunities(t *testing.T) {
	s := NewPredictionValue(PredictionValue{MinEdge: 0.05, MinVolume: 1000})
	s.SetProbabilityEstimate("A", 0.70)
	s.SetProbabilityEstimate("B", 0.40)
	s.SetProbabilityEstimate("C", 0.52)

	markets := []EventMarket{
		{Symbol: "A", YesPrice: 0.55, Volume: 5000}, // +15% edge
		{Symbol: "B", YesPrice: 0.50, Volume: 5000}, // -10% edge
		{Symbol: "C", YesPrice: 0.50, Volume: 5000}, // 2%: below floor
		{Symbol: "D", YesPrice: 0.30, Volume: 5000}, // no estimate
		{Symbol: "A", YesPrice: 0.55, Volume: 10},   // illiquid
	}

	opps := s.FindOpportunities(markets)
	if len(opps) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(opps))
	}
	if opps[0].Symbol != "A" || opps[0].Action != "buy_yes" {
		t.Errorf("best opportunity = %+v, want A buy_yes", opps[0])
	}
	if opps[1].Symbol != "B" || opps[1].Action != "buy_no" {
		t.Errorf("second opportunity = %+v, want B buy_no", opps[1])
	}
}
