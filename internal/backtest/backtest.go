// Package backtest drives strategy simulations over historical bars. The
// event-driven engine replays one bar at a time through a
// mark -> gate -> signal -> size -> execute -> record pipeline against a
// private portfolio and risk manager; a vectorized engine trades the same
// result shape for speed by skipping fill simulation entirely.
package backtest

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/indicator"
	"tradesim/internal/portfolio"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
)

const (
	// bootstrapFraction sizes trades at a fixed fraction of cash until
	// enough realized outcomes exist to estimate a Kelly edge.
	bootstrapFraction = 0.02
	// minSizingObservations is the realized win/loss count required before
	// Kelly sizing takes over from the bootstrap.
	minSizingObservations = 10
)

// Backtest runs one strategy over one symbol's history. Each run owns a
// private Portfolio and risk Manager; instances are not safe for concurrent
// use, but independent Backtests may run in parallel.
type Backtest struct {
	strategy       strategy.Strategy
	initialCapital float64
	riskManager    *risk.Manager
	commissionRate float64

	assetClass domain.AssetClass
}

// Option configures a Backtest.
type Option func(*Backtest)

// WithRiskManager overrides the default risk manager.
func WithRiskManager(m *risk.Manager) Option {
	return func(b *Backtest) { b.riskManager = m }
}

// WithCommissionRate overrides the default 0.1% commission rate.
func WithCommissionRate(rate float64) Option {
	return func(b *Backtest) { b.commissionRate = rate }
}

// WithAssetClass tags the market-data windows handed to the strategy.
func WithAssetClass(ac domain.AssetClass) Option {
	return func(b *Backtest) { b.assetClass = ac }
}

// New creates a Backtest for the given strategy and starting capital.
func New(s strategy.Strategy, initialCapital float64, opts ...Option) *Backtest {
	b := &Backtest{
		strategy:       s,
		initialCapital: initialCapital,
		commissionRate: portfolio.DefaultFeeRate,
		assetClass:     domain.AssetStock,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.riskManager == nil {
		b.riskManager = risk.NewManager(nil, risk.DefaultManagerConfig())
	}
	return b
}

// Run replays the bars through the strategy one at a time and returns the
// assembled result. Malformed input (non-chronological timestamps, OHLC out
// of range) fails fast; every per-bar condition short of that degrades to
// hold/no-trade.
func (b *Backtest) Run(bars []domain.Bar, symbol string) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars supplied for %s", symbol)
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("invalid price history for %s: %w", symbol, err)
	}

	pf := portfolio.New(b.initialCapital)
	pf.SetFeeRate(b.commissionRate)
	b.riskManager.Reset(b.initialCapital)

	// The strategy's audit log outlives a run; only entries appended during
	// this run belong to its result.
	sigStart := len(b.strategy.SignalHistory())

	// Realized outcome tally feeding the position sizer.
	var wins, losses []float64

	for i, bar := range bars {
		ts := bar.Timestamp
		price := bar.Close

		// MARK: revalue holdings before anything reads equity.
		pf.UpdatePrices(map[string]float64{symbol: price})

		// GATE: a denial skips the trading states but still records equity
		// so the return series has no gap.
		if !b.riskManager.CanTrade(pf.TotalEquity()) {
			pf.RecordEquity(ts)
			b.riskManager.UpdateState(pf.TotalEquity(), 0, pf.OpenPositions())
			continue
		}

		// SIGNAL
		md := domain.MarketData{
			Symbol:       symbol,
			AssetClass:   b.assetClass,
			Bars:         bars[:i+1],
			CurrentPrice: price,
		}
		sig := b.strategy.GenerateSignal(md, ts)
		b.strategy.RecordSignal(ts, sig)

		// SIZE
		qty := b.positionQty(sig, price, pf, wins, losses)

		// EXECUTE
		if sig.Type != domain.SignalHold && qty > 0 {
			if order, ok := b.orderFor(sig, qty, symbol, pf); ok {
				trade, err := pf.ExecuteOrder(order, price, ts)
				if err == nil && trade.Side == domain.OrderSideSell {
					if trade.RealizedPnL > 0 {
						wins = append(wins, trade.RealizedPnL)
					} else {
						losses = append(losses, -trade.RealizedPnL)
					}
				}
			}
		}

		// RECORD
		pf.RecordEquity(ts)
		b.riskManager.UpdateState(pf.TotalEquity(), 0, pf.OpenPositions())
	}

	return &Result{
		StrategyName:   b.strategy.Name(),
		Start:          bars[0].Timestamp,
		End:            bars[len(bars)-1].Timestamp,
		InitialCapital: b.initialCapital,
		FinalEquity:    pf.TotalEquity(),
		Metrics:        pf.Metrics(),
		EquityCurve:    pf.EquityHistory(),
		Trades:         pf.Trades(),
		Signals:        b.strategy.SignalHistory()[sigStart:],
	}, nil
}

// positionQty converts a signal into an order quantity. Until enough
// realized outcomes exist, trades are sized at a fixed fraction of cash;
// afterwards the risk manager's Kelly output, scaled by signal strength and
// confidence, sets the position value.
func (b *Backtest) positionQty(sig domain.Signal, price float64, pf *portfolio.Portfolio, wins, losses []float64) float64 {
	if sig.Type == domain.SignalHold || price <= 0 {
		return 0
	}

	n := len(wins) + len(losses)
	if n < minSizingObservations {
		return pf.Cash() * bootstrapFraction / price
	}

	winRate := float64(len(wins)) / float64(n)
	avgWin := indicator.Mean(wins)
	avgLoss := indicator.Mean(losses)
	if len(losses) == 0 {
		avgLoss = 1.0
	}

	value := b.riskManager.PositionSize(winRate, avgWin, avgLoss, pf.Cash(), 0)
	value *= sig.Strength * sig.Confidence
	return value / price
}

// orderFor maps a non-hold signal to a concrete order. Long buys the
// computed quantity. Short and close sell the entire held quantity; the
// simulator carries no short inventory, so a sell without a position is
// dropped.
func (b *Backtest) orderFor(sig domain.Signal, qty float64, symbol string, pf *portfolio.Portfolio) (domain.Order, bool) {
	switch sig.Type {
	case domain.SignalLong:
		return domain.Order{
			Symbol: symbol,
			Side:   domain.OrderSideBuy,
			Qty:    qty,
			Type:   domain.OrderTypeMarket,
		}, true
	case domain.SignalShort, domain.SignalClose:
		pos := pf.Position(symbol)
		if pos == nil {
			return domain.Order{}, false
		}
		return domain.Order{
			Symbol: symbol,
			Side:   domain.OrderSideSell,
			Qty:    pos.Qty,
			Type:   domain.OrderTypeMarket,
		}, true
	}
	return domain.Order{}, false
}
