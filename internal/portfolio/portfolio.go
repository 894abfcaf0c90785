// Package portfolio is the authoritative ledger of a simulation run: cash,
// open positions, the append-only trade log, and the equity time series.
// Cash and position quantity are the only mutable state of the system and
// both change exclusively through ExecuteOrder.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/indicator"
)

// DefaultFeeRate is the fixed fee charged as a fraction of notional value.
const DefaultFeeRate = 0.001

// Position is a holding in a single symbol with weighted-average cost.
// Owned exclusively by the Portfolio; removed from the map the moment its
// quantity reaches zero, so a symbol never appears with quantity <= 0.
type Position struct {
	Symbol       string
	Qty          float64
	AvgCost      float64
	CurrentPrice float64
}

// MarketValue is the position's value at the current mark price.
func (p *Position) MarketValue() float64 { return p.Qty * p.CurrentPrice }

// CostBasis is the total weighted-average cost of the position.
func (p *Position) CostBasis() float64 { return p.Qty * p.AvgCost }

// UnrealizedPnL is market value minus cost basis.
func (p *Position) UnrealizedPnL() float64 { return p.MarketValue() - p.CostBasis() }

// UnrealizedPnLPct is the unrealized P&L as a percentage of cost basis,
// 0 when the cost basis is zero.
func (p *Position) UnrealizedPnLPct() float64 {
	cb := p.CostBasis()
	if cb == 0 {
		return 0
	}
	return p.UnrealizedPnL() / cb * 100
}

// Portfolio tracks cash, positions, trades, and equity over one run. It is
// not safe for concurrent use: the simulation model is a single logical
// writer per run.
type Portfolio struct {
	initialCapital float64
	cash           float64
	feeRate        float64
	positions      map[string]*Position
	trades         []domain.Trade
	equityHistory  []domain.EquityPoint
}

// New creates a Portfolio holding the initial capital entirely in cash.
func New(initialCapital float64) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		feeRate:        DefaultFeeRate,
		positions:      make(map[string]*Position),
	}
}

// SetFeeRate overrides the default fee rate. Must be called before any
// order is executed.
func (p *Portfolio) SetFeeRate(rate float64) { p.feeRate = rate }

// InitialCapital returns the starting capital of the run.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// Position returns the open position for a symbol, or nil if none is held.
func (p *Portfolio) Position(symbol string) *Position { return p.positions[symbol] }

// OpenPositions returns the number of currently open positions.
func (p *Portfolio) OpenPositions() int { return len(p.positions) }

// Trades returns the append-only trade log.
func (p *Portfolio) Trades() []domain.Trade { return p.trades }

// EquityHistory returns the append-only (timestamp, equity) series.
func (p *Portfolio) EquityHistory() []domain.EquityPoint { return p.equityHistory }

// TotalMarketValue is the sum of the market value of all open positions.
func (p *Portfolio) TotalMarketValue() float64 {
	var total float64
	for _, pos := range p.positions {
		total += pos.MarketValue()
	}
	return total
}

// TotalEquity is cash plus total position market value. The ledger
// invariant is that this equals the recorded equity at every observation.
func (p *Portfolio) TotalEquity() float64 {
	return p.cash + p.TotalMarketValue()
}

// TotalUnrealizedPnL is the unrealized P&L across all open positions.
func (p *Portfolio) TotalUnrealizedPnL() float64 {
	var total float64
	for _, pos := range p.positions {
		total += pos.UnrealizedPnL()
	}
	return total
}

// ExecuteOrder applies an assumed-filled order to the ledger at the given
// fill price: fees are a fixed fraction of notional, a buy opens or extends
// a position at weighted-average cost, a sell reduces it and removes it when
// quantity reaches zero. Cash moves by value+fees on buys and value-fees on
// sells. Sell trades carry the realized P&L against the average cost at
// execution time.
func (p *Portfolio) ExecuteOrder(order domain.Order, fillPrice float64, ts time.Time) (domain.Trade, error) {
	if order.Qty <= 0 {
		return domain.Trade{}, fmt.Errorf("order quantity must be positive, got %g", order.Qty)
	}
	if fillPrice <= 0 {
		return domain.Trade{}, fmt.Errorf("fill price must be positive, got %g", fillPrice)
	}

	value := order.Qty * fillPrice
	fees := value * p.feeRate

	trade := domain.Trade{
		Timestamp: ts,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Qty:       order.Qty,
		Price:     fillPrice,
		Fees:      fees,
	}

	switch order.Side {
	case domain.OrderSideBuy:
		p.applyBuy(&trade)
	case domain.OrderSideSell:
		if err := p.applySell(&trade); err != nil {
			return domain.Trade{}, err
		}
	default:
		return domain.Trade{}, fmt.Errorf("unknown order side %q", order.Side)
	}

	p.trades = append(p.trades, trade)
	return trade, nil
}

func (p *Portfolio) applyBuy(trade *domain.Trade) {
	pos, held := p.positions[trade.Symbol]
	if !held {
		p.positions[trade.Symbol] = &Position{
			Symbol:       trade.Symbol,
			Qty:          trade.Qty,
			AvgCost:      trade.Price,
			CurrentPrice: trade.Price,
		}
	} else {
		totalCost := pos.CostBasis() + trade.Value()
		totalQty := pos.Qty + trade.Qty
		pos.AvgCost = totalCost / totalQty
		pos.Qty = totalQty
		pos.CurrentPrice = trade.Price
	}
	p.cash -= trade.Value() + trade.Fees
}

func (p *Portfolio) applySell(trade *domain.Trade) error {
	pos, held := p.positions[trade.Symbol]
	if !held {
		return fmt.Errorf("no position in %s to sell", trade.Symbol)
	}
	if trade.Qty > pos.Qty+1e-9 {
		return fmt.Errorf("sell %g exceeds position %g in %s", trade.Qty, pos.Qty, trade.Symbol)
	}

	trade.RealizedPnL = (trade.Price - pos.AvgCost) * trade.Qty

	pos.Qty -= trade.Qty
	pos.CurrentPrice = trade.Price
	if pos.Qty <= 1e-9 {
		delete(p.positions, trade.Symbol)
	}

	p.cash += trade.Value() - trade.Fees
	return nil
}

// UpdatePrices marks every held position to the supplied prices. Symbols
// without an open position are ignored.
func (p *Portfolio) UpdatePrices(prices map[string]float64) {
	for symbol, price := range prices {
		if pos, held := p.positions[symbol]; held {
			pos.CurrentPrice = price
		}
	}
}

// RecordEquity appends the current total equity to the history. The
// simulation loop calls this exactly once per bar, including bars with no
// trade, so the return series has no missing observations.
func (p *Portfolio) RecordEquity(ts time.Time) {
	p.equityHistory = append(p.equityHistory, domain.EquityPoint{
		Timestamp: ts,
		Equity:    p.TotalEquity(),
	})
}

// Returns computes the period-over-period returns of the equity history.
// Fewer than 2 observations yield nil.
func (p *Portfolio) Returns() []float64 {
	if len(p.equityHistory) < 2 {
		return nil
	}
	equities := make([]float64, len(p.equityHistory))
	for i, pt := range p.equityHistory {
		equities[i] = pt.Equity
	}
	return indicator.Returns(equities)
}

// MetricKeys is the fixed key set of the metrics map, the stable contract
// with any result consumer.
var MetricKeys = []string{
	"total_return_pct",
	"sharpe_ratio",
	"sortino_ratio",
	"max_drawdown_pct",
	"win_rate",
	"profit_factor",
	"avg_trade_pnl",
	"num_trades",
}

// Metrics derives performance metrics from the equity history and trade
// log. Every ratio defaults to 0 when its denominator is zero or the
// history is too short: an undersized sample is a degenerate but valid
// result, not an error.
func (p *Portfolio) Metrics() map[string]float64 {
	m := map[string]float64{
		"total_return_pct": 0,
		"sharpe_ratio":     0,
		"sortino_ratio":    0,
		"max_drawdown_pct": 0,
		"win_rate":         0,
		"profit_factor":    0,
		"avg_trade_pnl":    0,
		"num_trades":       float64(len(p.trades)),
	}

	returns := p.Returns()
	if len(returns) == 0 {
		return m
	}

	totalReturn := (p.TotalEquity() - p.initialCapital) / p.initialCapital
	m["total_return_pct"] = totalReturn * 100

	m["sharpe_ratio"] = Sharpe(returns)
	m["sortino_ratio"] = Sortino(returns)
	m["max_drawdown_pct"] = p.maxDrawdown() * 100

	wins, grossProfit, grossLoss := 0, 0.0, 0.0
	for _, t := range p.trades {
		if t.Side != domain.OrderSideSell {
			continue
		}
		if t.RealizedPnL > 0 {
			wins++
			grossProfit += t.RealizedPnL
		} else {
			grossLoss += -t.RealizedPnL
		}
	}
	if len(p.trades) > 0 {
		m["win_rate"] = float64(wins) / float64(len(p.trades)) * 100
		m["avg_trade_pnl"] = totalReturn * p.initialCapital / float64(len(p.trades))
	}
	if grossLoss > 0 {
		m["profit_factor"] = grossProfit / grossLoss
	}

	return m
}

// Sharpe is mean/population-stdev of returns annualized by sqrt(252), 0 for
// fewer than 2 observations or zero variance.
func Sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := indicator.Std(returns)
	if std == 0 {
		return 0
	}
	return indicator.Mean(returns) / std * math.Sqrt(252)
}

// Sortino is like Sharpe but the denominator is the population stdev of
// negative returns only.
func Sortino(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	std := indicator.Std(downside)
	if std == 0 {
		return 0
	}
	return indicator.Mean(returns) / std * math.Sqrt(252)
}

// maxDrawdown is the largest fractional decline from a running equity peak.
func (p *Portfolio) maxDrawdown() float64 {
	equities := make([]float64, len(p.equityHistory))
	for i, pt := range p.equityHistory {
		equities[i] = pt.Equity
	}
	return MaxDrawdown(equities)
}

// MaxDrawdown is the largest fractional decline from a running peak of the
// equity series.
func MaxDrawdown(equities []float64) float64 {
	var peak, maxDD float64
	for _, e := range equities {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
