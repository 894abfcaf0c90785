package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradesim/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*Simulator)(nil)

// Simulator implements Broker with assumed fills against the latest quoted
// price, tracking cash and positions in memory. Market orders fill at the
// quote, limit orders at the limit price. Safe for concurrent use.
type Simulator struct {
	mu        sync.Mutex
	cash      float64
	feeRate   float64
	quotes    map[string]float64
	positions map[string]*Position
}

// NewSimulator creates a Simulator with the given starting cash and
// commission rate.
func NewSimulator(cash, feeRate float64) *Simulator {
	return &Simulator{
		cash:      cash,
		feeRate:   feeRate,
		quotes:    make(map[string]float64),
		positions: make(map[string]*Position),
	}
}

// Name returns "simulator".
func (b *Simulator) Name() string {
	return "simulator"
}

// SetQuote records the latest price for a symbol. Market orders fill at
// this price.
func (b *Simulator) SetQuote(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = price
}

// SubmitOrder fills the order immediately at the quoted or limit price.
func (b *Simulator) SubmitOrder(_ context.Context, order domain.Order) (domain.Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if order.Qty <= 0 {
		return domain.Trade{}, fmt.Errorf("order quantity %g must be positive", order.Qty)
	}

	price := order.LimitPrice
	if order.Type == domain.OrderTypeMarket {
		q, ok := b.quotes[order.Symbol]
		if !ok {
			return domain.Trade{}, fmt.Errorf("no quote for %s", order.Symbol)
		}
		price = q
	}
	if price <= 0 {
		return domain.Trade{}, fmt.Errorf("fill price %g must be positive", price)
	}

	value := order.Qty * price
	fees := value * b.feeRate
	trade := domain.Trade{
		Timestamp: time.Now().UTC(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Qty:       order.Qty,
		Price:     price,
		Fees:      fees,
	}

	switch order.Side {
	case domain.OrderSideBuy:
		if value+fees > b.cash {
			return domain.Trade{}, fmt.Errorf("insufficient cash for %s: need %.2f, have %.2f", order.Symbol, value+fees, b.cash)
		}
		b.cash -= value + fees
		pos := b.positions[order.Symbol]
		if pos == nil {
			b.positions[order.Symbol] = &Position{
				Symbol: order.Symbol, Qty: order.Qty, AvgEntryPrice: price, CurrentPrice: price,
			}
		} else {
			totalCost := pos.AvgEntryPrice*pos.Qty + value
			pos.Qty += order.Qty
			pos.AvgEntryPrice = totalCost / pos.Qty
			pos.CurrentPrice = price
		}

	case domain.OrderSideSell:
		pos := b.positions[order.Symbol]
		if pos == nil || pos.Qty < order.Qty {
			return domain.Trade{}, fmt.Errorf("insufficient position in %s to sell %g", order.Symbol, order.Qty)
		}
		trade.RealizedPnL = (price - pos.AvgEntryPrice) * order.Qty
		b.cash += value - fees
		pos.Qty -= order.Qty
		pos.CurrentPrice = price
		if pos.Qty <= 1e-9 {
			delete(b.positions, order.Symbol)
		}

	default:
		return domain.Trade{}, fmt.Errorf("unsupported order side %q", order.Side)
	}

	return trade, nil
}

// GetPositions returns copies of all simulated positions with current
// prices applied from the latest quotes.
func (b *Simulator) GetPositions(_ context.Context) ([]Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		cp := *p
		if q, ok := b.quotes[p.Symbol]; ok {
			cp.CurrentPrice = q
		}
		out = append(out, cp)
	}
	return out, nil
}

// GetAccount returns the simulated account state: cash plus marked
// positions.
func (b *Simulator) GetAccount(_ context.Context) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for _, p := range b.positions {
		price := p.CurrentPrice
		if q, ok := b.quotes[p.Symbol]; ok {
			price = q
		}
		equity += p.Qty * price
	}
	return Account{Cash: b.cash, Equity: equity, BuyingPower: b.cash}, nil
}
