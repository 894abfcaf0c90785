package broker

import (
	"context"
	"fmt"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker implements Broker against the Alpaca trading API. Point
// BaseURL at the paper endpoint for paper trading.
type AlpacaBroker struct {
	client *alpacaapi.Client
}

// NewAlpacaBroker creates an AlpacaBroker with the given credentials and API
// endpoint.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	return &AlpacaBroker{
		client: alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// SubmitOrder places a day order via the Alpaca API. The returned trade
// carries the filled quantity and average price when the API reports a
// fill, otherwise the requested quantity at the limit price.
func (b *AlpacaBroker) SubmitOrder(_ context.Context, order domain.Order) (domain.Trade, error) {
	qty := decimal.NewFromFloat(order.Qty)
	req := alpacaapi.PlaceOrderRequest{
		Symbol:      order.Symbol,
		Qty:         &qty,
		Side:        alpacaapi.Side(order.Side),
		TimeInForce: alpacaapi.Day,
		Type:        alpacaapi.OrderType(order.Type),
	}
	if order.Type == domain.OrderTypeLimit {
		limit := decimal.NewFromFloat(order.LimitPrice)
		req.LimitPrice = &limit
	}

	placed, err := b.client.PlaceOrder(req)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("placing %s order for %s: %w", order.Side, order.Symbol, err)
	}

	trade := domain.Trade{
		Symbol: placed.Symbol,
		Side:   order.Side,
		Qty:    order.Qty,
		Price:  order.LimitPrice,
	}
	if placed.FilledAt != nil {
		trade.Timestamp = *placed.FilledAt
	} else {
		trade.Timestamp = placed.CreatedAt
	}
	if !placed.FilledQty.IsZero() {
		trade.Qty = placed.FilledQty.InexactFloat64()
	}
	if placed.FilledAvgPrice != nil {
		trade.Price = placed.FilledAvgPrice.InexactFloat64()
	}
	return trade, nil
}

// GetPositions returns all current positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(_ context.Context) ([]Position, error) {
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}

	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		pos := Position{
			Symbol:        p.Symbol,
			Qty:           p.Qty.InexactFloat64(),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
		}
		if p.CurrentPrice != nil {
			pos.CurrentPrice = p.CurrentPrice.InexactFloat64()
		}
		out = append(out, pos)
	}
	return out, nil
}

// GetAccount returns the current account state from the Alpaca API.
func (b *AlpacaBroker) GetAccount(_ context.Context) (Account, error) {
	acct, err := b.client.GetAccount()
	if err != nil {
		return Account{}, fmt.Errorf("fetching account: %w", err)
	}
	return Account{
		Cash:        acct.Cash.InexactFloat64(),
		Equity:      acct.Equity.InexactFloat64(),
		BuyingPower: acct.BuyingPower.InexactFloat64(),
	}, nil
}
