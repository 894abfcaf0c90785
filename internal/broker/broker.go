// Package broker defines the execution-collaborator boundary: submitting
// orders and reading account state, with an Alpaca-backed implementation for
// live paper trading and an in-memory simulator for everything else.
package broker

import (
	"context"

	"tradesim/internal/domain"
)

// Broker abstracts brokerage operations for order execution and account
// state.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitOrder sends an order for execution and returns the resulting
	// fill.
	SubmitOrder(ctx context.Context, order domain.Order) (domain.Trade, error)

	// GetPositions returns all current positions held at the brokerage.
	GetPositions(ctx context.Context) ([]Position, error)

	// GetAccount returns a snapshot of the account's financial state.
	GetAccount(ctx context.Context) (Account, error)
}

// Account is a snapshot of brokerage account state.
type Account struct {
	Cash        float64
	Equity      float64
	BuyingPower float64
}

// Position is a brokerage-held position snapshot.
type Position struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	CurrentPrice  float64
}
