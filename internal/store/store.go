// Package store persists simulation inputs and outputs: OHLCV bars in
// Parquet files and completed backtest runs in SQLite.
package store

import (
	"context"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// ResultStore persists completed backtest runs with their trades and
// signal history.
type ResultStore interface {
	// SaveRun persists a run and returns its assigned ID.
	SaveRun(ctx context.Context, res *backtest.Result) (int64, error)

	// GetRun retrieves a run by ID, including trades and signals.
	GetRun(ctx context.Context, id int64) (*backtest.Result, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID             int64
	StrategyName   string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalEquity    float64
	TotalReturnPct float64
	NumTrades      int
	CreatedAt      time.Time
}
