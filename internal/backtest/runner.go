package backtest

import (
	"context"
	"sync"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// RunSpec is one independent backtest to execute: a strategy over a
// symbol's bars with its own capital and options.
type RunSpec struct {
	Strategy       strategy.Strategy
	Symbol         string
	Bars           []domain.Bar
	InitialCapital float64
	Options        []Option
}

// RunOutcome pairs a spec's result with its error. Exactly one of Result
// and Err is set.
type RunOutcome struct {
	Symbol   string
	Strategy string
	Result   *Result
	Err      error
}

// RunMany executes the specs concurrently, one goroutine per spec. Each run
// owns its portfolio and risk state, so the only coordination is collecting
// outcomes. Results are returned in spec order. A cancelled context marks
// the not-yet-started runs with the context error.
func RunMany(ctx context.Context, specs []RunSpec) []RunOutcome {
	outcomes := make([]RunOutcome, len(specs))
	var wg sync.WaitGroup

	for i, spec := range specs {
		outcomes[i] = RunOutcome{Symbol: spec.Symbol, Strategy: spec.Strategy.Name()}

		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, spec RunSpec) {
			defer wg.Done()
			bt := New(spec.Strategy, spec.InitialCapital, spec.Options...)
			res, err := bt.Run(spec.Bars, spec.Symbol)
			outcomes[i].Result = res
			outcomes[i].Err = err
		}(i, spec)
	}

	wg.Wait()
	return outcomes
}
