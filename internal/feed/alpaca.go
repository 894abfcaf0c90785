// Package feed pulls market data from external providers into the bar
// store. The Alpaca feed fetches daily OHLCV bars in symbol batches.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/util"
)

// AlpacaFeed fetches daily bars for US equities via the Alpaca market-data
// API and writes them through a BarStore.
type AlpacaFeed struct {
	client    *marketdata.Client
	store     store.BarStore
	batchSize int
	limiter   *util.RateLimiter
	log       *slog.Logger
}

// NewAlpacaFeed creates an AlpacaFeed with the given credentials, target
// store, and batch parameters.
func NewAlpacaFeed(apiKey, apiSecret, dataURL string, s store.BarStore, batchSize, rateLimitPerMin int) *AlpacaFeed {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}

	return &AlpacaFeed{
		client:    marketdata.NewClient(opts),
		store:     s,
		batchSize: batchSize,
		limiter:   util.NewRateLimiter(rateLimitPerMin),
		log:       slog.Default().With("feed", "alpaca-daily"),
	}
}

// Fetch pulls daily bars for the given symbols over [start, end] and writes
// them to the store. Symbols are fetched in batches; a failed batch is
// retried with backoff and aborts the fetch if it keeps failing.
func (f *AlpacaFeed) Fetch(ctx context.Context, symbols []string, start, end time.Time) (int, error) {
	total := 0
	for i := 0; i < len(symbols); i += f.batchSize {
		hi := min(i+f.batchSize, len(symbols))
		batch := symbols[i:hi]

		if err := f.limiter.Wait(ctx); err != nil {
			return total, err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var ferr error
			bars, ferr = f.fetchMultiBars(batch, start, end)
			return ferr
		})
		if err != nil {
			return total, fmt.Errorf("fetching batch %d-%d: %w", i, hi, err)
		}

		if len(bars) > 0 {
			if err := f.store.WriteBars(ctx, bars); err != nil {
				return total, fmt.Errorf("writing batch %d-%d: %w", i, hi, err)
			}
			total += len(bars)
		}

		f.log.Info("batch done", "symbols", len(batch), "bars", len(bars))
	}
	return total, nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API
// call and normalizes them into domain bars.
func (f *AlpacaFeed) fetchMultiBars(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	multiBars, err := f.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
