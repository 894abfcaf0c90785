// Package domain defines the shared value objects of the simulation core:
// OHLCV bars, market-data windows, trading signals, orders, and executed
// trades. Types here carry no behaviour beyond derived accessors.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// AssetClass tags the kind of instrument a market-data window describes.
type AssetClass string

const (
	AssetStock      AssetClass = "stock"
	AssetCrypto     AssetClass = "crypto"
	AssetPrediction AssetClass = "prediction" // event contracts priced 0-1
)

// SignalType is the directional intent produced by a strategy for one bar.
type SignalType string

const (
	SignalLong  SignalType = "long"
	SignalShort SignalType = "short"
	SignalClose SignalType = "close"
	SignalHold  SignalType = "hold"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV observation for a fixed time interval.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// MarketData is the read-only view of a symbol's history handed to a
// strategy each simulation step. Bars holds every bar up to "now", ordered
// by timestamp; the window is rebuilt per step and never mutated.
type MarketData struct {
	Symbol       string
	AssetClass   AssetClass
	Bars         []Bar
	CurrentPrice float64
	Bid          float64
	Ask          float64
}

// Closes returns the close price of every bar in the window.
func (md MarketData) Closes() []float64 {
	closes := make([]float64, len(md.Bars))
	for i, b := range md.Bars {
		closes[i] = b.Close
	}
	return closes
}

// ValidateBars checks the market-data collaborator contract: strictly
// increasing timestamps with no duplicates, and low <= {open, close} <= high
// for every bar. A violation is a fatal input error for the caller.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s is not after %s",
				i, b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
		if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
			return fmt.Errorf("bar %d (%s): OHLC out of range: open=%g high=%g low=%g close=%g",
				i, b.Timestamp.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Signals, orders, trades
// ---------------------------------------------------------------------------

// Signal is one bar's trading intent from a strategy. Strength and
// Confidence are both in [0, 1]; Metadata carries free-form diagnostics such
// as the reason a precondition forced a hold.
type Signal struct {
	Type        SignalType
	Symbol      string
	Strength    float64
	Confidence  float64
	TargetPrice float64
	StopLoss    float64
	Metadata    map[string]string
}

// Hold builds a hold signal with zero strength, optionally tagged with a
// reason. Unmet data preconditions are ordinary conditions, not faults.
func Hold(symbol, reason string) Signal {
	s := Signal{Type: SignalHold, Symbol: symbol}
	if reason != "" {
		s.Metadata = map[string]string{"reason": reason}
	}
	return s
}

// Order is the transient instruction derived from a signal plus a computed
// size. It is consumed immediately by portfolio execution.
type Order struct {
	Symbol     string
	Side       OrderSide
	Qty        float64
	Type       OrderType
	LimitPrice float64
}

// Trade is an executed fill. Immutable once created; trade logs are
// append-only. RealizedPnL is set on sell fills from the position's
// weighted-average cost at execution time.
type Trade struct {
	Timestamp   time.Time
	Symbol      string
	Side        OrderSide
	Qty         float64
	Price       float64
	Fees        float64
	RealizedPnL float64
}

// Value returns the trade notional (quantity x price).
func (t Trade) Value() float64 {
	return t.Qty * t.Price
}

// EquityPoint is one observation of the portfolio equity time series.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}
