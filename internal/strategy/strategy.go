// Package strategy defines the Strategy interface for signal generators and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"sort"
	"time"

	"tradesim/internal/domain"
)

// Strategy is the interface that all signal generators must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// GenerateSignal produces one trading intent for the bar at ts, given
	// the market history available up to that bar. Insufficient history or
	// unmet data preconditions yield a hold signal, never an error.
	GenerateSignal(md domain.MarketData, ts time.Time) domain.Signal

	// RecordSignal appends one (timestamp, signal) observation to the
	// strategy's own audit log. Called once per bar by the simulation loop.
	RecordSignal(ts time.Time, sig domain.Signal)

	// SignalHistory returns the append-only signal audit log.
	SignalHistory() []SignalRecord
}

// SignalRecord is one entry of a strategy's signal audit log.
type SignalRecord struct {
	Timestamp time.Time
	Signal    domain.Signal
}

// Base provides the signal history shared by all strategy implementations.
// Embed it and implement Name and GenerateSignal.
type Base struct {
	history []SignalRecord
}

// RecordSignal appends to the audit log. The log is write-once per bar and
// never truncated.
func (b *Base) RecordSignal(ts time.Time, sig domain.Signal) {
	b.history = append(b.history, SignalRecord{Timestamp: ts, Signal: sig})
}

// SignalHistory returns the audit log.
func (b *Base) SignalHistory() []SignalRecord {
	return b.history
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
