package risk

// Manager wraps a PositionSizer with portfolio-level guards: a drawdown
// limit from the equity high-water mark, a daily loss limit, and a cap on
// concurrently open positions. State is updated exactly once per bar by the
// simulation loop and read-only everywhere else.
type Manager struct {
	sizer PositionSizer

	MaxDrawdownPct    float64 // stop trading at this drawdown from peak
	DailyLossLimitPct float64 // stop trading at this daily loss vs peak
	MaxOpenPositions  int
	TargetVolatility  float64 // target per-position volatility for derating

	// State, mutated only via UpdateState.
	peakEquity    float64
	dailyPnL      float64
	openPositions int
}

// ManagerConfig holds the guard thresholds for a Manager.
type ManagerConfig struct {
	MaxDrawdownPct    float64
	DailyLossLimitPct float64
	MaxOpenPositions  int
	TargetVolatility  float64
}

// DefaultManagerConfig mirrors the conservative defaults the engine ships
// with: 15% max drawdown, 3% daily loss, 10 open positions, 2% target vol.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxDrawdownPct:    0.15,
		DailyLossLimitPct: 0.03,
		MaxOpenPositions:  10,
		TargetVolatility:  0.02,
	}
}

// NewManager creates a Manager around the given sizer. A nil sizer gets the
// default quarter-Kelly.
func NewManager(sizer PositionSizer, cfg ManagerConfig) *Manager {
	if sizer == nil {
		sizer = DefaultKelly()
	}
	return &Manager{
		sizer:             sizer,
		MaxDrawdownPct:    cfg.MaxDrawdownPct,
		DailyLossLimitPct: cfg.DailyLossLimitPct,
		MaxOpenPositions:  cfg.MaxOpenPositions,
		TargetVolatility:  cfg.TargetVolatility,
	}
}

// UpdateState records the per-bar state snapshot. The equity high-water mark
// is monotone non-decreasing: a single max against the previous value.
func (m *Manager) UpdateState(currentEquity, dailyPnL float64, openPositions int) {
	if currentEquity > m.peakEquity {
		m.peakEquity = currentEquity
	}
	m.dailyPnL = dailyPnL
	m.openPositions = openPositions
}

// PeakEquity returns the equity high-water mark.
func (m *Manager) PeakEquity() float64 { return m.peakEquity }

// Reset clears the guard state and seeds the high-water mark at
// initialEquity. Called at the start of every run so a manager reused across
// runs carries nothing over from the previous one.
func (m *Manager) Reset(initialEquity float64) {
	m.peakEquity = initialEquity
	m.dailyPnL = 0
	m.openPositions = 0
}

// CurrentDrawdown returns the fractional decline from the peak, floored at
// zero when no peak has been recorded.
func (m *Manager) CurrentDrawdown(currentEquity float64) float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	return (m.peakEquity - currentEquity) / m.peakEquity
}

// CanTrade reports whether trading is permitted given the current equity.
// A denial is an ordinary gate, not an error; the simulation loop skips the
// bar's trading states and still records equity.
func (m *Manager) CanTrade(currentEquity float64) bool {
	if m.CurrentDrawdown(currentEquity) >= m.MaxDrawdownPct {
		return false
	}
	if m.peakEquity > 0 {
		dailyLossPct := -m.dailyPnL / m.peakEquity
		if dailyLossPct >= m.DailyLossLimitPct {
			return false
		}
	}
	if m.openPositions >= m.MaxOpenPositions {
		return false
	}
	return true
}

// PositionSize returns the risk-adjusted dollar allocation: the sizer's
// output derated by the drawdown multiplier max(0, 1-dd/MaxDrawdownPct) and,
// when volatility is supplied (> 0), by min(1, TargetVolatility/volatility).
// Higher realized volatility shrinks the position, never grows it.
func (m *Manager) PositionSize(winRate, avgWin, avgLoss, capital, volatility float64) float64 {
	base := m.sizer.PositionSize(winRate, avgWin, avgLoss, capital)

	ddMult := 1.0
	if m.MaxDrawdownPct > 0 {
		ddMult = 1.0 - m.CurrentDrawdown(capital)/m.MaxDrawdownPct
		if ddMult < 0 {
			ddMult = 0
		}
	}

	volMult := 1.0
	if volatility > 0 && m.TargetVolatility > 0 {
		volMult = m.TargetVolatility / volatility
		if volMult > 1 {
			volMult = 1
		}
	}

	return base * ddMult * volMult
}

// Report is a point-in-time risk status snapshot.
type Report struct {
	CurrentEquity      float64
	PeakEquity         float64
	CurrentDrawdownPct float64
	MaxDrawdownPct     float64
	DailyPnL           float64
	DailyLossLimitPct  float64
	OpenPositions      int
	MaxOpenPositions   int
	CanTrade           bool
}

// RiskReport returns the current risk status for the given equity.
func (m *Manager) RiskReport(currentEquity float64) Report {
	return Report{
		CurrentEquity:      currentEquity,
		PeakEquity:         m.peakEquity,
		CurrentDrawdownPct: m.CurrentDrawdown(currentEquity) * 100,
		MaxDrawdownPct:     m.MaxDrawdownPct * 100,
		DailyPnL:           m.dailyPnL,
		DailyLossLimitPct:  m.DailyLossLimitPct * 100,
		OpenPositions:      m.openPositions,
		MaxOpenPositions:   m.MaxOpenPositions,
		CanTrade:           m.CanTrade(currentEquity),
	}
}
