package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/strategy"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy         TEXT NOT NULL,
	start_ts         INTEGER NOT NULL,
	end_ts           INTEGER NOT NULL,
	initial_capital  REAL NOT NULL,
	final_equity     REAL NOT NULL,
	total_return_pct REAL NOT NULL,
	sharpe_ratio     REAL NOT NULL,
	sortino_ratio    REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	win_rate         REAL NOT NULL,
	profit_factor    REAL NOT NULL,
	avg_trade_pnl    REAL NOT NULL,
	num_trades       INTEGER NOT NULL,
	created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id       INTEGER NOT NULL REFERENCES runs(id),
	ts           INTEGER NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	qty          REAL NOT NULL,
	price        REAL NOT NULL,
	fees         REAL NOT NULL,
	realized_pnl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	ts         INTEGER NOT NULL,
	type       TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	strength   REAL NOT NULL,
	confidence REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a run with its trades and signal history in a single
// transaction and returns the assigned run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *backtest.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	m := res.Metrics
	r, err := tx.ExecContext(ctx, `
		INSERT INTO runs (strategy, start_ts, end_ts, initial_capital, final_equity,
			total_return_pct, sharpe_ratio, sortino_ratio, max_drawdown_pct,
			win_rate, profit_factor, avg_trade_pnl, num_trades, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.StrategyName, res.Start.UnixMilli(), res.End.UnixMilli(),
		res.InitialCapital, res.FinalEquity,
		m["total_return_pct"], m["sharpe_ratio"], m["sortino_ratio"], m["max_drawdown_pct"],
		m["win_rate"], m["profit_factor"], m["avg_trade_pnl"], int64(m["num_trades"]),
		time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, t := range res.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trades (run_id, ts, symbol, side, qty, price, fees, realized_pnl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.Timestamp.UnixMilli(), t.Symbol, string(t.Side),
			t.Qty, t.Price, t.Fees, t.RealizedPnL); err != nil {
			return 0, fmt.Errorf("inserting trade: %w", err)
		}
	}

	for _, rec := range res.Signals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signals (run_id, ts, type, symbol, strength, confidence)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, rec.Timestamp.UnixMilli(), string(rec.Signal.Type), rec.Signal.Symbol,
			rec.Signal.Strength, rec.Signal.Confidence); err != nil {
			return 0, fmt.Errorf("inserting signal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// GetRun retrieves a run by ID, including its trades and signal history. The
// equity curve is not persisted and comes back empty.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*backtest.Result, error) {
	res := &backtest.Result{}
	var startMs, endMs, numTrades int64
	var totalReturn, sharpe, sortino, maxDD, winRate, profitFactor, avgTradePnL float64
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy, start_ts, end_ts, initial_capital, final_equity,
			total_return_pct, sharpe_ratio, sortino_ratio, max_drawdown_pct,
			win_rate, profit_factor, avg_trade_pnl, num_trades
		FROM runs WHERE id = ?`, id).Scan(
		&res.StrategyName, &startMs, &endMs, &res.InitialCapital, &res.FinalEquity,
		&totalReturn, &sharpe, &sortino, &maxDD,
		&winRate, &profitFactor, &avgTradePnL, &numTrades)
	if err != nil {
		return nil, fmt.Errorf("loading run %d: %w", id, err)
	}
	res.Start = time.UnixMilli(startMs).UTC()
	res.End = time.UnixMilli(endMs).UTC()
	res.Metrics = map[string]float64{
		"total_return_pct": totalReturn,
		"sharpe_ratio":     sharpe,
		"sortino_ratio":    sortino,
		"max_drawdown_pct": maxDD,
		"win_rate":         winRate,
		"profit_factor":    profitFactor,
		"avg_trade_pnl":    avgTradePnL,
		"num_trades":       float64(numTrades),
	}

	trades, err := s.loadTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Trades = trades

	signals, err := s.loadSignals(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Signals = signals

	return res, nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, start_ts, end_ts, initial_capital, final_equity,
			total_return_pct, num_trades, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var startMs, endMs, createdMs int64
		if err := rows.Scan(&r.ID, &r.StrategyName, &startMs, &endMs,
			&r.InitialCapital, &r.FinalEquity, &r.TotalReturnPct,
			&r.NumTrades, &createdMs); err != nil {
			return nil, err
		}
		r.Start = time.UnixMilli(startMs).UTC()
		r.End = time.UnixMilli(endMs).UTC()
		r.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadTrades(ctx context.Context, runID int64) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, symbol, side, qty, price, fees, realized_pnl
		FROM trades WHERE run_id = ? ORDER BY ts`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var ms int64
		var side string
		if err := rows.Scan(&ms, &t.Symbol, &side, &t.Qty, &t.Price, &t.Fees, &t.RealizedPnL); err != nil {
			return nil, err
		}
		t.Timestamp = time.UnixMilli(ms).UTC()
		t.Side = domain.OrderSide(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadSignals(ctx context.Context, runID int64) ([]strategy.SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, type, symbol, strength, confidence
		FROM signals WHERE run_id = ? ORDER BY ts`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []strategy.SignalRecord
	for rows.Next() {
		var rec strategy.SignalRecord
		var ms int64
		var typ string
		if err := rows.Scan(&ms, &typ, &rec.Signal.Symbol,
			&rec.Signal.Strength, &rec.Signal.Confidence); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ms).UTC()
		rec.Signal.Type = domain.SignalType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}
