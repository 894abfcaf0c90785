package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/risk"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
	"tradesim/internal/util"
)

func main() {
	strategyName := flag.String("strategy", "mean-reversion", "strategy to run (mean-reversion, low-vol-momentum, prediction-value)")
	symbol := flag.String("symbol", "AAPL", "symbol to backtest")
	startStr := flag.String("start", "2023-01-01", "start date (YYYY-MM-DD)")
	endStr := flag.String("end", "2023-12-31", "end date (YYYY-MM-DD)")
	source := flag.String("source", "synthetic", "bar source: parquet or synthetic")
	seed := flag.Int64("seed", 42, "seed for the synthetic bar series")
	save := flag.Bool("save", false, "save the run to the SQLite result store")
	list := flag.Bool("list", false, "list saved runs and exit")
	flag.Parse()

	cfgPath := "config/tradesim.yaml"
	if p := os.Getenv("TRADESIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = config.Default()
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	ctx := context.Background()

	if *list {
		listRuns(ctx, cfg)
		return
	}

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewMeanReversion(builtins.MeanReversion{}))
	registry.Register(builtins.NewLowVolMomentum(builtins.LowVolMomentum{}))
	registry.Register(builtins.NewPredictionValue(builtins.PredictionValue{}))

	strat, ok := registry.Get(*strategyName)
	if !ok {
		log.Fatalf("unknown strategy %q; available: %v", *strategyName, registry.List())
	}

	bars, err := loadBars(ctx, cfg, *source, *symbol, start, end, *seed)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("no bars for %s in [%s, %s]", *symbol, *startStr, *endStr)
	}

	sizer, err := risk.NewKellyCriterion(cfg.Risk.KellyFraction, cfg.Risk.MinPositionPct, cfg.Risk.MaxPositionPct)
	if err != nil {
		log.Fatalf("invalid risk config: %v", err)
	}
	manager := risk.NewManager(sizer, risk.ManagerConfig{
		MaxDrawdownPct:    cfg.Risk.MaxDrawdownPct,
		DailyLossLimitPct: cfg.Risk.DailyLossLimitPct,
		MaxOpenPositions:  cfg.Risk.MaxOpenPositions,
		TargetVolatility:  cfg.Risk.TargetVolatility,
	})

	bt := backtest.New(strat, cfg.Backtest.InitialCapital,
		backtest.WithRiskManager(manager),
		backtest.WithCommissionRate(cfg.Backtest.CommissionRate),
	)

	slog.Info("running backtest",
		"strategy", strat.Name(), "symbol", *symbol, "bars", len(bars),
		"capital", cfg.Backtest.InitialCapital)

	res, err := bt.Run(bars, *symbol)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	fmt.Print(res.Summary())

	if *save {
		st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening result store: %v", err)
		}
		defer st.Close()

		id, err := st.SaveRun(ctx, res)
		if err != nil {
			log.Fatalf("saving run: %v", err)
		}
		slog.Info("run saved", "id", id, "db", cfg.Storage.SQLitePath)
	}
}

// loadBars reads bars from the Parquet store or generates a deterministic
// synthetic series over the weekdays in the window.
func loadBars(ctx context.Context, cfg *config.Config, source, symbol string, start, end time.Time, seed int64) ([]domain.Bar, error) {
	switch source {
	case "parquet":
		ps := store.NewParquetStore(cfg.Storage.DataDir)
		return ps.ReadBars(ctx, symbol, "us", start, end)
	case "synthetic":
		return syntheticBars(symbol, start, end, seed), nil
	default:
		return nil, fmt.Errorf("unknown bar source %q", source)
	}
}

// syntheticBars generates a seeded geometric random walk, one bar per
// weekday. The same seed and window always produce the same series.
func syntheticBars(symbol string, start, end time.Time, seed int64) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	days := util.TradingDays(start, end)

	bars := make([]domain.Bar, 0, len(days))
	price := 100.0
	for _, day := range days {
		ret := rng.NormFloat64() * 0.015
		open := price
		close := price * (1 + ret)
		high := max(open, close) * (1 + rng.Float64()*0.005)
		low := min(open, close) * (1 - rng.Float64()*0.005)
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: day,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    int64(1e6 + rng.Int63n(9e6)),
		})
		price = close
	}
	return bars
}

func listRuns(ctx context.Context, cfg *config.Config) {
	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening result store: %v", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, 20)
	if err != nil {
		log.Fatalf("listing runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return
	}
	fmt.Printf("%-4s %-20s %-12s %-12s %12s %10s %8s\n",
		"ID", "Strategy", "Start", "End", "Final", "Return%", "Trades")
	for _, r := range runs {
		fmt.Printf("%-4d %-20s %-12s %-12s %12.2f %10.2f %8d\n",
			r.ID, r.StrategyName,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"),
			r.FinalEquity, r.TotalReturnPct, r.NumTrades)
	}
}
