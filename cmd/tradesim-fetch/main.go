package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/feed"
	"tradesim/internal/store"
	"tradesim/internal/util"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to fetch (required)")
	startStr := flag.String("start", "", "start date (YYYY-MM-DD), defaults to the configured fetch start")
	endStr := flag.String("end", "", "end date (YYYY-MM-DD), defaults to yesterday")
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

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}

	if *symbolsFlag == "" {
		log.Fatal("-symbols is required")
	}
	var symbols []string
	for _, s := range strings.Split(*symbolsFlag, ",") {
		if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
			symbols = append(symbols, s)
		}
	}

	startDate := cfg.Fetch.StartDate
	if *startStr != "" {
		startDate = *startStr
	}
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		log.Fatalf("invalid start date %q: %v", startDate, err)
	}

	end := time.Now().UTC().AddDate(0, 0, -1)
	if *endStr != "" {
		end, err = time.Parse("2006-01-02", *endStr)
		if err != nil {
			log.Fatalf("invalid end date %q: %v", *endStr, err)
		}
	}

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	f := feed.NewAlpacaFeed(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		ps,
		cfg.Fetch.BatchSize,
		cfg.Fetch.RateLimitPerMin,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("fetching daily bars",
		"symbols", len(symbols),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"dataDir", cfg.Storage.DataDir)

	total, err := f.Fetch(ctx, symbols, start, end)
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	slog.Info("fetch complete", "bars", total)
}
