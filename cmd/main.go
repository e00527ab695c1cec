package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/db"
	"github.com/quantfade/singularity-trader/internal/engine"
	"github.com/quantfade/singularity-trader/internal/exchange"
	"github.com/quantfade/singularity-trader/internal/livetrading"
	"github.com/quantfade/singularity-trader/internal/notifier"
	"github.com/quantfade/singularity-trader/internal/replay"
	"github.com/quantfade/singularity-trader/internal/state"
	"github.com/quantfade/singularity-trader/internal/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		preset     = flag.String("preset", "", "strategy preset: v705, v707, v708, full")
		mode       = flag.String("mode", "", "override run mode: live or replay")
		tradesCSV  = flag.String("trades-csv", "", "replay only: write trades to this CSV file")
	)
	flag.Parse()

	// Credentials come from the environment; .env is optional.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	log := utils.ConfigureLogger(cfg.LogLevel, cfg.LogJSON)
	log.Info().
		Str("symbol", cfg.Symbol).
		Str("timeframe", cfg.Timeframe).
		Str("mode", cfg.Mode).
		Bool("harmonic", cfg.Harmonic.Enabled).
		Bool("confirmation", cfg.Confirmation.Enabled).
		Msg("starting singularity trader")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := exchange.NewBinance(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"))

	switch cfg.Mode {
	case "replay":
		runReplay(ctx, cfg, source, *tradesCSV)
	case "live":
		runLive(ctx, cfg, source)
	default:
		log.Fatal().Str("mode", cfg.Mode).Msg("unknown mode")
	}
}

func loadConfig(path, preset string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if preset != "" {
		return config.Preset(preset)
	}
	return config.Preset("full")
}

func runLive(ctx context.Context, cfg config.Config, source exchange.CandleSource) {
	log := utils.GetLogger()

	var storage db.Storage
	if cfg.DBConnStr != "" {
		pg, err := db.NewPostgres(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer pg.Close()
		storage = pg
	} else {
		log.Warn().Msg("no database configured, trades are kept in memory only")
		storage = db.NewMemory()
	}

	var notif notifier.Notifier = notifier.Noop{}
	if cfg.TelegramOn {
		notif = notifier.NewTelegramNotifier(cfg.TgToken, cfg.TgChatID, cfg.NotifRetries, cfg.NotifDelay)
	}

	eng := engine.New(cfg, storage, notif)
	stateMgr := state.NewFileStateManager(cfg.StateFile)

	if err := livetrading.Run(ctx, cfg, eng, source, storage, stateMgr, notif); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("live trading failed")
	}
}

func runReplay(ctx context.Context, cfg config.Config, source exchange.CandleSource, tradesCSV string) {
	log := utils.GetLogger()

	candles, err := replay.Fetch(ctx, cfg, source)
	if err != nil {
		log.Fatal().Err(err).Msg("replay fetch failed")
	}

	res, err := replay.Run(ctx, cfg, candles)
	if err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}

	fmt.Printf("replayed %d candles: %d trades, win rate %.1f%%, total pnl %+.2f%%\n",
		len(candles), res.Stats.Trades, res.Stats.WinRate*100, res.Stats.TotalPnLPct*100)
	for _, t := range res.Trades {
		fmt.Printf("  %s %-5s entry %.2f -> exit %.2f (%+.2f%%) [%s]\n",
			t.EntryTime.Format("2006-01-02 15:04"), t.Direction, t.EntryPrice, t.ExitPrice, t.PnLPct*100, t.ExitKind)
	}

	if tradesCSV != "" {
		if err := replay.SaveCSV(tradesCSV, res.Trades); err != nil {
			log.Fatal().Err(err).Msg("failed to write trades CSV")
		}
		log.Info().Str("path", tradesCSV).Msg("trades written")
	}
}
