// Package replay drives the decision engine over historical candles.
package replay

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/db"
	"github.com/quantfade/singularity-trader/internal/engine"
	"github.com/quantfade/singularity-trader/internal/exchange"
	"github.com/quantfade/singularity-trader/internal/notifier"
	"github.com/quantfade/singularity-trader/internal/position"
	"github.com/quantfade/singularity-trader/internal/utils"
)

// Result is the outcome of one replay run.
type Result struct {
	Decisions []engine.Decision
	Trades    []position.Trade
	Stats     position.Stats
}

// Run replays a historical candle series through a fresh engine, evaluating
// each candle with the window the live loop would have seen. The engine
// writes to in-memory storage so replays never touch the live database.
func Run(ctx context.Context, cfg config.Config, candles []candle.Candle) (Result, error) {
	log := utils.GetLogger().With().Str("symbol", cfg.Symbol).Logger()

	if len(candles) < cfg.MinCandles {
		return Result{}, fmt.Errorf("replay needs at least %d candles, got %d", cfg.MinCandles, len(candles))
	}

	storage := db.NewMemory()
	eng := engine.New(cfg, storage, notifier.Noop{})

	var res Result
	for i := cfg.MinCandles; i <= len(candles); i++ {
		window := candles[:i]
		if len(window) > cfg.FetchLimit {
			window = window[i-cfg.FetchLimit : i]
		}

		dec, err := eng.Evaluate(ctx, window)
		if err != nil {
			return Result{}, fmt.Errorf("replay failed at candle %d: %w", i-1, err)
		}
		if dec.Action == engine.ActionNone || dec.Action == engine.ActionHolding {
			continue
		}
		res.Decisions = append(res.Decisions, dec)
		if dec.Trade != nil {
			res.Trades = append(res.Trades, *dec.Trade)
		}
	}

	res.Stats = position.ComputeStats(res.Trades)
	log.Info().
		Int("decisions", len(res.Decisions)).
		Int("trades", res.Stats.Trades).
		Float64("win_rate", res.Stats.WinRate).
		Float64("total_pnl_pct", res.Stats.TotalPnLPct*100).
		Msg("replay complete")
	return res, nil
}

// Fetch downloads the replay window from the candle source and trims it to
// the configured time range.
func Fetch(ctx context.Context, cfg config.Config, source exchange.CandleSource) ([]candle.Candle, error) {
	candles, err := source.FetchCandles(ctx, cfg.Symbol, cfg.Timeframe, cfg.FetchLimit)
	if err != nil {
		return nil, err
	}

	from, to, err := window(cfg)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return candles, nil
	}

	var out []candle.Candle
	for _, c := range candles {
		if !from.IsZero() && c.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && c.Timestamp.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveCSV writes the replayed trades for offline analysis.
func SaveCSV(path string, trades []position.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"id", "symbol", "direction", "signal_type", "entry_price", "entry_time",
		"exit_price", "exit_time", "exit_kind", "pnl_pct", "hold_periods"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.ID, t.Symbol, string(t.Direction), string(t.SignalType),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64), t.EntryTime.Format(time.RFC3339),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64), t.ExitTime.Format(time.RFC3339),
			t.ExitKind, strconv.FormatFloat(t.PnLPct, 'f', -1, 64), strconv.Itoa(t.HoldPeriods),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func window(cfg config.Config) (from, to time.Time, err error) {
	if cfg.ReplayFrom != "" {
		from, err = time.Parse(time.RFC3339, cfg.ReplayFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad replay_from: %w", err)
		}
	}
	if cfg.ReplayTo != "" {
		to, err = time.Parse(time.RFC3339, cfg.ReplayTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad replay_to: %w", err)
		}
	}
	return from, to, nil
}
