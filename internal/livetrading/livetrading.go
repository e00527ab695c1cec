// Package livetrading
package livetrading

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/db"
	"github.com/quantfade/singularity-trader/internal/engine"
	"github.com/quantfade/singularity-trader/internal/exchange"
	"github.com/quantfade/singularity-trader/internal/journal"
	"github.com/quantfade/singularity-trader/internal/notifier"
	"github.com/quantfade/singularity-trader/internal/position"
	"github.com/quantfade/singularity-trader/internal/state"
	"github.com/quantfade/singularity-trader/internal/utils"
)

// Run drives the live decision loop on two cadences: a slow signal ticker
// on the strategy timeframe and a faster poll ticker that only manages an
// open position between signal candles. State is persisted after every
// cycle so a restart resumes the lifecycle where it stopped.
func Run(
	ctx context.Context,
	cfg config.Config,
	eng *engine.Engine,
	source exchange.CandleSource,
	storage db.Storage,
	stateMgr state.StateManager,
	notif notifier.Notifier,
) error {
	log := utils.GetLogger().With().Str("symbol", cfg.Symbol).Logger()

	if err := recoverState(ctx, cfg, eng, storage, stateMgr); err != nil {
		log.Warn().Err(err).Msg("state recovery failed, starting flat")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic in live trading")
			notif.Send(fmt.Sprintf("PANIC in trading system: %v", r))
		}
	}()

	signalTicker := time.NewTicker(cfg.SignalEvery)
	defer signalTicker.Stop()
	pollTicker := time.NewTicker(cfg.PollEvery)
	defer pollTicker.Stop()

	// First cycle immediately instead of waiting a full timeframe.
	if err := cycle(ctx, cfg, eng, source, storage, stateMgr, true); err != nil {
		log.Error().Err(err).Msg("evaluation cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("live trading stopped")
			return ctx.Err()
		case <-signalTicker.C:
			if err := cycle(ctx, cfg, eng, source, storage, stateMgr, true); err != nil {
				log.Error().Err(err).Msg("evaluation cycle failed")
			}
		case <-pollTicker.C:
			// Position management only. Signal evaluation stays on the
			// strategy timeframe.
			if eng.State() != position.Open {
				continue
			}
			if err := cycle(ctx, cfg, eng, source, storage, stateMgr, false); err != nil {
				log.Error().Err(err).Msg("poll cycle failed")
			}
		}
	}
}

func cycle(
	ctx context.Context,
	cfg config.Config,
	eng *engine.Engine,
	source exchange.CandleSource,
	storage db.Storage,
	stateMgr state.StateManager,
	fullCycle bool,
) error {
	log := utils.GetLogger()

	candles, err := source.FetchCandles(ctx, cfg.Symbol, cfg.Timeframe, cfg.FetchLimit)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	dec, err := eng.Evaluate(ctx, candles)
	if err != nil {
		if storage != nil {
			_ = storage.LogEvent(ctx, journal.Event{
				Time:        time.Now().UTC(),
				Type:        journal.EventError,
				Description: err.Error(),
			})
		}
		return fmt.Errorf("evaluate failed: %w", err)
	}

	log.Info().
		Str("action", string(dec.Action)).
		Str("reason", dec.Reason).
		Bool("signal_cycle", fullCycle).
		Msg("cycle complete")

	return persistState(ctx, cfg, eng, storage, stateMgr)
}

// persistState writes the engine snapshot to the state file and, when a
// database is configured, to storage as well.
func persistState(ctx context.Context, cfg config.Config, eng *engine.Engine, storage db.Storage, stateMgr state.StateManager) error {
	snap, err := eng.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}

	if err := stateMgr.SaveState(map[string]any{
		"symbol":   cfg.Symbol,
		"saved_at": time.Now().UTC().Format(time.RFC3339),
		"engine":   base64.StdEncoding.EncodeToString(snap),
	}); err != nil {
		return fmt.Errorf("state save failed: %w", err)
	}

	if storage != nil {
		if err := storage.SaveSnapshot(ctx, cfg.Symbol, snap); err != nil {
			return fmt.Errorf("snapshot save failed: %w", err)
		}
	}
	return nil
}

// recoverState prefers the database snapshot and falls back to the state
// file.
func recoverState(ctx context.Context, cfg config.Config, eng *engine.Engine, storage db.Storage, stateMgr state.StateManager) error {
	if storage != nil {
		snap, err := storage.LoadSnapshot(ctx, cfg.Symbol)
		if err == nil && len(snap) > 0 {
			return eng.RestoreSnapshot(snap)
		}
	}

	st, err := stateMgr.LoadState()
	if err != nil {
		return err
	}
	encoded, ok := st["engine"].(string)
	if !ok || encoded == "" {
		return nil
	}
	snap, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("corrupt state file: %w", err)
	}
	return eng.RestoreSnapshot(snap)
}
