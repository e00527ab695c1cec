// Package engine wires the spectral pipeline, the regime classifier, the
// entry filter chain and the pivot exit manager into a single decision
// engine over one symbol. Evaluate is the only entry point; it takes a
// candle window and returns what, if anything, changed.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/db"
	"github.com/quantfade/singularity-trader/internal/filter"
	"github.com/quantfade/singularity-trader/internal/indicator"
	"github.com/quantfade/singularity-trader/internal/journal"
	"github.com/quantfade/singularity-trader/internal/notifier"
	"github.com/quantfade/singularity-trader/internal/pivot"
	"github.com/quantfade/singularity-trader/internal/position"
	"github.com/quantfade/singularity-trader/internal/regime"
	"github.com/quantfade/singularity-trader/internal/spectral"
	"github.com/quantfade/singularity-trader/internal/utils"
)

// Action says what one evaluation did.
type Action string

const (
	ActionNone     Action = "none"
	ActionRejected Action = "rejected"
	ActionDeferred Action = "deferred"
	ActionEntered  Action = "entered"
	ActionExited   Action = "exited"
	ActionHolding  Action = "holding"
	ActionPurged   Action = "purged"
)

// Decision is the full record of one evaluation cycle.
type Decision struct {
	Timestamp time.Time
	Action    Action
	Reason    string
	Signal    *regime.Signal
	Verdicts  []filter.Verdict
	Position  *position.Position
	Trade     *position.Trade
	Levels    *pivot.Levels
}

// Engine evaluates candle windows and manages the trade lifecycle. All
// methods are safe for concurrent use; evaluations are serialized.
type Engine struct {
	mu sync.Mutex

	cfg        config.Config
	analyzer   *spectral.Analyzer
	classifier *regime.Classifier
	chain      *filter.Chain
	exits      *pivot.ExitManager
	book       *position.Book

	storage  db.Storage
	notifier notifier.Notifier
	log      zerolog.Logger
}

func New(cfg config.Config, storage db.Storage, notif notifier.Notifier) *Engine {
	analyzer := spectral.NewAnalyzer()
	analyzer.MinCandles = cfg.MinCandles

	return &Engine{
		cfg:        cfg,
		analyzer:   analyzer,
		classifier: regime.NewClassifier(cfg.Classifier),
		chain:      filter.NewChain(&cfg),
		exits:      pivot.NewExitManager(cfg.Exit),
		book:       position.NewBook(),
		storage:    storage,
		notifier:   notif,
		log:        utils.GetLogger().With().Str("symbol", cfg.Symbol).Logger(),
	}
}

// Evaluate runs one full decision cycle over the candle window. The window
// must be sorted oldest first. Lifecycle mutations are committed only after
// their storage writes succeed; on failure the previous state is restored
// and the error returned.
func (e *Engine) Evaluate(ctx context.Context, candles []candle.Candle) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := candle.ValidateSeries(candles); err != nil {
		return Decision{}, err
	}

	metrics, err := e.analyzer.Compute(candles)
	if err != nil {
		return Decision{}, err
	}

	last := candles[len(candles)-1]
	tension, accel := metrics.Last()
	snap := filter.Snapshot{
		Tension:      tension,
		Acceleration: accel,
		VolumeRatio:  indicator.VolumeRatio(candle.Volumes(candles), e.cfg.VolumeLook),
		Price:        last.Close,
		Timestamp:    last.Timestamp,
	}

	// An open position is managed before anything else. Exits always take
	// priority over new entries; a fresh signal on a holding cycle is still
	// classified and journaled as rejected.
	if e.book.State() == position.Open {
		dec, err := e.manageOpen(ctx, candles, snap)
		if err == nil && dec.Action == ActionHolding {
			dec.Signal = e.rejectWhileOpen(ctx, candles, snap)
		}
		return dec, err
	}

	// Pending candidates get their confirmation cycle first so a signal
	// confirmed on this candle can still enter on this candle.
	if e.book.State() == position.PendingConfirmation && e.chain.ConfirmationEnabled() {
		if dec, handled, err := e.advancePending(ctx, candles, snap); handled || err != nil {
			return dec, err
		}
	}

	return e.evaluateSignal(ctx, candles, snap)
}

// manageOpen recomputes exit levels and closes the position when a stop,
// target, fallback or timeout fires.
func (e *Engine) manageOpen(ctx context.Context, candles []candle.Candle, snap filter.Snapshot) (Decision, error) {
	pos, _ := e.book.Current()
	holdPeriods := candle.CountAfter(candles, pos.EntryTime)

	exit, levels, triggered := e.exits.CheckExit(candles, pos.EntryPrice, pos.Direction, holdPeriods)
	if !triggered {
		e.log.Debug().
			Float64("stop", levels.StopLoss).
			Float64("target", levels.TakeProfit).
			Int("hold_periods", holdPeriods).
			Msg("position holding")
		return Decision{
			Timestamp: snap.Timestamp,
			Action:    ActionHolding,
			Reason:    fmt.Sprintf("holding %s, stop %.2f target %.2f", pos.Direction, levels.StopLoss, levels.TakeProfit),
			Position:  &pos,
			Levels:    &levels,
		}, nil
	}

	trade := position.Trade{
		ID:          pos.ID,
		Symbol:      pos.Symbol,
		Direction:   pos.Direction,
		SignalType:  pos.Signal.Type,
		EntryPrice:  pos.EntryPrice,
		EntryTime:   pos.EntryTime,
		ExitPrice:   exit.Price,
		ExitTime:    snap.Timestamp,
		ExitReason:  exit.Reason,
		ExitKind:    string(exit.Kind),
		PnLPct:      tradePnLPct(pos.EntryPrice, exit.Price, pos.Direction),
		HoldPeriods: holdPeriods,
	}

	e.book.Backup()
	if err := e.book.TransitionTo(position.Flat, position.Position{}, exit.Reason, snap.Timestamp); err != nil {
		return Decision{}, err
	}
	if err := e.commitExit(ctx, trade); err != nil {
		e.book.Rollback()
		return Decision{}, err
	}

	e.log.Info().
		Str("direction", string(trade.Direction)).
		Str("exit_kind", trade.ExitKind).
		Float64("pnl_pct", trade.PnLPct*100).
		Msg("position closed")
	e.notify(fmt.Sprintf("CLOSED %s %s at %.2f (%+.2f%%): %s",
		trade.Symbol, trade.Direction, trade.ExitPrice, trade.PnLPct*100, trade.ExitReason))

	return Decision{
		Timestamp: snap.Timestamp,
		Action:    ActionExited,
		Reason:    exit.Reason,
		Trade:     &trade,
		Levels:    &levels,
	}, nil
}

// advancePending runs one confirmation cycle. handled is false when nothing
// confirmed or purged, letting the caller fall through to fresh signals.
// The registry is restored alongside the book when the entry commit fails,
// so an error path leaves no partial mutation behind.
func (e *Engine) advancePending(ctx context.Context, candles []candle.Candle, snap filter.Snapshot) (Decision, bool, error) {
	saved := e.chain.Confirmation().Snapshot()
	confirmed, purged := e.chain.Confirmation().Advance(snap)

	for _, ps := range purged {
		e.journal(ctx, journal.EventPurged, fmt.Sprintf("%s candidate purged after %d periods", ps.Direction, ps.Waited),
			map[string]any{"id": ps.ID, "direction": ps.Direction})
	}

	if len(confirmed) > 0 {
		ps := confirmed[0]
		reason := fmt.Sprintf("%s confirmation after %d periods", confirmationGrade(ps), ps.Waited)
		e.journal(ctx, journal.EventConfirmed, fmt.Sprintf("%s candidate: %s", ps.Direction, reason),
			map[string]any{"id": ps.ID, "direction": ps.Direction, "golden": ps.Golden})

		// Single position: further candidates confirming on the same cycle
		// cannot enter and are journaled instead of silently dropped.
		for _, extra := range confirmed[1:] {
			e.journal(ctx, journal.EventRejection,
				fmt.Sprintf("%s candidate confirmed but discarded, already entering", extra.Direction),
				map[string]any{"id": extra.ID, "direction": extra.Direction, "golden": extra.Golden})
		}

		dec, err := e.open(ctx, candles, snap, ps.Signal, ps.Direction, ps.Signal.Confidence, reason)
		if err != nil {
			e.chain.Confirmation().Restore(saved)
			return dec, true, err
		}
		return dec, true, nil
	}

	if len(purged) > 0 && len(e.chain.Confirmation().Pending()) == 0 {
		if err := e.book.TransitionTo(position.Flat, position.Position{}, "pending candidates purged", snap.Timestamp); err != nil {
			return Decision{}, true, err
		}
		return Decision{
			Timestamp: snap.Timestamp,
			Action:    ActionPurged,
			Reason:    "pending candidates purged",
		}, true, nil
	}

	return Decision{}, false, nil
}

// evaluateSignal classifies the current reading and, when tradeable, runs
// it through the filter chain.
func (e *Engine) evaluateSignal(ctx context.Context, candles []candle.Candle, snap filter.Snapshot) (Decision, error) {
	sigType, confidence, description, ok := e.classifier.Classify(snap.Tension, snap.Acceleration)
	if !ok {
		return Decision{Timestamp: snap.Timestamp, Action: ActionNone, Reason: "no signal"}, nil
	}
	sig := e.buildSignal(candles, snap, sigType, confidence, description)

	e.journal(ctx, journal.EventSignal, sig.Description, map[string]any{
		"type":       sig.Type,
		"confidence": sig.Confidence,
		"tension":    sig.Tension,
		"price":      sig.Price,
	})

	direction, tradeable := sig.Type.Direction()
	if !tradeable {
		return Decision{
			Timestamp: snap.Timestamp,
			Action:    ActionNone,
			Reason:    fmt.Sprintf("%s is not tradeable", sig.Type),
			Signal:    &sig,
		}, nil
	}

	// Single position at a time. A pending candidate blocks new ones too.
	if e.book.State() != position.Flat {
		e.journal(ctx, journal.EventRejection, "already in position", map[string]any{"type": sig.Type})
		return Decision{
			Timestamp: snap.Timestamp,
			Action:    ActionRejected,
			Reason:    "already in position",
			Signal:    &sig,
		}, nil
	}

	res := e.chain.Apply(candles, sig, direction)
	switch res.Outcome {
	case filter.Approved:
		dec, err := e.open(ctx, candles, snap, sig, direction, res.Confidence, lastReason(res.Verdicts))
		if err != nil {
			return Decision{}, err
		}
		dec.Verdicts = res.Verdicts
		return dec, nil

	case filter.Deferred:
		pending := position.Position{
			ID:         uuid.New().String(),
			Symbol:     e.cfg.Symbol,
			Direction:  direction,
			Signal:     sig,
			Confidence: res.Confidence,
		}
		if err := e.book.TransitionTo(position.PendingConfirmation, pending, lastReason(res.Verdicts), snap.Timestamp); err != nil {
			return Decision{}, err
		}
		e.journal(ctx, journal.EventPending, lastReason(res.Verdicts), map[string]any{
			"type": sig.Type, "direction": direction,
		})
		e.notify(fmt.Sprintf("PENDING %s %s: %s", e.cfg.Symbol, direction, sig.Description))
		return Decision{
			Timestamp: snap.Timestamp,
			Action:    ActionDeferred,
			Reason:    lastReason(res.Verdicts),
			Signal:    &sig,
			Verdicts:  res.Verdicts,
			Position:  &pending,
		}, nil

	default:
		e.journal(ctx, journal.EventRejection, lastReason(res.Verdicts), map[string]any{"type": sig.Type})
		return Decision{
			Timestamp: snap.Timestamp,
			Action:    ActionRejected,
			Reason:    lastReason(res.Verdicts),
			Signal:    &sig,
			Verdicts:  res.Verdicts,
		}, nil
	}
}

func (e *Engine) buildSignal(candles []candle.Candle, snap filter.Snapshot, sigType regime.SignalType, confidence float64, description string) regime.Signal {
	closes := candle.Closes(candles)
	return regime.Signal{
		Type:         sigType,
		Confidence:   confidence,
		Description:  description,
		Price:        snap.Price,
		Timestamp:    snap.Timestamp,
		Tension:      snap.Tension,
		Acceleration: snap.Acceleration,
		VolumeRatio:  snap.VolumeRatio,
		PriceVsEMA:   indicator.PriceVsEMA(snap.Price, indicator.LastEMA(closes, e.cfg.EMAPeriod)),
	}
}

// rejectWhileOpen classifies the latest reading on a holding cycle and
// journals any tradeable signal as rejected. Positions are never queued or
// netted, so the holding outcome stands.
func (e *Engine) rejectWhileOpen(ctx context.Context, candles []candle.Candle, snap filter.Snapshot) *regime.Signal {
	sigType, confidence, description, ok := e.classifier.Classify(snap.Tension, snap.Acceleration)
	if !ok {
		return nil
	}
	if _, tradeable := sigType.Direction(); !tradeable {
		return nil
	}

	sig := e.buildSignal(candles, snap, sigType, confidence, description)
	e.journal(ctx, journal.EventRejection, "already in position", map[string]any{
		"type":       sig.Type,
		"confidence": sig.Confidence,
	})
	return &sig
}

// open commits a new position at the latest close with freshly derived exit
// levels.
func (e *Engine) open(ctx context.Context, candles []candle.Candle, snap filter.Snapshot, sig regime.Signal, direction regime.Direction, confidence float64, reason string) (Decision, error) {
	pivots := pivot.DetectPivots(candles, e.cfg.Exit.Depth)
	levels := e.exits.DeriveStops(pivots, snap.Price, direction)

	pos := position.Position{
		ID:         uuid.New().String(),
		Symbol:     e.cfg.Symbol,
		Direction:  direction,
		EntryPrice: snap.Price,
		EntryTime:  snap.Timestamp,
		Signal:     sig,
		Confidence: confidence,
		Levels:     levels,
	}

	e.book.Backup()
	if err := e.book.TransitionTo(position.Open, pos, reason, snap.Timestamp); err != nil {
		return Decision{}, err
	}
	if err := e.storage.LogEvent(ctx, journal.Event{
		Time:        snap.Timestamp,
		Type:        journal.EventEntry,
		Description: reason,
		Data: map[string]any{
			"id":        pos.ID,
			"direction": direction,
			"entry":     pos.EntryPrice,
			"stop":      levels.StopLoss,
			"target":    levels.TakeProfit,
		},
	}); err != nil {
		e.book.Rollback()
		return Decision{}, fmt.Errorf("entry not committed: %w", err)
	}

	e.log.Info().
		Str("direction", string(direction)).
		Float64("entry", pos.EntryPrice).
		Float64("stop", levels.StopLoss).
		Float64("target", levels.TakeProfit).
		Float64("confidence", confidence).
		Msg("position opened")
	e.notify(fmt.Sprintf("OPEN %s %s at %.2f (stop %.2f, target %.2f): %s",
		pos.Symbol, direction, pos.EntryPrice, levels.StopLoss, levels.TakeProfit, reason))

	return Decision{
		Timestamp: snap.Timestamp,
		Action:    ActionEntered,
		Reason:    reason,
		Signal:    &sig,
		Position:  &pos,
		Levels:    &levels,
	}, nil
}

func (e *Engine) commitExit(ctx context.Context, trade position.Trade) error {
	if err := e.storage.SaveTrade(ctx, trade); err != nil {
		return fmt.Errorf("exit not committed: %w", err)
	}
	if err := e.storage.LogEvent(ctx, journal.Event{
		Time:        trade.ExitTime,
		Type:        journal.EventExit,
		Description: trade.ExitReason,
		Data: map[string]any{
			"id":      trade.ID,
			"pnl_pct": trade.PnLPct,
			"kind":    trade.ExitKind,
		},
	}); err != nil {
		return fmt.Errorf("exit not committed: %w", err)
	}
	return nil
}

// State returns the lifecycle state of the book.
func (e *Engine) State() position.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.State()
}

// Stats aggregates the realized trades in storage.
func (e *Engine) Stats(ctx context.Context) (position.Stats, error) {
	trades, err := e.storage.GetTrades(ctx, e.cfg.Symbol, time.Time{}, time.Now().UTC())
	if err != nil {
		return position.Stats{}, err
	}
	return position.ComputeStats(trades), nil
}

func (e *Engine) journal(ctx context.Context, eventType, description string, data map[string]any) {
	err := e.storage.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	})
	if err != nil {
		e.log.Error().Err(err).Str("event", eventType).Msg("journal write failed")
	}
}

func (e *Engine) notify(msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SendWithRetry(msg); err != nil {
		e.log.Error().Err(err).Msg("notification failed")
	}
}

func confirmationGrade(ps filter.PendingSignal) string {
	if ps.Golden {
		return "golden"
	}
	return "ordinary"
}

func lastReason(verdicts []filter.Verdict) string {
	if len(verdicts) == 0 {
		return ""
	}
	return verdicts[len(verdicts)-1].Reason
}

func tradePnLPct(entry, exit float64, direction regime.Direction) float64 {
	if direction == regime.Long {
		return (exit - entry) / entry
	}
	return (entry - exit) / entry
}

// snapshot is the persisted engine state.
type snapshot struct {
	State    position.State         `json:"state"`
	Position position.Position      `json:"position"`
	Pending  []filter.PendingSignal `json:"pending"`
	History  []position.Transition  `json:"history"`
}

// Snapshot serializes the lifecycle state and the pending registry.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, _ := e.book.Current()
	return json.Marshal(snapshot{
		State:    e.book.State(),
		Position: pos,
		Pending:  e.chain.Confirmation().Snapshot(),
		History:  e.book.History(),
	})
}

// RestoreSnapshot rebuilds the lifecycle state from a prior Snapshot. Empty
// input is a no-op so first runs start flat.
func (e *Engine) RestoreSnapshot(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse engine snapshot: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.book.Restore(s.State, s.Position, s.History)
	e.chain.Confirmation().Restore(s.Pending)
	return nil
}
