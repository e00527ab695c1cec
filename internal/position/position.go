// Package position tracks the single-position trade lifecycle and the
// realized trade history.
package position

import (
	"fmt"
	"math"
	"time"

	"github.com/quantfade/singularity-trader/internal/pivot"
	"github.com/quantfade/singularity-trader/internal/regime"
)

// State is the lifecycle state of the book.
type State string

const (
	Flat                State = "FLAT"
	PendingConfirmation State = "PENDING_CONFIRMATION"
	Open                State = "OPEN"
)

// validTransitions is the closed set of allowed lifecycle moves.
var validTransitions = map[State][]State{
	Flat:                {PendingConfirmation, Open},
	PendingConfirmation: {Flat, Open},
	Open:                {Flat},
}

// Position is an open or pending trade.
type Position struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Direction  regime.Direction `json:"direction"`
	EntryPrice float64          `json:"entry_price"`
	EntryTime  time.Time        `json:"entry_time"`
	Signal     regime.Signal    `json:"signal"`
	Confidence float64          `json:"confidence"`
	Levels     pivot.Levels     `json:"levels"`
}

// Trade is a completed round trip.
type Trade struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Direction   regime.Direction  `json:"direction"`
	SignalType  regime.SignalType `json:"signal_type"`
	EntryPrice  float64           `json:"entry_price"`
	EntryTime   time.Time         `json:"entry_time"`
	ExitPrice   float64           `json:"exit_price"`
	ExitTime    time.Time         `json:"exit_time"`
	ExitReason  string            `json:"exit_reason"`
	ExitKind    string            `json:"exit_kind"`
	PnLPct      float64           `json:"pnl_pct"`
	HoldPeriods int               `json:"hold_periods"`
}

// Transition is one recorded lifecycle move.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Book holds the lifecycle state, the current position and the transition
// history. It is not goroutine safe; the engine serializes access.
type Book struct {
	state    State
	position Position
	history  []Transition

	backupState    State
	backupPosition Position
	backedUp       bool
}

func NewBook() *Book {
	return &Book{state: Flat}
}

// State returns the current lifecycle state.
func (b *Book) State() State { return b.state }

// Current returns the position when one is open or pending.
func (b *Book) Current() (Position, bool) {
	if b.state == Flat {
		return Position{}, false
	}
	return b.position, true
}

// History returns the recorded transitions, oldest first.
func (b *Book) History() []Transition {
	out := make([]Transition, len(b.history))
	copy(out, b.history)
	return out
}

// Backup snapshots the lifecycle state so a failed commit can roll back.
func (b *Book) Backup() {
	b.backupState = b.state
	b.backupPosition = b.position
	b.backedUp = true
}

// Rollback restores the last backup. It is a no-op without one.
func (b *Book) Rollback() {
	if !b.backedUp {
		return
	}
	b.state = b.backupState
	b.position = b.backupPosition
	b.backedUp = false
}

// TransitionTo validates and applies a lifecycle move.
func (b *Book) TransitionTo(to State, pos Position, reason string, at time.Time) error {
	allowed := false
	for _, s := range validTransitions[b.state] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid transition %s -> %s", b.state, to)
	}

	b.history = append(b.history, Transition{
		From:      b.state,
		To:        to,
		Reason:    reason,
		Timestamp: at,
	})
	b.state = to
	if to == Flat {
		b.position = Position{}
	} else {
		b.position = pos
	}
	return nil
}

// Restore forces the book into a persisted state without recording a
// transition. Used when recovering after a restart.
func (b *Book) Restore(state State, pos Position, history []Transition) {
	b.state = state
	b.position = pos
	b.history = append([]Transition(nil), history...)
}

// Stats summarizes realized trades.
type Stats struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	TotalPnLPct  float64 `json:"total_pnl_pct"`
	AvgPnLPct    float64 `json:"avg_pnl_pct"`
	ProfitFactor float64 `json:"profit_factor"`
	BestPct      float64 `json:"best_pct"`
	WorstPct     float64 `json:"worst_pct"`
}

// ComputeStats aggregates a trade log.
func ComputeStats(trades []Trade) Stats {
	s := Stats{Trades: len(trades)}
	if len(trades) == 0 {
		return s
	}

	var grossWin, grossLoss float64
	s.BestPct = math.Inf(-1)
	s.WorstPct = math.Inf(1)
	for _, t := range trades {
		s.TotalPnLPct += t.PnLPct
		if t.PnLPct > 0 {
			s.Wins++
			grossWin += t.PnLPct
		} else {
			s.Losses++
			grossLoss += -t.PnLPct
		}
		if t.PnLPct > s.BestPct {
			s.BestPct = t.PnLPct
		}
		if t.PnLPct < s.WorstPct {
			s.WorstPct = t.PnLPct
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.AvgPnLPct = s.TotalPnLPct / float64(s.Trades)
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
