package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/regime"
)

func TestBookStartsFlat(t *testing.T) {
	b := NewBook()
	assert.Equal(t, Flat, b.State())

	_, ok := b.Current()
	assert.False(t, ok)
}

func TestBookValidTransitions(t *testing.T) {
	b := NewBook()
	now := time.Now()
	pos := Position{ID: "p1", Direction: regime.Long, EntryPrice: 100}

	assert.NoError(t, b.TransitionTo(PendingConfirmation, pos, "parked", now))
	assert.Equal(t, PendingConfirmation, b.State())

	assert.NoError(t, b.TransitionTo(Open, pos, "confirmed", now))
	assert.Equal(t, Open, b.State())

	current, ok := b.Current()
	assert.True(t, ok)
	assert.Equal(t, "p1", current.ID)

	assert.NoError(t, b.TransitionTo(Flat, Position{}, "closed", now))
	assert.Equal(t, Flat, b.State())
	_, ok = b.Current()
	assert.False(t, ok)

	assert.Len(t, b.History(), 3)
}

func TestBookInvalidTransitions(t *testing.T) {
	b := NewBook()
	now := time.Now()

	// Flat to flat is not a move.
	assert.Error(t, b.TransitionTo(Flat, Position{}, "", now))

	assert.NoError(t, b.TransitionTo(Open, Position{ID: "p1"}, "entered", now))
	// Open may only close.
	assert.Error(t, b.TransitionTo(PendingConfirmation, Position{}, "", now))
	assert.Error(t, b.TransitionTo(Open, Position{}, "", now))
}

func TestBookBackupRollback(t *testing.T) {
	b := NewBook()
	now := time.Now()

	b.Backup()
	assert.NoError(t, b.TransitionTo(Open, Position{ID: "p1"}, "entered", now))
	assert.Equal(t, Open, b.State())

	b.Rollback()
	assert.Equal(t, Flat, b.State())
	_, ok := b.Current()
	assert.False(t, ok)

	// A second rollback without a fresh backup does nothing.
	assert.NoError(t, b.TransitionTo(Open, Position{ID: "p2"}, "entered", now))
	b.Rollback()
	assert.Equal(t, Open, b.State())
}

func TestBookRestore(t *testing.T) {
	b := NewBook()
	pos := Position{ID: "p1", Direction: regime.Short, EntryPrice: 200}
	history := []Transition{{From: Flat, To: Open, Reason: "entered"}}

	b.Restore(Open, pos, history)
	assert.Equal(t, Open, b.State())
	current, ok := b.Current()
	assert.True(t, ok)
	assert.Equal(t, "p1", current.ID)
	assert.Len(t, b.History(), 1)
}

func TestComputeStats(t *testing.T) {
	trades := []Trade{
		{PnLPct: 0.05},
		{PnLPct: -0.02},
		{PnLPct: 0.03},
		{PnLPct: -0.01},
	}

	s := ComputeStats(trades)
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
	assert.InDelta(t, 0.05, s.TotalPnLPct, 1e-9)
	assert.InDelta(t, 0.0125, s.AvgPnLPct, 1e-9)
	assert.InDelta(t, 0.08/0.03, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.05, s.BestPct, 1e-9)
	assert.InDelta(t, -0.02, s.WorstPct, 1e-9)
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Equal(t, 0, s.Trades)
	assert.Equal(t, 0.0, s.WinRate)
}
