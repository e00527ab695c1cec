package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/journal"
	"github.com/quantfade/singularity-trader/internal/position"
)

func testTrade(id, symbol string, exit time.Time) position.Trade {
	return position.Trade{
		ID:        id,
		Symbol:    symbol,
		Direction: "long",
		ExitTime:  exit,
	}
}

func TestMemorySaveTradeDeduplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	assert.NoError(t, m.SaveTrade(ctx, testTrade("t1", "BTCUSDT", now)))
	assert.NoError(t, m.SaveTrade(ctx, testTrade("t1", "BTCUSDT", now)))
	assert.NoError(t, m.SaveTrade(ctx, testTrade("t2", "BTCUSDT", now)))

	trades, err := m.GetTrades(ctx, "BTCUSDT", now.Add(-time.Hour), now.Add(time.Hour))
	assert.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestMemoryGetTradesFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, m.SaveTrade(ctx, testTrade("t1", "BTCUSDT", base)))
	assert.NoError(t, m.SaveTrade(ctx, testTrade("t2", "ETHUSDT", base)))
	assert.NoError(t, m.SaveTrade(ctx, testTrade("t3", "BTCUSDT", base.Add(48*time.Hour))))

	trades, err := m.GetTrades(ctx, "BTCUSDT", base.Add(-time.Hour), base.Add(time.Hour))
	assert.NoError(t, err)
	if assert.Len(t, trades, 1) {
		assert.Equal(t, "t1", trades[0].ID)
	}
}

func TestMemoryEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, m.LogEvent(ctx, journal.Event{Time: base, Type: journal.EventSignal, Description: "one"}))
	assert.NoError(t, m.LogEvent(ctx, journal.Event{Time: base, Type: journal.EventRejection, Description: "two"}))
	assert.NoError(t, m.LogEvent(ctx, journal.Event{Time: base.Add(72 * time.Hour), Type: journal.EventSignal, Description: "three"}))

	events, err := m.GetEvents(ctx, journal.EventSignal, base.Add(-time.Hour), base.Add(time.Hour))
	assert.NoError(t, err)
	if assert.Len(t, events, 1) {
		assert.Equal(t, "one", events[0].Description)
	}
}

func TestMemorySnapshots(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// Unknown symbol yields nil without error.
	blob, err := m.LoadSnapshot(ctx, "BTCUSDT")
	assert.NoError(t, err)
	assert.Nil(t, blob)

	src := []byte(`{"state":"OPEN"}`)
	assert.NoError(t, m.SaveSnapshot(ctx, "BTCUSDT", src))

	// Mutating the source must not affect the stored copy.
	src[0] = 'X'

	blob, err = m.LoadSnapshot(ctx, "BTCUSDT")
	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"state":"OPEN"}`), blob)

	// Overwrite replaces the previous snapshot.
	assert.NoError(t, m.SaveSnapshot(ctx, "BTCUSDT", []byte(`{"state":"FLAT"}`)))
	blob, err = m.LoadSnapshot(ctx, "BTCUSDT")
	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"state":"FLAT"}`), blob)
}
