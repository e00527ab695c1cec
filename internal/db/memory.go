package db

import (
	"context"
	"sync"
	"time"

	"github.com/quantfade/singularity-trader/internal/journal"
	"github.com/quantfade/singularity-trader/internal/position"
)

// MemoryStorage implements Storage in memory. Used in replay mode and tests.
type MemoryStorage struct {
	mu sync.RWMutex

	trades []position.Trade

	// Events (append-only)
	events []journal.Event

	snapshots map[string][]byte
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		trades:    make([]position.Trade, 0),
		events:    make([]journal.Event, 0, 1024),
		snapshots: make(map[string][]byte),
	}
}

func (m *MemoryStorage) SaveTrade(ctx context.Context, t position.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.trades {
		if existing.ID == t.ID {
			return nil
		}
	}
	m.trades = append(m.trades, t)
	return nil
}

func (m *MemoryStorage) GetTrades(ctx context.Context, symbol string, start, end time.Time) ([]position.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []position.Trade
	for _, t := range m.trades {
		if t.Symbol != symbol {
			continue
		}
		if t.ExitTime.Before(start) || t.ExitTime.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryStorage) LogEvent(ctx context.Context, e journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journal.Event
	for _, e := range m.events {
		if e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryStorage) SaveSnapshot(ctx context.Context, symbol string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	m.snapshots[symbol] = cp
	return nil
}

func (m *MemoryStorage) LoadSnapshot(ctx context.Context, symbol string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[symbol], nil
}

func (m *MemoryStorage) Close() error { return nil }
