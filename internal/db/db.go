// Package db
package db

import (
	"context"
	"time"

	"github.com/quantfade/singularity-trader/internal/journal"
	"github.com/quantfade/singularity-trader/internal/position"
)

// Storage is the interface for all persistent storage.
type Storage interface {
	SaveTrade(ctx context.Context, trade position.Trade) error
	GetTrades(ctx context.Context, symbol string, start, end time.Time) ([]position.Trade, error)

	LogEvent(ctx context.Context, event journal.Event) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error)

	// SaveSnapshot persists the engine state blob keyed by symbol so a
	// restart resumes where the previous run stopped.
	SaveSnapshot(ctx context.Context, symbol string, snapshot []byte) error
	LoadSnapshot(ctx context.Context, symbol string) ([]byte, error)

	Close() error
}
