package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/quantfade/singularity-trader/internal/journal"
	"github.com/quantfade/singularity-trader/internal/position"
)

// Postgres implements Storage over lib/pq.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool and ensures the schema exists.
func NewPostgres(connStr string, maxOpen, maxIdle int) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			exit_reason TEXT NOT NULL,
			exit_kind TEXT NOT NULL,
			pnl_pct DOUBLE PRECISION NOT NULL,
			hold_periods INT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_time ON trades (symbol, exit_time)`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			data JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_time ON events (type, time)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			symbol TEXT PRIMARY KEY,
			updated_at TIMESTAMPTZ NOT NULL,
			state JSONB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SaveTrade(ctx context.Context, t position.Trade) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, direction, signal_type, entry_price, entry_time,
			exit_price, exit_time, exit_reason, exit_kind, pnl_pct, hold_periods)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Symbol, t.Direction, t.SignalType, t.EntryPrice, t.EntryTime,
		t.ExitPrice, t.ExitTime, t.ExitReason, t.ExitKind, t.PnLPct, t.HoldPeriods)
	if err != nil {
		return fmt.Errorf("failed to save trade %s: %w", t.ID, err)
	}
	return nil
}

func (p *Postgres) GetTrades(ctx context.Context, symbol string, start, end time.Time) ([]position.Trade, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, symbol, direction, signal_type, entry_price, entry_time,
			exit_price, exit_time, exit_reason, exit_kind, pnl_pct, hold_periods
		FROM trades
		WHERE symbol=$1 AND exit_time >= $2 AND exit_time <= $3
		ORDER BY exit_time ASC`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []position.Trade
	for rows.Next() {
		var t position.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Direction, &t.SignalType, &t.EntryPrice, &t.EntryTime,
			&t.ExitPrice, &t.ExitTime, &t.ExitReason, &t.ExitKind, &t.PnLPct, &t.HoldPeriods); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (p *Postgres) LogEvent(ctx context.Context, e journal.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
		e.Time, e.Type, e.Description, data)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (p *Postgres) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT time, type, description, data FROM events
		WHERE type=$1 AND time >= $2 AND time <= $3
		ORDER BY time ASC`, eventType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *Postgres) SaveSnapshot(ctx context.Context, symbol string, snapshot []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO snapshots (symbol, updated_at, state) VALUES ($1,$2,$3)
		ON CONFLICT (symbol) DO UPDATE SET updated_at=EXCLUDED.updated_at, state=EXCLUDED.state`,
		symbol, time.Now().UTC(), snapshot)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", symbol, err)
	}
	return nil
}

func (p *Postgres) LoadSnapshot(ctx context.Context, symbol string) ([]byte, error) {
	var state []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM snapshots WHERE symbol=$1`, symbol).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", symbol, err)
	}
	return state, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
