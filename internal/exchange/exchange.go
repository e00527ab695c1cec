// Package exchange provides market data sources for the decision engine.
package exchange

import (
	"context"

	"github.com/quantfade/singularity-trader/internal/candle"
)

// CandleSource fetches the trailing candle window the engine evaluates.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}
