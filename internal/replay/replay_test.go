package replay

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/position"
)

func flatCandles(n int, price float64) []candle.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	for i := range out {
		out[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * 4 * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
			Symbol:    "BTCUSDT",
			Timeframe: "4h",
		}
	}
	return out
}

// fakeSource returns a canned candle series.
type fakeSource struct {
	candles []candle.Candle
}

func (f fakeSource) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	return f.candles, nil
}

func (f fakeSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if len(f.candles) == 0 {
		return 0, nil
	}
	return f.candles[len(f.candles)-1].Close, nil
}

func TestRunFlatMarketProducesNoTrades(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)

	res, err := Run(context.Background(), cfg, flatCandles(cfg.MinCandles+20, 100))
	assert.NoError(t, err)
	assert.Empty(t, res.Decisions)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Stats.Trades)
}

func TestRunRequiresWarmup(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)

	_, err = Run(context.Background(), cfg, flatCandles(cfg.MinCandles-1, 100))
	assert.Error(t, err)
}

func TestFetchTrimsToWindow(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)

	candles := flatCandles(10, 100)
	cfg.ReplayFrom = candles[2].Timestamp.Format(time.RFC3339)
	cfg.ReplayTo = candles[6].Timestamp.Format(time.RFC3339)

	out, err := Fetch(context.Background(), cfg, fakeSource{candles: candles})
	assert.NoError(t, err)
	if assert.Len(t, out, 5) {
		assert.Equal(t, candles[2].Timestamp, out[0].Timestamp)
		assert.Equal(t, candles[6].Timestamp, out[4].Timestamp)
	}
}

func TestFetchNoWindowReturnsAll(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)
	cfg.ReplayFrom = ""
	cfg.ReplayTo = ""

	candles := flatCandles(10, 100)
	out, err := Fetch(context.Background(), cfg, fakeSource{candles: candles})
	assert.NoError(t, err)
	assert.Len(t, out, 10)
}

func TestFetchRejectsBadWindow(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)
	cfg.ReplayFrom = "2025-06-01"

	_, err = Fetch(context.Background(), cfg, fakeSource{candles: flatCandles(10, 100)})
	assert.Error(t, err)
}

func TestSaveCSV(t *testing.T) {
	entry := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := []position.Trade{
		{
			ID:          "t1",
			Symbol:      "BTCUSDT",
			Direction:   "long",
			SignalType:  "BEARISH",
			EntryPrice:  100,
			EntryTime:   entry,
			ExitPrice:   105,
			ExitTime:    entry.Add(16 * time.Hour),
			ExitKind:    "take_profit",
			PnLPct:      0.05,
			HoldPeriods: 4,
		},
	}

	path := filepath.Join(t.TempDir(), "trades.csv")
	assert.NoError(t, SaveCSV(path, trades))

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)
	if assert.Len(t, rows, 2) {
		assert.Equal(t, "id", rows[0][0])
		assert.Equal(t, "t1", rows[1][0])
		assert.Equal(t, "take_profit", rows[1][8])
		assert.Equal(t, "0.05", rows[1][9])
	}
}
