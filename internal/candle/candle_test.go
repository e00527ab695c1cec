package candle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCandle(ts time.Time, close float64) Candle {
	return Candle{
		Timestamp: ts,
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    100,
		Symbol:    "BTCUSDT",
		Timeframe: "4h",
	}
}

func TestCandleValidate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c := validCandle(base, 100)
	assert.NoError(t, c.Validate())

	zero := c
	zero.Timestamp = time.Time{}
	assert.Error(t, zero.Validate())

	negative := c
	negative.Close = -5
	assert.Error(t, negative.Validate())

	inverted := c
	inverted.High = 90
	inverted.Low = 110
	assert.Error(t, inverted.Validate())

	outside := c
	outside.Close = 200
	assert.Error(t, outside.Validate())

	badVolume := c
	badVolume.Volume = -1
	assert.Error(t, badVolume.Validate())
}

func TestValidateSeriesOrdering(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ordered := []Candle{
		validCandle(base, 100),
		validCandle(base.Add(4*time.Hour), 101),
		validCandle(base.Add(8*time.Hour), 102),
	}
	assert.NoError(t, ValidateSeries(ordered))

	duplicate := []Candle{
		validCandle(base, 100),
		validCandle(base, 101),
	}
	assert.Error(t, ValidateSeries(duplicate))

	backwards := []Candle{
		validCandle(base.Add(4*time.Hour), 100),
		validCandle(base, 101),
	}
	assert.Error(t, ValidateSeries(backwards))
}

func TestCountAfter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var candles []Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, validCandle(base.Add(time.Duration(i)*4*time.Hour), 100))
	}

	// Entry on candle 6 leaves three newer candles.
	assert.Equal(t, 3, CountAfter(candles, candles[6].Timestamp))
	// Entry on the latest candle leaves none.
	assert.Equal(t, 0, CountAfter(candles, candles[9].Timestamp))
	// Entry before the window counts every candle.
	assert.Equal(t, 10, CountAfter(candles, base.Add(-time.Hour)))
}

func TestSeriesExtraction(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		validCandle(base, 100),
		validCandle(base.Add(4*time.Hour), 105),
	}

	assert.Equal(t, []float64{100, 105}, Closes(candles))
	assert.Equal(t, []float64{101, 106}, Highs(candles))
	assert.Equal(t, []float64{99, 104}, Lows(candles))
	assert.Equal(t, []float64{100, 100}, Volumes(candles))
}
