package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/pivot"
	"github.com/quantfade/singularity-trader/internal/regime"
)

func defaultHarmonic(t *testing.T) *HarmonicConfirmer {
	t.Helper()
	cfg, err := config.New()
	assert.NoError(t, err)
	return NewHarmonicConfirmer(cfg.Harmonic)
}

// zigzag interpolates a strictly monotonic candle path through the given
// turning points, with steps candles per leg, so each interior turning
// point becomes a strict pivot.
func zigzag(points []float64, steps int) []candle.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{points[0]}
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		for k := 1; k <= steps; k++ {
			prices = append(prices, from+(to-from)*float64(k)/float64(steps))
		}
	}

	candles := make([]candle.Candle, len(prices))
	for i, p := range prices {
		candles[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    100,
			Symbol:    "BTCUSDT",
			Timeframe: "1h",
		}
	}
	return candles
}

func TestScanFindsBullishABCD(t *testing.T) {
	h := defaultHarmonic(t)

	// A 200, B 100, C 161.8, D 34.6: BC/AB = 0.618 and CD/AB = 1.272.
	candles := zigzag([]float64{150, 200, 100, 161.8, 34.6, 80}, 6)

	patterns := h.Scan(candles)
	assert.NotEmpty(t, patterns)

	found := false
	for _, p := range patterns {
		if p.Family == PatternABCD {
			found = true
			assert.Equal(t, regime.Long, p.Direction)
			assert.InDelta(t, 34.6, p.Completion, 1e-9)
			assert.Greater(t, p.Confidence, 0.9)
		}
	}
	assert.True(t, found, "expected an ABCD pattern")
}

func TestScanFlatSeriesFindsNothing(t *testing.T) {
	h := defaultHarmonic(t)
	candles := zigzag([]float64{100, 100.1, 100, 100.1, 100}, 6)
	assert.Empty(t, h.Scan(candles))
}

func TestCheckBoostsMatchingDirection(t *testing.T) {
	h := defaultHarmonic(t)
	candles := zigzag([]float64{150, 200, 100, 161.8, 34.6, 80}, 6)

	sig := regime.Signal{Price: 34.6}

	v := h.Check(candles, sig, regime.Long)
	assert.True(t, v.Pass)
	assert.Greater(t, v.Boost, 0.0)

	// Direction mismatch contributes nothing, and never vetoes.
	v = h.Check(candles, sig, regime.Short)
	assert.True(t, v.Pass)
	assert.Equal(t, 0.0, v.Boost)
}

func TestCheckIgnoresDistantCompletions(t *testing.T) {
	h := defaultHarmonic(t)
	candles := zigzag([]float64{150, 200, 100, 161.8, 34.6, 80}, 6)

	// Price far from the completion point.
	v := h.Check(candles, regime.Signal{Price: 80}, regime.Long)
	assert.True(t, v.Pass)
	assert.Equal(t, 0.0, v.Boost)
}

func TestMatchXABCDFamilies(t *testing.T) {
	h := defaultHarmonic(t)

	x := pivot.Pivot{Price: 100, Kind: pivot.Valley}
	a := pivot.Pivot{Price: 200, Kind: pivot.Peak}

	cases := []struct {
		family PatternFamily
		b, c   float64
		d      float64
	}{
		{PatternGartley, 138.2, 176.4, 121.4},
		{PatternButterfly, 121.4, 169.98, 73},
		{PatternBat, 155, 185, 111.4},
		{PatternCrab, 150, 180, 38.2},
	}
	for _, tc := range cases {
		b := pivot.Pivot{Price: tc.b, Kind: pivot.Valley}
		c := pivot.Pivot{Price: tc.c, Kind: pivot.Peak}
		d := pivot.Pivot{Price: tc.d, Kind: pivot.Valley}

		pat, ok := h.matchXABCD(tc.family, x, a, b, c, d)
		assert.True(t, ok, string(tc.family))
		assert.Equal(t, tc.family, pat.Family)
		assert.Equal(t, regime.Long, pat.Direction, string(tc.family))
	}

	// Ratios far outside tolerance never match.
	badB := pivot.Pivot{Price: 199, Kind: pivot.Valley}
	c := pivot.Pivot{Price: 176.4, Kind: pivot.Peak}
	d := pivot.Pivot{Price: 121.4, Kind: pivot.Valley}
	_, ok := h.matchXABCD(PatternGartley, x, a, badB, c, d)
	assert.False(t, ok)
}
