// Package pivot detects local price extrema and derives dynamic stop/target
// levels from them.
package pivot

import (
	"time"

	"github.com/quantfade/singularity-trader/internal/candle"
)

type Kind string

const (
	Peak   Kind = "peak"
	Valley Kind = "valley"
)

// Pivot is a confirmed local extremum. Pivots are derived, never persisted;
// they are recomputed from the window on each evaluation.
type Pivot struct {
	Index     int
	Price     float64
	Kind      Kind
	Timestamp time.Time
}

// DetectPivots scans the window for strict local extrema. Candle i is a peak
// iff its high strictly exceeds the highs of all depth candles on both
// sides; the valley rule is symmetric on lows. Candles within depth of
// either end of the window are never classified since the symmetric rule
// cannot see past the boundary.
func DetectPivots(candles []candle.Candle, depth int) []Pivot {
	if depth < 1 || len(candles) < 2*depth+1 {
		return nil
	}

	highs := candle.Highs(candles)
	lows := candle.Lows(candles)

	var pivots []Pivot
	for i := depth; i < len(candles)-depth; i++ {
		isPeak := true
		for j := 1; j <= depth; j++ {
			if highs[i] <= highs[i-j] || highs[i] <= highs[i+j] {
				isPeak = false
				break
			}
		}
		if isPeak {
			pivots = append(pivots, Pivot{
				Index:     i,
				Price:     highs[i],
				Kind:      Peak,
				Timestamp: candles[i].Timestamp,
			})
			continue
		}

		isValley := true
		for j := 1; j <= depth; j++ {
			if lows[i] >= lows[i-j] || lows[i] >= lows[i+j] {
				isValley = false
				break
			}
		}
		if isValley {
			pivots = append(pivots, Pivot{
				Index:     i,
				Price:     lows[i],
				Kind:      Valley,
				Timestamp: candles[i].Timestamp,
			})
		}
	}
	return pivots
}

// Swings reduces a pivot sequence to alternating extrema: consecutive
// pivots of the same kind collapse to the more extreme one.
func Swings(pivots []Pivot) []Pivot {
	var swings []Pivot
	for _, p := range pivots {
		if len(swings) == 0 || swings[len(swings)-1].Kind != p.Kind {
			swings = append(swings, p)
			continue
		}
		last := &swings[len(swings)-1]
		if p.Kind == Peak && p.Price > last.Price {
			*last = p
		}
		if p.Kind == Valley && p.Price < last.Price {
			*last = p
		}
	}
	return swings
}
