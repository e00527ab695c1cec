package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/pivot"
	"github.com/quantfade/singularity-trader/internal/regime"
)

// PatternFamily names a harmonic pattern family.
type PatternFamily string

const (
	PatternABCD      PatternFamily = "ABCD"
	PatternGartley   PatternFamily = "Gartley"
	PatternButterfly PatternFamily = "Butterfly"
	PatternBat       PatternFamily = "Bat"
	PatternCrab      PatternFamily = "Crab"
)

// Pattern is a completed harmonic formation found in recent swings.
type Pattern struct {
	Family     PatternFamily
	Direction  regime.Direction
	Confidence float64
	// Completion is the D point price where the pattern resolves.
	Completion  float64
	CompletedAt time.Time
}

// HarmonicConfirmer is the second, advisory filter stage. It scans recent
// swing structure for completed Fibonacci patterns that agree with the
// candidate direction and contributes a confidence boost. It never vetoes.
type HarmonicConfirmer struct {
	params config.HarmonicParams
}

func NewHarmonicConfirmer(params config.HarmonicParams) *HarmonicConfirmer {
	return &HarmonicConfirmer{params: params}
}

// Check scans for pattern confluence. The verdict always passes; a matching
// completed pattern near the current price sets Boost above zero.
func (h *HarmonicConfirmer) Check(candles []candle.Candle, sig regime.Signal, direction regime.Direction) Verdict {
	patterns := h.Scan(candles)
	price := sig.Price

	best := Verdict{Stage: StageHarmonic, Pass: true, Reason: "no harmonic confluence"}
	for _, pat := range patterns {
		if pat.Direction != direction {
			continue
		}
		if price <= 0 || math.Abs(pat.Completion-price)/price > h.params.PriceProximity {
			continue
		}
		boost := pat.Confidence * h.weight(pat.Family)
		if boost > best.Boost {
			best.Boost = boost
			best.Reason = fmt.Sprintf("%s %s completed near $%.2f", pat.Family, pat.Direction, pat.Completion)
		}
	}
	return best
}

// Scan extracts alternating swings from the trailing window and tests every
// recent five-point (or four-point ABCD) sequence against the family ratio
// templates. Only patterns completing inside the lookback horizon count.
func (h *HarmonicConfirmer) Scan(candles []candle.Candle) []Pattern {
	p := h.params

	if len(candles) > p.WindowCandles {
		candles = candles[len(candles)-p.WindowCandles:]
	}
	if len(candles) == 0 {
		return nil
	}

	swings := pivot.Swings(pivot.DetectPivots(candles, p.SwingDepth))
	if len(swings) < 4 {
		return nil
	}

	horizon := candles[len(candles)-1].Timestamp.Add(-p.Lookback)

	var patterns []Pattern
	// Walk D points from most recent backwards; stop once D leaves the
	// lookback horizon since earlier completions cannot qualify either.
	for di := len(swings) - 1; di >= 3; di-- {
		d := swings[di]
		if d.Timestamp.Before(horizon) {
			break
		}

		if pat, ok := h.matchABCD(swings[di-3], swings[di-2], swings[di-1], d); ok {
			patterns = append(patterns, pat)
		}
		if di >= 4 {
			x, a, b, c := swings[di-4], swings[di-3], swings[di-2], swings[di-1]
			for _, fam := range []PatternFamily{PatternGartley, PatternButterfly, PatternBat, PatternCrab} {
				if pat, ok := h.matchXABCD(fam, x, a, b, c, d); ok {
					patterns = append(patterns, pat)
				}
			}
		}
	}
	return patterns
}

func (h *HarmonicConfirmer) weight(f PatternFamily) float64 {
	switch f {
	case PatternABCD:
		return h.params.WeightABCD
	case PatternGartley:
		return h.params.WeightGartley
	case PatternButterfly:
		return h.params.WeightButterfly
	case PatternBat:
		return h.params.WeightBat
	case PatternCrab:
		return h.params.WeightCrab
	}
	return 0
}

// matchABCD tests an AB=CD formation: CD extends AB by roughly 1.272 with
// BC retracing into AB. Direction follows the D point: a valley D completes
// a bullish pattern.
func (h *HarmonicConfirmer) matchABCD(a, b, c, d pivot.Pivot) (Pattern, bool) {
	ab := math.Abs(b.Price - a.Price)
	bc := math.Abs(c.Price - b.Price)
	cd := math.Abs(d.Price - c.Price)
	if ab == 0 || bc == 0 {
		return Pattern{}, false
	}

	retrace := bc / ab
	extension := cd / ab

	conf := 1.0
	if !h.near(retrace, 0.618, &conf) && !h.near(retrace, 0.786, &conf) {
		return Pattern{}, false
	}
	if !h.near(extension, 1.272, &conf) {
		return Pattern{}, false
	}

	return Pattern{
		Family:      PatternABCD,
		Direction:   directionAt(d),
		Confidence:  conf,
		Completion:  d.Price,
		CompletedAt: d.Timestamp,
	}, true
}

// matchXABCD tests the five-point families against their canonical
// retracement templates measured off the XA leg.
func (h *HarmonicConfirmer) matchXABCD(fam PatternFamily, x, a, b, c, d pivot.Pivot) (Pattern, bool) {
	xa := math.Abs(a.Price - x.Price)
	ab := math.Abs(b.Price - a.Price)
	bc := math.Abs(c.Price - b.Price)
	ad := math.Abs(d.Price - a.Price)
	if xa == 0 || ab == 0 {
		return Pattern{}, false
	}

	bRatio := ab / xa
	cRatio := bc / ab
	dRatio := ad / xa

	conf := 1.0
	switch fam {
	case PatternGartley:
		if !h.near(bRatio, 0.618, &conf) || !h.near(dRatio, 0.786, &conf) {
			return Pattern{}, false
		}
	case PatternButterfly:
		if !h.near(bRatio, 0.786, &conf) || !h.near(dRatio, 1.27, &conf) {
			return Pattern{}, false
		}
	case PatternBat:
		if !h.within(bRatio, 0.382, 0.5, &conf) || !h.near(dRatio, 0.886, &conf) {
			return Pattern{}, false
		}
	case PatternCrab:
		if !h.within(bRatio, 0.382, 0.618, &conf) || !h.near(dRatio, 1.618, &conf) {
			return Pattern{}, false
		}
	default:
		return Pattern{}, false
	}
	if !h.within(cRatio, 0.382, 0.886, &conf) {
		return Pattern{}, false
	}

	return Pattern{
		Family:      fam,
		Direction:   directionAt(d),
		Confidence:  conf,
		Completion:  d.Price,
		CompletedAt: d.Timestamp,
	}, true
}

// near reports whether v is within the configured tolerance of the target
// ratio and degrades confidence by the relative miss.
func (h *HarmonicConfirmer) near(v, target float64, conf *float64) bool {
	miss := math.Abs(v-target) / target
	if miss > h.params.Tolerance {
		return false
	}
	*conf *= 1 - miss
	return true
}

// within reports whether v lands inside [lo, hi], widened by the tolerance.
func (h *HarmonicConfirmer) within(v, lo, hi float64, conf *float64) bool {
	span := hi - lo
	if v < lo-span*h.params.Tolerance || v > hi+span*h.params.Tolerance {
		return false
	}
	if v < lo {
		*conf *= 1 - (lo-v)/span
	} else if v > hi {
		*conf *= 1 - (v-hi)/span
	}
	return true
}

func directionAt(d pivot.Pivot) regime.Direction {
	if d.Kind == pivot.Valley {
		return regime.Long
	}
	return regime.Short
}
