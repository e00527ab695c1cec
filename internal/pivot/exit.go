package pivot

import (
	"fmt"

	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/regime"
)

// ExitKind tags how an exit was produced.
type ExitKind string

const (
	ExitStop     ExitKind = "stop_loss"
	ExitTarget   ExitKind = "take_profit"
	ExitFallback ExitKind = "fallback"
	ExitTimeout  ExitKind = "timeout"
)

// Exit is a triggered exit decision.
type Exit struct {
	Kind   ExitKind
	Reason string
	Price  float64
}

// Levels are the stop/target prices in force for one evaluation. They are
// recomputed from the freshest pivot set on every call while a position is
// open, never cached.
type Levels struct {
	TakeProfit float64
	StopLoss   float64
	// Each level tracks its own source: a level with no qualifying pivot
	// falls back to the fixed percentage and is labeled accordingly.
	StopFromPivot bool
	TakeFromPivot bool
}

// ExitManager derives dynamic stop/target levels from pivots and owns the
// fixed-percentage fallback and the hold-period timeout.
type ExitManager struct {
	params config.ExitParams
}

func NewExitManager(params config.ExitParams) *ExitManager {
	return &ExitManager{params: params}
}

// DeriveStops computes take-profit and stop-loss for an entry from the
// pivot set. The long side buffers both levels by LongBuffer; the short
// side uses the tighter ShortStopBuffer for its stop and overrides with the
// fallback stop when the structural stop is further than ShortStopMaxPct
// from entry. The asymmetry is an intentional risk policy.
func (m *ExitManager) DeriveStops(pivots []Pivot, entry float64, direction regime.Direction) Levels {
	p := m.params

	if direction == regime.Long {
		lv := Levels{
			TakeProfit: entry * (1 + p.FallbackTPPct),
			StopLoss:   entry * (1 - p.FallbackSLPct),
		}
		if v, ok := nearestValleyBelow(pivots, entry); ok {
			lv.StopLoss = entry - (entry-v.Price)*p.LongBuffer
			lv.StopFromPivot = true
		}
		if pk, ok := nearestPeakAbove(pivots, entry); ok {
			lv.TakeProfit = entry + (pk.Price-entry)*p.LongBuffer
			lv.TakeFromPivot = true
		}
		return lv
	}

	// Short side.
	lv := Levels{
		TakeProfit: entry * (1 - p.FallbackTPPct),
		StopLoss:   entry * (1 + p.FallbackSLPct),
	}
	if pk, ok := nearestPeakAbove(pivots, entry); ok {
		dist := (pk.Price - entry) * p.ShortStopBuffer
		if dist/entry > p.ShortStopMaxPct {
			lv.StopLoss = entry * (1 + p.FallbackSLPct)
		} else {
			lv.StopLoss = entry + dist
			lv.StopFromPivot = true
		}
	}
	if v, ok := nearestValleyBelow(pivots, entry); ok {
		lv.TakeProfit = entry - (entry-v.Price)*p.LongBuffer
		lv.TakeFromPivot = true
	}
	return lv
}

// CheckExit evaluates the pivot-derived levels, the fixed-percentage
// manager, and the hold-period timeout against the latest close. The
// percentage manager runs independently of pivot state, so it can close a
// position the structural levels would have kept open. The timeout fires
// irrespective of price. Identical inputs produce identical results.
func (m *ExitManager) CheckExit(candles []candle.Candle, entry float64, direction regime.Direction, holdPeriods int) (Exit, Levels, bool) {
	p := m.params
	price := candles[len(candles)-1].Close

	pivots := DetectPivots(candles, p.Depth)
	levels := m.DeriveStops(pivots, entry, direction)

	// Levels that had no pivot to derive from are the fixed-percentage
	// substitutes and are labeled as such, per level.
	stopKind, stopSource := ExitFallback, "fallback"
	if levels.StopFromPivot {
		stopKind, stopSource = ExitStop, "pivot"
	}
	targetKind, targetSource := ExitFallback, "fallback"
	if levels.TakeFromPivot {
		targetKind, targetSource = ExitTarget, "pivot"
	}

	if direction == regime.Long {
		if price <= levels.StopLoss {
			return Exit{
				Kind:   stopKind,
				Reason: fmt.Sprintf("%s stop loss ($%.2f)", stopSource, levels.StopLoss),
				Price:  levels.StopLoss,
			}, levels, true
		}
		if price >= levels.TakeProfit {
			return Exit{
				Kind:   targetKind,
				Reason: fmt.Sprintf("%s take profit ($%.2f)", targetSource, levels.TakeProfit),
				Price:  levels.TakeProfit,
			}, levels, true
		}
	} else {
		if price >= levels.StopLoss {
			return Exit{
				Kind:   stopKind,
				Reason: fmt.Sprintf("%s stop loss ($%.2f)", stopSource, levels.StopLoss),
				Price:  levels.StopLoss,
			}, levels, true
		}
		if price <= levels.TakeProfit {
			return Exit{
				Kind:   targetKind,
				Reason: fmt.Sprintf("%s take profit ($%.2f)", targetSource, levels.TakeProfit),
				Price:  levels.TakeProfit,
			}, levels, true
		}
	}

	// Fixed-percentage manager, independent of pivot state. When the pivot
	// levels are wider than these thresholds it closes the position first.
	pnl := pnlPct(entry, price, direction)
	if pnl <= -p.FallbackSLPct {
		return Exit{
			Kind:   ExitFallback,
			Reason: fmt.Sprintf("fallback stop loss (%.2f%%)", pnl*100),
			Price:  price,
		}, levels, true
	}
	if pnl >= p.FallbackTPPct {
		return Exit{
			Kind:   ExitFallback,
			Reason: fmt.Sprintf("fallback take profit (%.2f%%)", pnl*100),
			Price:  price,
		}, levels, true
	}

	if holdPeriods >= p.MaxHoldPeriods {
		return Exit{
			Kind:   ExitTimeout,
			Reason: fmt.Sprintf("hold period timeout (%d periods)", holdPeriods),
			Price:  price,
		}, levels, true
	}

	return Exit{}, levels, false
}

// nearestValleyBelow returns the most recent valley priced below entry.
func nearestValleyBelow(pivots []Pivot, entry float64) (Pivot, bool) {
	for i := len(pivots) - 1; i >= 0; i-- {
		if pivots[i].Kind == Valley && pivots[i].Price < entry {
			return pivots[i], true
		}
	}
	return Pivot{}, false
}

// nearestPeakAbove returns the most recent peak priced above entry.
func nearestPeakAbove(pivots []Pivot, entry float64) (Pivot, bool) {
	for i := len(pivots) - 1; i >= 0; i-- {
		if pivots[i].Kind == Peak && pivots[i].Price > entry {
			return pivots[i], true
		}
	}
	return Pivot{}, false
}

func pnlPct(entry, price float64, direction regime.Direction) float64 {
	if direction == regime.Long {
		return (price - entry) / entry
	}
	return (entry - price) / entry
}
