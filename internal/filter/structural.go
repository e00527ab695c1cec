// Package filter implements the staged entry filter chain that sits between
// regime classification and position entry. Stage A applies structural
// market-condition checks, stage B looks for harmonic pattern confluence,
// and stage C demands statistical confirmation before any entry commits.
package filter

import (
	"fmt"

	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/regime"
)

// Verdict is one stage's judgement on a candidate signal.
type Verdict struct {
	Stage  string
	Pass   bool
	Reason string
	// Boost is a confidence adjustment contributed by advisory stages.
	Boost float64
	// Deferred marks a failing verdict whose candidate was parked for
	// later confirmation rather than discarded.
	Deferred bool
}

// Structural is the first filter stage. It vetoes entries whose surrounding
// market structure contradicts the signal: chasing extended prices, rising
// acceleration against a fade, or volume that does not fit the setup.
type Structural struct {
	params config.StructuralParams
}

func NewStructural(params config.StructuralParams) *Structural {
	return &Structural{params: params}
}

// Check evaluates a classified signal against price extension, acceleration
// and volume context. Signal types without a specific rule set pass.
func (s *Structural) Check(sig regime.Signal) Verdict {
	p := s.params

	switch sig.Type {
	case regime.HighOscillation:
		if sig.PriceVsEMA > p.HighOscEMAMax {
			return s.reject(fmt.Sprintf("price extended %.2f%% above EMA", sig.PriceVsEMA*100))
		}
		if sig.Acceleration >= 0 {
			return s.reject(fmt.Sprintf("acceleration %.4f not falling", sig.Acceleration))
		}
		if sig.VolumeRatio > p.HighOscVolumeMax {
			return s.reject(fmt.Sprintf("volume ratio %.2f too high for a fade", sig.VolumeRatio))
		}
	case regime.LowOscillation:
		// Depressed-tension longs are taken unconditionally.
	case regime.BullishSingularity:
		if sig.VolumeRatio > p.BullishVolumeMax {
			return s.reject(fmt.Sprintf("volume ratio %.2f shows active selling", sig.VolumeRatio))
		}
		if sig.PriceVsEMA > p.BullishEMAMax {
			return s.reject(fmt.Sprintf("price %.2f%% above EMA, no dislocation", sig.PriceVsEMA*100))
		}
	case regime.BearishSingularity:
		if sig.PriceVsEMA < p.BearishEMAMin {
			return s.reject(fmt.Sprintf("price %.2f%% below EMA, already collapsed", sig.PriceVsEMA*100))
		}
	}

	return Verdict{Stage: StageStructural, Pass: true, Reason: "structure consistent with signal"}
}

func (s *Structural) reject(reason string) Verdict {
	return Verdict{Stage: StageStructural, Pass: false, Reason: reason}
}
