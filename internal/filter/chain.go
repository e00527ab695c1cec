package filter

import (
	"github.com/quantfade/singularity-trader/internal/candle"
	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/regime"
)

// Stage names used in verdicts and decision records.
const (
	StageStructural   = "structural"
	StageHarmonic     = "harmonic"
	StageConfirmation = "confirmation"
)

// Outcome is the chain's aggregate result for one candidate.
type Outcome string

const (
	Approved Outcome = "approved"
	Deferred Outcome = "deferred"
	Rejected Outcome = "rejected"
)

// Result bundles the per-stage verdicts with the aggregate outcome and the
// boost-adjusted confidence of the candidate.
type Result struct {
	Outcome    Outcome
	Verdicts   []Verdict
	Confidence float64
}

// Chain runs the filter stages in order against a tradeable signal. The
// structural stage can veto, the harmonic stage only adjusts confidence, and
// the confirmation stage decides between immediate entry and deferral.
// Stages B and C are individually switchable through configuration.
type Chain struct {
	structural   *Structural
	harmonic     *HarmonicConfirmer
	confirmation *Confirmation

	harmonicOn     bool
	confirmationOn bool
}

func NewChain(cfg *config.Config) *Chain {
	return &Chain{
		structural:     NewStructural(cfg.Structural),
		harmonic:       NewHarmonicConfirmer(cfg.Harmonic),
		confirmation:   NewConfirmation(cfg.Confirmation),
		harmonicOn:     cfg.Harmonic.Enabled,
		confirmationOn: cfg.Confirmation.Enabled,
	}
}

// Apply filters one candidate through every active stage. The candle slice
// must be the same window the signal was classified from.
func (ch *Chain) Apply(candles []candle.Candle, sig regime.Signal, direction regime.Direction) Result {
	res := Result{Confidence: sig.Confidence}

	v := ch.structural.Check(sig)
	res.Verdicts = append(res.Verdicts, v)
	if !v.Pass {
		res.Outcome = Rejected
		return res
	}

	if ch.harmonicOn {
		v = ch.harmonic.Check(candles, sig, direction)
		res.Verdicts = append(res.Verdicts, v)
		res.Confidence += v.Boost
		if res.Confidence > 1 {
			res.Confidence = 1
		}
	}

	if ch.confirmationOn {
		v = ch.confirmation.Evaluate(sig, direction)
		res.Verdicts = append(res.Verdicts, v)
		switch {
		case v.Pass:
			res.Outcome = Approved
		case v.Deferred:
			res.Outcome = Deferred
		default:
			res.Outcome = Rejected
		}
		return res
	}

	res.Outcome = Approved
	return res
}

// Confirmation exposes the pending-signal stage so callers can advance it
// each cycle and persist its registry.
func (ch *Chain) Confirmation() *Confirmation { return ch.confirmation }

// ConfirmationEnabled reports whether stage C participates in decisions.
func (ch *Chain) ConfirmationEnabled() bool { return ch.confirmationOn }
