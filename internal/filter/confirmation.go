package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/regime"
)

// Snapshot carries the market measurements one confirmation cycle sees.
type Snapshot struct {
	Tension      float64   `json:"tension"`
	Acceleration float64   `json:"acceleration"`
	VolumeRatio  float64   `json:"volume_ratio"`
	Price        float64   `json:"price"`
	Timestamp    time.Time `json:"timestamp"`
}

// PendingSignal is a candidate entry parked for multi-period confirmation.
type PendingSignal struct {
	ID        string           `json:"id"`
	Signal    regime.Signal    `json:"signal"`
	Direction regime.Direction `json:"direction"`
	Waited    int              `json:"waited"`
	// Golden is set at confirmation time when the accelerated criteria
	// also held; it grades the entry, it never gates it.
	Golden bool `json:"golden"`
}

// Confirmation is the third filter stage. Strong readings enter directly;
// everything else is parked as a pending signal and must reconfirm within a
// bounded wait window or be purged.
type Confirmation struct {
	params  config.ConfirmationParams
	pending []PendingSignal
}

func NewConfirmation(params config.ConfirmationParams) *Confirmation {
	return &Confirmation{params: params}
}

// Evaluate judges a fresh candidate. A direct verdict passes immediately.
// Otherwise the candidate is registered for later reconfirmation, at most
// one per direction, and the verdict fails with a deferral reason.
func (c *Confirmation) Evaluate(sig regime.Signal, direction regime.Direction) Verdict {
	p := c.params

	if direction == regime.Short {
		if ok, why := c.directShort(sig); ok {
			return Verdict{Stage: StageConfirmation, Pass: true, Reason: why}
		}
		if sig.Tension < p.ShortTensionMin {
			return Verdict{Stage: StageConfirmation, Pass: false,
				Reason: fmt.Sprintf("tension %.2f below short candidate floor %.2f", sig.Tension, p.ShortTensionMin)}
		}
	} else {
		if ok, why := c.directLong(sig); ok {
			return Verdict{Stage: StageConfirmation, Pass: true, Reason: why}
		}
		if sig.Tension > p.LongTensionMax {
			return Verdict{Stage: StageConfirmation, Pass: false,
				Reason: fmt.Sprintf("tension %.2f above long candidate ceiling %.2f", sig.Tension, p.LongTensionMax)}
		}
	}

	if c.hasPending(direction) {
		return Verdict{Stage: StageConfirmation, Pass: false,
			Reason: fmt.Sprintf("%s candidate already awaiting confirmation", direction)}
	}

	ps := PendingSignal{
		ID:        uuid.New().String(),
		Signal:    sig,
		Direction: direction,
	}
	c.pending = append(c.pending, ps)

	return Verdict{Stage: StageConfirmation, Pass: false, Deferred: true,
		Reason: fmt.Sprintf("parked for confirmation, eligible after %d periods", p.WaitMin)}
}

// Advance runs one confirmation cycle over the pending registry with the
// latest market snapshot. Reconfirmation inside [wait_min, wait_max] is the
// only way a candidate confirms; a confirmed candidate is then graded golden
// or ordinary. It returns the signals confirmed this cycle and the ones
// purged for overstaying the wait window.
func (c *Confirmation) Advance(snap Snapshot) (confirmed, purged []PendingSignal) {
	p := c.params

	remaining := c.pending[:0]
	for _, ps := range c.pending {
		ps.Waited++

		if ps.Waited > p.MaxWait {
			purged = append(purged, ps)
			continue
		}
		if ps.Waited >= p.WaitMin && ps.Waited <= p.WaitMax && c.reconfirms(ps, snap) {
			ps.Golden = c.golden(ps, snap)
			confirmed = append(confirmed, ps)
			continue
		}
		remaining = append(remaining, ps)
	}
	c.pending = remaining
	return confirmed, purged
}

// Pending returns a copy of the registry, ordered by registration.
func (c *Confirmation) Pending() []PendingSignal {
	out := make([]PendingSignal, len(c.pending))
	copy(out, c.pending)
	return out
}

// Snapshot exports the registry for persistence.
func (c *Confirmation) Snapshot() []PendingSignal { return c.Pending() }

// Restore replaces the registry, typically after a restart.
func (c *Confirmation) Restore(pending []PendingSignal) {
	c.pending = make([]PendingSignal, len(pending))
	copy(c.pending, pending)
}

func (c *Confirmation) directShort(sig regime.Signal) (bool, string) {
	p := c.params
	if sig.Tension < p.ShortTensionDirect {
		return false, ""
	}
	if sig.VolumeRatio < p.ShortVolumeIdealMin || sig.VolumeRatio > p.ShortVolumeIdealMax {
		return false, ""
	}
	ratio, ok := tensionAccelRatio(sig.Tension, sig.Acceleration)
	if !ok || ratio < p.ShortRatioMin || ratio > p.ShortRatioMax {
		return false, ""
	}
	return true, fmt.Sprintf("direct short entry (T=%.2f, ratio=%.0f)", sig.Tension, ratio)
}

func (c *Confirmation) directLong(sig regime.Signal) (bool, string) {
	p := c.params
	if sig.Tension > p.LongTensionStrong {
		return false, ""
	}
	if sig.Acceleration <= 0 {
		return false, ""
	}
	ratio := math.Abs(sig.Tension) / sig.Acceleration
	if ratio < p.LongRatioMin {
		return false, ""
	}
	return true, fmt.Sprintf("direct long entry (T=%.2f, ratio=%.0f)", sig.Tension, ratio)
}

// reconfirms checks that the regime still points the same way with cooled
// volume after the wait.
func (c *Confirmation) reconfirms(ps PendingSignal, snap Snapshot) bool {
	p := c.params
	if snap.VolumeRatio >= p.ReconfirmVolume {
		return false
	}
	if ps.Direction == regime.Short {
		return snap.Tension > p.ShortReconfirm && snap.Acceleration < 0
	}
	return snap.Tension < p.LongReconfirm && snap.Acceleration > 0
}

// golden grades a confirmed entry: tension deepening in the signal's favor,
// price already moving the predicted way, or a long whose
// tension/acceleration ratio shows a stretched spring. It never confirms on
// its own.
func (c *Confirmation) golden(ps PendingSignal, snap Snapshot) bool {
	p := c.params
	origin := ps.Signal

	if origin.Tension != 0 {
		move := (snap.Tension - origin.Tension) / math.Abs(origin.Tension) * 100
		if ps.Direction == regime.Short && move >= p.GoldenTensionPct {
			return true
		}
		if ps.Direction == regime.Long && move <= -p.GoldenTensionPct {
			return true
		}
	}

	if origin.Price > 0 {
		drift := (snap.Price - origin.Price) / origin.Price * 100
		if ps.Direction == regime.Short && drift <= -p.GoldenPricePct {
			return true
		}
		if ps.Direction == regime.Long && drift >= p.GoldenPricePct {
			return true
		}
	}

	if ps.Direction == regime.Long && snap.Acceleration > 0 {
		if math.Abs(snap.Tension)/snap.Acceleration >= p.LongRatioMin {
			return true
		}
	}
	return false
}

func (c *Confirmation) hasPending(direction regime.Direction) bool {
	for _, ps := range c.pending {
		if ps.Direction == direction {
			return true
		}
	}
	return false
}

// tensionAccelRatio guards the |T|/|a| division near zero acceleration.
func tensionAccelRatio(tension, accel float64) (float64, bool) {
	a := math.Abs(accel)
	if a < 1e-9 {
		return 0, false
	}
	return math.Abs(tension) / a, true
}
