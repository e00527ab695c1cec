package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/regime"
)

func defaultStructural(t *testing.T) *Structural {
	t.Helper()
	cfg, err := config.New()
	assert.NoError(t, err)
	return NewStructural(cfg.Structural)
}

func TestStructuralHighOscillation(t *testing.T) {
	s := defaultStructural(t)

	base := regime.Signal{
		Type:         regime.HighOscillation,
		Acceleration: -0.005,
		VolumeRatio:  0.9,
		PriceVsEMA:   0.01,
	}
	assert.True(t, s.Check(base).Pass)

	extended := base
	extended.PriceVsEMA = 0.03
	v := s.Check(extended)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Reason, "extended")

	rising := base
	rising.Acceleration = 0.001
	assert.False(t, s.Check(rising).Pass)

	loud := base
	loud.VolumeRatio = 1.2
	assert.False(t, s.Check(loud).Pass)
}

func TestStructuralLowOscillationAlwaysPasses(t *testing.T) {
	s := defaultStructural(t)

	// Even hostile context does not veto a depressed-tension long.
	v := s.Check(regime.Signal{
		Type:         regime.LowOscillation,
		Acceleration: 0.05,
		VolumeRatio:  3.0,
		PriceVsEMA:   0.10,
	})
	assert.True(t, v.Pass)
}

func TestStructuralBullishSingularity(t *testing.T) {
	s := defaultStructural(t)

	base := regime.Signal{
		Type:        regime.BullishSingularity,
		VolumeRatio: 0.8,
		PriceVsEMA:  0.01,
	}
	assert.True(t, s.Check(base).Pass)

	selling := base
	selling.VolumeRatio = 1.0
	assert.False(t, s.Check(selling).Pass)

	noDislocation := base
	noDislocation.PriceVsEMA = 0.06
	assert.False(t, s.Check(noDislocation).Pass)
}

func TestStructuralBearishSingularity(t *testing.T) {
	s := defaultStructural(t)

	base := regime.Signal{
		Type:       regime.BearishSingularity,
		PriceVsEMA: 0.01,
	}
	assert.True(t, s.Check(base).Pass)

	collapsed := base
	collapsed.PriceVsEMA = -0.08
	v := s.Check(collapsed)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Reason, "collapsed")
}

func TestStructuralUnknownTypePasses(t *testing.T) {
	s := defaultStructural(t)
	assert.True(t, s.Check(regime.Signal{Type: regime.Oscillation}).Pass)
}
