package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/config"
	"github.com/quantfade/singularity-trader/internal/regime"
)

func TestChainStructuralVeto(t *testing.T) {
	cfg, err := config.Preset("full")
	assert.NoError(t, err)
	ch := NewChain(&cfg)

	sig := regime.Signal{
		Type:        regime.BullishSingularity,
		Confidence:  0.6,
		VolumeRatio: 1.5, // active selling, structural stage vetoes
	}

	res := ch.Apply(nil, sig, regime.Short)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Len(t, res.Verdicts, 1)
	assert.Equal(t, StageStructural, res.Verdicts[0].Stage)
}

func TestChainDirectApproval(t *testing.T) {
	cfg, err := config.Preset("full")
	assert.NoError(t, err)
	ch := NewChain(&cfg)

	sig := regime.Signal{
		Type:         regime.BullishSingularity,
		Confidence:   0.6,
		Tension:      -0.75,
		Acceleration: 0.005,
		VolumeRatio:  0.8,
	}

	res := ch.Apply(nil, sig, regime.Long)
	assert.Equal(t, Approved, res.Outcome)
	// Structural, harmonic and confirmation all ran.
	assert.Len(t, res.Verdicts, 3)
}

func TestChainDefersWeakCandidate(t *testing.T) {
	cfg, err := config.Preset("full")
	assert.NoError(t, err)
	ch := NewChain(&cfg)

	sig := regime.Signal{
		Type:         regime.BearishSingularity,
		Confidence:   0.7,
		Tension:      0.6,
		Acceleration: -0.03,
		VolumeRatio:  0.8,
		Price:        100,
	}

	res := ch.Apply(nil, sig, regime.Short)
	assert.Equal(t, Deferred, res.Outcome)
	assert.Len(t, ch.Confirmation().Pending(), 1)
}

func TestChainWithoutConfirmationApproves(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)
	ch := NewChain(&cfg)
	assert.False(t, ch.ConfirmationEnabled())

	sig := regime.Signal{
		Type:        regime.BearishSingularity,
		Confidence:  0.7,
		Tension:     0.4,
		VolumeRatio: 0.8,
	}

	res := ch.Apply(nil, sig, regime.Short)
	assert.Equal(t, Approved, res.Outcome)
	assert.Len(t, res.Verdicts, 1)
	assert.Equal(t, 0.7, res.Confidence)
}

func TestChainConfidenceCappedAtOne(t *testing.T) {
	cfg, err := config.Preset("v705")
	assert.NoError(t, err)
	cfg.Harmonic.Enabled = true
	ch := NewChain(&cfg)

	sig := regime.Signal{
		Type:       regime.BearishSingularity,
		Confidence: 0.99,
	}

	// No pattern confluence on an empty window: confidence unchanged.
	res := ch.Apply(nil, sig, regime.Short)
	assert.Equal(t, Approved, res.Outcome)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}
