package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfade/singularity-trader/internal/config"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	cfg, err := config.New()
	assert.NoError(t, err)
	return NewClassifier(cfg.Classifier)
}

func TestClassifyBearishSingularity(t *testing.T) {
	c := defaultClassifier(t)

	sigType, confidence, _, ok := c.Classify(0.40, -0.03)
	assert.True(t, ok)
	assert.Equal(t, BearishSingularity, sigType)
	assert.Equal(t, 0.7, confidence)
}

func TestClassifyBullishSingularity(t *testing.T) {
	c := defaultClassifier(t)

	sigType, confidence, _, ok := c.Classify(-0.40, 0.03)
	assert.True(t, ok)
	assert.Equal(t, BullishSingularity, sigType)
	assert.Equal(t, 0.6, confidence)
}

func TestClassifyOscillation(t *testing.T) {
	c := defaultClassifier(t)

	sigType, confidence, _, ok := c.Classify(0.10, 0.005)
	assert.True(t, ok)
	assert.Equal(t, Oscillation, sigType)
	assert.Equal(t, 0.8, confidence)
}

func TestClassifyEdgeOscillations(t *testing.T) {
	c := defaultClassifier(t)

	// Elevated tension with quiet acceleration but outside the balanced
	// band.
	sigType, _, _, ok := c.Classify(0.60, 0.005)
	assert.True(t, ok)
	assert.Equal(t, HighOscillation, sigType)

	sigType, _, _, ok = c.Classify(-0.60, -0.005)
	assert.True(t, ok)
	assert.Equal(t, LowOscillation, sigType)
}

func TestClassifyPriority(t *testing.T) {
	c := defaultClassifier(t)

	// High tension with falling acceleration satisfies both the bearish
	// rule and the high oscillation band; the first rule wins.
	sigType, _, _, ok := c.Classify(0.40, -0.03)
	assert.True(t, ok)
	assert.Equal(t, BearishSingularity, sigType)

	// Low tension inside the balanced band classifies as oscillation even
	// though tension is near the band edge.
	sigType, _, _, ok = c.Classify(0.45, 0.005)
	assert.True(t, ok)
	assert.Equal(t, Oscillation, sigType)
}

func TestClassifyNoMatch(t *testing.T) {
	c := defaultClassifier(t)

	// Elevated tension with loud acceleration in the same direction
	// matches nothing.
	_, _, _, ok := c.Classify(0.60, 0.05)
	assert.False(t, ok)

	// Extreme negative tension with falling acceleration matches nothing.
	_, _, _, ok = c.Classify(-0.60, -0.05)
	assert.False(t, ok)
}

func TestDirectionMapping(t *testing.T) {
	cases := []struct {
		sigType   SignalType
		direction Direction
		tradeable bool
	}{
		{BearishSingularity, Long, true},
		{LowOscillation, Long, true},
		{BullishSingularity, Short, true},
		{HighOscillation, Short, true},
		{Oscillation, "", false},
	}
	for _, tc := range cases {
		direction, ok := tc.sigType.Direction()
		assert.Equal(t, tc.tradeable, ok, string(tc.sigType))
		assert.Equal(t, tc.direction, direction, string(tc.sigType))
	}
}
