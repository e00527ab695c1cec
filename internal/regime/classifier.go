// Package regime maps the spectral state variables to a discrete market
// regime. Classification is contrarian at the extremes: a singularity is
// treated as an exhaustion point to fade, so the bearish reading maps to a
// long entry and the bullish reading to a short entry.
package regime

import (
	"fmt"
	"time"

	"github.com/quantfade/singularity-trader/internal/config"
)

type SignalType string

const (
	BearishSingularity SignalType = "BEARISH_SINGULARITY"
	BullishSingularity SignalType = "BULLISH_SINGULARITY"
	Oscillation        SignalType = "OSCILLATION"
	HighOscillation    SignalType = "HIGH_OSCILLATION"
	LowOscillation     SignalType = "LOW_OSCILLATION"
)

type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Direction returns the trade direction a signal type maps to. OSCILLATION
// is a regime label only and never maps to a direction.
func (s SignalType) Direction() (Direction, bool) {
	switch s {
	case BearishSingularity, LowOscillation:
		return Long, true
	case BullishSingularity, HighOscillation:
		return Short, true
	default:
		return "", false
	}
}

// Signal is an immutable classified observation of one evaluation cycle.
type Signal struct {
	Type         SignalType `json:"type"`
	Confidence   float64    `json:"confidence"`
	Description  string     `json:"description"`
	Price        float64    `json:"price"`
	Timestamp    time.Time  `json:"timestamp"`
	Tension      float64    `json:"tension"`
	Acceleration float64    `json:"acceleration"`
	VolumeRatio  float64    `json:"volume_ratio"`
	PriceVsEMA   float64    `json:"price_vs_ema"`
}

type Classifier struct {
	params config.ClassifierParams
}

func NewClassifier(params config.ClassifierParams) *Classifier {
	return &Classifier{params: params}
}

// Classify evaluates the decision table in priority order; the first
// matching rule wins. It returns ok=false when no rule matches or the
// matched confidence is below the configured threshold.
func (c *Classifier) Classify(tension, acceleration float64) (signalType SignalType, confidence float64, description string, ok bool) {
	p := c.params

	switch {
	case tension > p.TensionThreshold && acceleration < -p.AccelThreshold:
		signalType = BearishSingularity
		confidence = 0.7
		description = fmt.Sprintf("bearish singularity (T=%.2f>%.2f)", tension, p.TensionThreshold)

	case tension < -p.TensionThreshold && acceleration > p.AccelThreshold:
		signalType = BullishSingularity
		confidence = 0.6
		description = fmt.Sprintf("bullish singularity (T=%.2f<-%.2f)", tension, p.TensionThreshold)

	case abs(tension) < p.OscillationBand && abs(acceleration) < p.AccelThreshold:
		signalType = Oscillation
		confidence = 0.8
		description = fmt.Sprintf("balanced oscillation (|T|=%.2f<%.2f)", abs(tension), p.OscillationBand)

	case tension > p.EdgeTension && abs(acceleration) < p.QuietAccel:
		signalType = HighOscillation
		confidence = 0.6
		description = fmt.Sprintf("high oscillation (T=%.2f>%.2f)", tension, p.EdgeTension)

	case tension < -p.EdgeTension && abs(acceleration) < p.QuietAccel:
		signalType = LowOscillation
		confidence = 0.6
		description = fmt.Sprintf("low oscillation (T=%.2f<-%.2f)", tension, p.EdgeTension)

	default:
		return "", 0, "no signal", false
	}

	if confidence < p.ConfThreshold {
		return "", 0, "confidence below threshold", false
	}
	return signalType, confidence, description, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
