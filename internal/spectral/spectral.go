// Package spectral derives the tension/acceleration state variables from a
// candle window. The pipeline: detrend closes, low-pass the spectrum (keep
// the leading coefficients), take the imaginary part of the analytic signal
// as raw tension, z-score it, then second-difference for acceleration.
//
// Tension is normalized over the full supplied window. The window itself is
// bounded by the caller (default fetch limit 300), so normalization cost and
// semantics stay stable across cycles.
package spectral

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfade/singularity-trader/internal/candle"
)

var (
	// ErrInsufficientData is returned when the candle window is below the
	// analyzer's minimum; no partial result is produced.
	ErrInsufficientData = errors.New("spectral: insufficient data")

	// ErrComputation is returned when an intermediate result is non-finite.
	// Callers must treat it as "no decision this cycle".
	ErrComputation = errors.New("spectral: non-finite computation result")
)

// Metrics holds the per-candle state variables, aligned index-for-index
// with the input window.
type Metrics struct {
	Tension      []float64
	Acceleration []float64
}

// Last returns the most recent tension/acceleration pair.
func (m Metrics) Last() (tension, acceleration float64) {
	n := len(m.Tension)
	if n == 0 {
		return 0, 0
	}
	return m.Tension[n-1], m.Acceleration[n-1]
}

type Analyzer struct {
	// MinCandles is the minimum window length; fewer candles fail with
	// ErrInsufficientData.
	MinCandles int

	// KeepCoefficients is the low-pass cutoff: spectrum coefficients at
	// index >= KeepCoefficients are zeroed before inversion.
	KeepCoefficients int
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		MinCandles:       60,
		KeepCoefficients: 8,
	}
}

// Compute recomputes metrics wholesale from the supplied window. Identical
// input windows produce identical output.
func (a *Analyzer) Compute(candles []candle.Candle) (Metrics, error) {
	if len(candles) < a.MinCandles {
		return Metrics{}, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(candles), a.MinCandles)
	}

	prices := candle.Closes(candles)
	detrended := detrend(prices)
	filtered := lowPass(detrended, a.KeepCoefficients)
	tension := hilbertImag(filtered)

	normalize(tension)

	acceleration := make([]float64, len(tension))
	for i := 2; i < len(tension); i++ {
		velocity := tension[i] - tension[i-1]
		acceleration[i] = velocity - (tension[i-1] - tension[i-2])
	}

	for i := range tension {
		if !isFinite(tension[i]) || !isFinite(acceleration[i]) {
			return Metrics{}, fmt.Errorf("%w: index %d", ErrComputation, i)
		}
	}

	return Metrics{Tension: tension, Acceleration: acceleration}, nil
}

// detrend removes the best-fit linear trend from the series.
func detrend(series []float64) []float64 {
	xs := make([]float64, len(series))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, series, nil, false)
	out := make([]float64, len(series))
	for i := range series {
		out[i] = series[i] - (alpha + beta*xs[i])
	}
	return out
}

// lowPass zeroes every spectrum coefficient at index >= keep and inverts,
// returning the real part. Zeroing the tail of the full complex spectrum
// (negative frequencies included) matches the reference signal definition.
func lowPass(series []float64, keep int) []float64 {
	n := len(series)
	seq := make([]complex128, n)
	for i, v := range series {
		seq[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, seq)
	for i := keep; i < n; i++ {
		coeff[i] = 0
	}
	inv := fft.Sequence(nil, coeff)

	out := make([]float64, n)
	for i := range inv {
		out[i] = real(inv[i]) / float64(n)
	}
	return out
}

// hilbertImag returns the imaginary part of the analytic signal of series.
func hilbertImag(series []float64) []float64 {
	n := len(series)
	seq := make([]complex128, n)
	for i, v := range series {
		seq[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, seq)

	// Analytic-signal spectrum multiplier: keep DC (and Nyquist for even
	// lengths), double positive frequencies, drop negative frequencies.
	half := n / 2
	for i := 1; i < n; i++ {
		switch {
		case n%2 == 0 && i == half:
			// Nyquist kept as-is.
		case i < half || (n%2 == 1 && i <= half):
			coeff[i] *= 2
		default:
			coeff[i] = 0
		}
	}

	inv := fft.Sequence(nil, coeff)
	out := make([]float64, n)
	for i := range inv {
		out[i] = imag(inv[i]) / float64(n)
	}
	return out
}

// normalize z-scores the series in place. A zero-variance series is left
// untouched rather than divided by zero.
func normalize(series []float64) {
	if len(series) < 2 {
		return
	}
	mean := stat.Mean(series, nil)
	std := math.Sqrt(stat.PopVariance(series, nil))
	if std == 0 {
		return
	}
	for i := range series {
		series[i] = (series[i] - mean) / std
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
