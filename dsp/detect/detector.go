package detect

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-autotune/dsp/ring"
	"github.com/cwbudde/algo-autotune/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

const (
	defaultWindowSize       = 2048
	defaultMinFrequency     = 80.0
	defaultMaxFrequency     = 800.0
	defaultSilenceThreshold = 0.01

	minWindowSize = 256
	maxWindowSize = 16384

	// A candidate peak qualifies as the period when it reaches this
	// fraction of the strongest correlation; the smallest qualifying lag
	// wins, which rejects octave-down candidates at integer multiples of
	// the true period.
	peakAcceptRatio = 0.9

	// Normalized correlation below this means the frame is aperiodic.
	voicedFloor = 0.5

	detectorTiny = 1e-12
)

// Result is the outcome of one detection pass. Frequency is 0 when the
// frame is unvoiced or indeterminate; Confidence is in [0, 1].
type Result struct {
	Frequency  float64
	Confidence float64
}

// Detector estimates the fundamental frequency of a monophonic signal by
// normalized autocorrelation over a Hann-windowed analysis frame.
//
// The detector keeps a circular history of twice its analysis window, so
// callers may feed blocks of any size; each Detect call analyzes the most
// recent window-length slice. All buffers are allocated at construction;
// Detect never allocates.
//
// Detector is not safe for concurrent use.
type Detector struct {
	sampleRate float64
	windowSize int
	minFreq    float64
	maxFreq    float64
	silenceRMS float64

	minLag int
	maxLag int
	span   int

	history *ring.Buffer
	raw     []float64 // most recent window, mean-removed
	env     []float64 // Hann envelope over the comparison span
	env2    []float64 // envelope squared
	ref     []float64 // windowed reference frame
	refEnv  []float64 // reference frame weighted by envelope squared
	sq      []float64 // raw samples squared
	norm    []float64 // normalized correlation per lag
}

// Option configures a Detector at construction.
type Option func(*Detector)

// WithWindowSize sets the analysis window length in samples.
func WithWindowSize(size int) Option {
	return func(d *Detector) { d.windowSize = size }
}

// WithFrequencyRange sets the plausible pitch range in Hz.
func WithFrequencyRange(minHz, maxHz float64) Option {
	return func(d *Detector) {
		d.minFreq = minHz
		d.maxFreq = maxHz
	}
}

// WithSilenceThreshold sets the windowed RMS level below which frames are
// reported unvoiced regardless of correlation.
func WithSilenceThreshold(rms float64) Option {
	return func(d *Detector) { d.silenceRMS = rms }
}

// New constructs a pitch detector for the given sample rate.
func New(sampleRate float64, opts ...Option) (*Detector, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("detector sample rate must be positive and finite: %f", sampleRate)
	}

	d := &Detector{
		sampleRate: sampleRate,
		windowSize: defaultWindowSize,
		minFreq:    defaultMinFrequency,
		maxFreq:    defaultMaxFrequency,
		silenceRMS: defaultSilenceThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	if d.windowSize < minWindowSize || d.windowSize > maxWindowSize {
		return nil, fmt.Errorf("detector window size must be in [%d, %d]: %d",
			minWindowSize, maxWindowSize, d.windowSize)
	}
	if d.minFreq <= 0 || d.maxFreq <= d.minFreq ||
		math.IsNaN(d.minFreq) || math.IsInf(d.maxFreq, 0) {
		return nil, fmt.Errorf("detector frequency range must satisfy 0 < min < max: [%f, %f]",
			d.minFreq, d.maxFreq)
	}
	if d.silenceRMS < 0 || math.IsNaN(d.silenceRMS) || math.IsInf(d.silenceRMS, 0) {
		return nil, fmt.Errorf("detector silence threshold must be >= 0: %f", d.silenceRMS)
	}

	d.minLag = int(d.sampleRate / d.maxFreq)
	if d.minLag < 2 {
		d.minLag = 2
	}
	d.maxLag = int(d.sampleRate / d.minFreq)
	if d.maxLag > d.windowSize/2 {
		d.maxLag = d.windowSize / 2
	}
	if d.maxLag <= d.minLag {
		return nil, fmt.Errorf("detector window too short for frequency range: window=%d range=[%f, %f] Hz at %f Hz",
			d.windowSize, d.minFreq, d.maxFreq, d.sampleRate)
	}
	d.span = d.windowSize - d.maxLag

	history, err := ring.New(2 * d.windowSize)
	if err != nil {
		return nil, err
	}
	d.history = history

	d.raw = make([]float64, d.windowSize)
	d.sq = make([]float64, d.windowSize)
	d.env = window.Generate(window.TypeHann, d.span)
	d.env2 = make([]float64, d.span)
	vecmath.MulBlock(d.env2, d.env, d.env)
	d.ref = make([]float64, d.span)
	d.refEnv = make([]float64, d.span)
	d.norm = make([]float64, d.maxLag+2)

	return d, nil
}

// SampleRate returns the sample rate in Hz.
func (d *Detector) SampleRate() float64 { return d.sampleRate }

// WindowSize returns the analysis window length in samples.
func (d *Detector) WindowSize() int { return d.windowSize }

// FrequencyRange returns the detectable pitch range in Hz.
func (d *Detector) FrequencyRange() (minHz, maxHz float64) {
	return d.minFreq, d.maxFreq
}

// Reset clears the sample history.
func (d *Detector) Reset() {
	d.history.Reset()
}

// Detect appends block to the rolling history and estimates the
// fundamental frequency of the most recent analysis window.
//
// It always returns a well-formed result; silence, noise, and degenerate
// input all report {0, 0}.
func (d *Detector) Detect(block []float64) Result {
	if len(block) == 0 && d.history.WritePos() == 0 {
		return Result{}
	}

	d.history.PushBlock(block)
	d.history.Recent(d.raw)

	mean := vecmath.Sum(d.raw) / float64(len(d.raw))
	for i := range d.raw {
		d.raw[i] -= mean
	}

	// Reference frame: the oldest span samples of the window, Hann
	// weighted. Each lag compares this frame against the same-length
	// frame lag samples later under the identical envelope, so a
	// perfectly periodic signal scores exactly 1 at its period.
	vecmath.MulBlock(d.ref, d.raw[:d.span], d.env)
	refEnergy := vecmath.DotProduct(d.ref, d.ref)

	rms := math.Sqrt(refEnergy / float64(d.span))
	if rms < d.silenceRMS {
		return Result{}
	}

	vecmath.MulBlock(d.refEnv, d.ref, d.env)
	vecmath.MulBlock(d.sq, d.raw, d.raw)

	bestLag := 0
	bestVal := 0.0
	for lag := d.minLag; lag <= d.maxLag; lag++ {
		shifted := d.raw[lag : lag+d.span]
		num := vecmath.DotProduct(d.refEnv, shifted)
		energy := vecmath.DotProduct(d.env2, d.sq[lag:lag+d.span])

		value := 0.0
		if den := math.Sqrt(refEnergy * energy); den > detectorTiny {
			value = num / den
		}
		d.norm[lag] = value

		if value > bestVal {
			bestVal = value
			bestLag = lag
		}
	}

	if bestLag == 0 || bestVal < voicedFloor {
		return Result{}
	}

	lag := d.firstStrongPeak(bestLag, bestVal)
	period := d.refineLag(lag)
	if period <= 0 || period >= float64(d.windowSize) {
		return Result{}
	}

	confidence := d.norm[lag]
	if confidence > 1 {
		confidence = 1
	}

	return Result{
		Frequency:  d.sampleRate / period,
		Confidence: confidence,
	}
}

// firstStrongPeak returns the smallest lag that is a local correlation
// maximum within peakAcceptRatio of the global one, falling back to the
// global maximum when no candidate qualifies.
func (d *Detector) firstStrongPeak(bestLag int, bestVal float64) int {
	cut := peakAcceptRatio * bestVal
	for lag := d.minLag; lag <= d.maxLag; lag++ {
		if d.norm[lag] < cut {
			continue
		}
		if lag > d.minLag && d.norm[lag] < d.norm[lag-1] {
			continue
		}
		if lag < d.maxLag && d.norm[lag] < d.norm[lag+1] {
			continue
		}
		return lag
	}

	return bestLag
}

// refineLag sharpens an integer lag estimate to sub-sample precision by
// parabolic interpolation through the correlation peak.
func (d *Detector) refineLag(lag int) float64 {
	if lag <= d.minLag || lag >= d.maxLag {
		return float64(lag)
	}

	y0 := d.norm[lag-1]
	y1 := d.norm[lag]
	y2 := d.norm[lag+1]

	den := y0 - 2*y1 + y2
	if math.Abs(den) < detectorTiny {
		return float64(lag)
	}

	delta := 0.5 * (y0 - y2) / den
	if math.Abs(delta) >= 1 {
		return float64(lag)
	}

	return float64(lag) + delta
}
