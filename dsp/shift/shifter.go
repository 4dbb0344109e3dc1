package shift

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-autotune/dsp/ring"
	"github.com/cwbudde/algo-autotune/dsp/window"
)

const (
	defaultGrainSize = 1024
	defaultOverlap   = 4

	minGrainSize = 64
	maxGrainSize = 8192
	minOverlap   = 2
	maxOverlap   = 8
)

// grain is one voice of the round-robin pool: a preallocated buffer of
// source samples, a fractional read cursor, and an activity flag.
type grain struct {
	buf    []float64
	pos    float64
	active bool
}

// GrainShifter shifts the pitch of a block by a commanded number of cents
// using time-domain granular overlap-add.
//
// A circular history of twice the grain size is fed sample by sample.
// Every hop (grain size / overlap factor) the next grain in round-robin
// order is refilled from the history at a read anchor that advances at the
// pitch ratio, then played back Hann-enveloped at the pitch ratio and
// summed with the other active grains. The anchor keeps overlapping grains
// phase coherent; it wraps by one grain length when its drift from the
// write position leaves the valid history range.
//
// Grain size and overlap factor are fixed at construction. No allocation
// occurs after New. GrainShifter is not safe for concurrent use.
type GrainShifter struct {
	sampleRate float64
	grainSize  int
	overlap    int
	hopSize    int
	comp       float64

	formantPreserve bool

	history  *ring.Buffer
	env      []float64
	grains   []grain
	next     int
	hopCount int
	drift    float64
}

// Option configures a GrainShifter at construction.
type Option func(*GrainShifter)

// WithGrainSize sets the grain length in samples.
func WithGrainSize(size int) Option {
	return func(s *GrainShifter) { s.grainSize = size }
}

// WithOverlap sets the overlap factor (number of grains in the pool).
func WithOverlap(factor int) Option {
	return func(s *GrainShifter) { s.overlap = factor }
}

// New constructs a granular pitch shifter for the given sample rate.
func New(sampleRate float64, opts ...Option) (*GrainShifter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("shifter sample rate must be positive and finite: %f", sampleRate)
	}

	s := &GrainShifter{
		sampleRate: sampleRate,
		grainSize:  defaultGrainSize,
		overlap:    defaultOverlap,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.grainSize < minGrainSize || s.grainSize > maxGrainSize {
		return nil, fmt.Errorf("shifter grain size must be in [%d, %d]: %d",
			minGrainSize, maxGrainSize, s.grainSize)
	}
	if s.overlap < minOverlap || s.overlap > maxOverlap {
		return nil, fmt.Errorf("shifter overlap must be in [%d, %d]: %d",
			minOverlap, maxOverlap, s.overlap)
	}
	if s.grainSize%s.overlap != 0 {
		return nil, fmt.Errorf("shifter grain size must be divisible by overlap: %d %% %d != 0",
			s.grainSize, s.overlap)
	}

	s.hopSize = s.grainSize / s.overlap
	// Hann grains at hop = size/overlap sum to overlap/2 at every output
	// sample; this factor restores unity gain.
	s.comp = 2.0 / float64(s.overlap)

	history, err := ring.New(2 * s.grainSize)
	if err != nil {
		return nil, err
	}
	s.history = history

	s.env = window.Generate(window.TypeHann, s.grainSize)
	s.grains = make([]grain, s.overlap)
	for i := range s.grains {
		s.grains[i].buf = make([]float64, s.grainSize)
	}

	return s, nil
}

// SampleRate returns the sample rate in Hz.
func (s *GrainShifter) SampleRate() float64 { return s.sampleRate }

// GrainSize returns the grain length in samples.
func (s *GrainShifter) GrainSize() int { return s.grainSize }

// Overlap returns the overlap factor.
func (s *GrainShifter) Overlap() int { return s.overlap }

// HopSize returns the grain retrigger interval in samples.
func (s *GrainShifter) HopSize() int { return s.hopSize }

// SetFormantPreserve toggles the formant-preserving grain mode.
func (s *GrainShifter) SetFormantPreserve(enabled bool) { s.formantPreserve = enabled }

// FormantPreserve reports whether formant preservation is requested.
func (s *GrainShifter) FormantPreserve() bool { return s.formantPreserve }

// Reset clears the history, grain pool, and hop phase.
func (s *GrainShifter) Reset() {
	s.history.Reset()
	for i := range s.grains {
		g := &s.grains[i]
		for j := range g.buf {
			g.buf[j] = 0
		}
		g.pos = 0
		g.active = false
	}
	s.next = 0
	s.hopCount = 0
	s.drift = 0
}

// ShiftInto writes the pitch-shifted rendition of src into dst. cents is
// the commanded shift (positive raises pitch); dst and src may alias, and
// the shorter of the two bounds the processed length. A shift of 0 cents
// is legal and preserves signal energy once the grain pipeline is primed.
func (s *GrainShifter) ShiftInto(dst, src []float64, cents float64) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}

	pitchRatio := mathPower2(cents / 1200.0)
	grainLen := float64(s.grainSize)

	for i := 0; i < n; i++ {
		s.history.Push(src[i])

		s.hopCount++
		if s.hopCount >= s.hopSize {
			s.hopCount = 0
			s.retrigger(pitchRatio)
		}

		sum := 0.0
		for g := range s.grains {
			gr := &s.grains[g]
			if !gr.active {
				continue
			}

			idx := int(gr.pos)
			if idx >= s.grainSize {
				gr.active = false
				continue
			}

			sum += gr.buf[idx] * s.env[idx]

			gr.pos += pitchRatio
			if gr.pos >= grainLen {
				gr.active = false
			}
		}

		dst[i] = sum * s.comp
	}
}

// retrigger refills the next grain in round-robin order from the history.
// The read anchor trails the write position by one grain length plus the
// drift accumulated from the mismatch between input rate and playback
// rate; keeping successive anchors spaced hop*pitchRatio apart makes
// overlapping grains read a single continuous resampled stream.
func (s *GrainShifter) retrigger(pitchRatio float64) {
	s.drift += float64(s.hopSize) * (1 - pitchRatio)
	grainLen := float64(s.grainSize)
	for s.drift >= grainLen {
		s.drift -= grainLen
	}
	for s.drift < 0 {
		s.drift += grainLen
	}

	gr := &s.grains[s.next]
	s.next++
	if s.next >= len(s.grains) {
		s.next = 0
	}

	start := s.history.WritePos() - s.grainSize - int(s.drift)
	for j := 0; j < s.grainSize; j++ {
		gr.buf[j] = s.history.At(start + j)
	}
	gr.pos = 0
	gr.active = true
}
