package tune

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-autotune/dsp/core"
	"github.com/cwbudde/algo-autotune/dsp/detect"
	"github.com/cwbudde/algo-autotune/dsp/scale"
	"github.com/cwbudde/algo-autotune/dsp/shift"
)

const (
	// Plausible vocal band; detections outside pass through uncorrected.
	minVoicedFrequency = 80.0
	maxVoicedFrequency = 1000.0

	// Detections at or below this confidence pass through uncorrected.
	minConfidence = 0.5

	// Corrections at or below this magnitude (cents) are not applied,
	// preventing jitter on near-zero corrections.
	correctionDeadband = 5.0
)

// ErrDestroyed is returned by Init after Destroy; teardown is terminal.
var ErrDestroyed = errors.New("tune: engine destroyed")

// components bundles everything Process needs from initialization, swapped
// as one pointer so teardown can never leave a block holding half-released
// state.
type components struct {
	detector *detect.Detector
	shifter  *shift.GrainShifter
	scratch  []float64
}

// snapshot is the atomically published settings state: the merged settings
// plus the target-note table they imply. The table is regenerated on
// key/mode changes at update time, never inside Process.
type snapshot struct {
	settings Settings
	table    scale.Table
}

// Engine is the per-block pitch-correction orchestrator: it detects the
// pitch of each incoming block, quantizes it against the legal target set,
// computes a bounded correction, and drives the granular shifter.
//
// Lifecycle: NewEngine -> Init -> SetEnabled(true) -> Process per block ->
// Destroy. Process must be serialized by the caller (one audio thread);
// SetSettings, SetEnabled, and Destroy may be called from other
// goroutines.
//
// No condition is fatal: the worst-case behavior of Process is always an
// unmodified copy of the input.
type Engine struct {
	cfg  core.ProcessorConfig
	sink Sink

	detectorOpts []detect.Option
	shifterOpts  []shift.Option

	enabled   atomic.Bool
	destroyed atomic.Bool
	comps     atomic.Pointer[components]
	state     atomic.Pointer[snapshot]
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithSampleRate sets the processing sample rate in Hz.
func WithSampleRate(sampleRate float64) Option {
	return func(e *Engine) {
		if sampleRate > 0 {
			e.cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the maximum block length Process accepts.
func WithBlockSize(blockSize int) Option {
	return func(e *Engine) {
		if blockSize > 0 {
			e.cfg.BlockSize = blockSize
		}
	}
}

// WithSink installs the telemetry sink. The sink is fixed for the
// engine's lifetime and called synchronously from Process.
func WithSink(sink Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithSettings replaces the initial settings.
func WithSettings(settings Settings) Option {
	return func(e *Engine) {
		e.state.Store(&snapshot{
			settings: settings,
			table:    scale.Generate(settings.Key, settings.Mode),
		})
	}
}

// WithDetectorOptions forwards options to the pitch detector built by Init.
func WithDetectorOptions(opts ...detect.Option) Option {
	return func(e *Engine) { e.detectorOpts = opts }
}

// WithShifterOptions forwards options to the pitch shifter built by Init.
func WithShifterOptions(opts ...shift.Option) Option {
	return func(e *Engine) { e.shifterOpts = opts }
}

// NewEngine returns an uninitialized engine with default settings. The
// returned engine is cheap; all signal-path allocation happens in Init.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{cfg: core.DefaultProcessorConfig()}

	settings := DefaultSettings()
	e.state.Store(&snapshot{
		settings: settings,
		table:    scale.Generate(settings.Key, settings.Mode),
	})

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// Init builds the detector, shifter, and scratch buffer. On failure the
// engine stays uninitialized and Init may be retried. Init after Destroy
// returns ErrDestroyed.
func (e *Engine) Init() error {
	if e.destroyed.Load() {
		return ErrDestroyed
	}

	detector, err := detect.New(e.cfg.SampleRate, e.detectorOpts...)
	if err != nil {
		return fmt.Errorf("tune: init detector: %w", err)
	}

	shifter, err := shift.New(e.cfg.SampleRate, e.shifterOpts...)
	if err != nil {
		return fmt.Errorf("tune: init shifter: %w", err)
	}

	e.comps.Store(&components{
		detector: detector,
		shifter:  shifter,
		scratch:  make([]float64, e.cfg.BlockSize),
	})

	return nil
}

// Initialized reports whether Init has succeeded and Destroy has not run.
func (e *Engine) Initialized() bool { return e.comps.Load() != nil }

// Enabled reports whether correction is active.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// SampleRate returns the configured sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.cfg.SampleRate }

// SetEnabled switches between correction and passthrough and notifies the
// sink. Enabling a destroyed engine is a no-op.
func (e *Engine) SetEnabled(enabled bool) {
	if enabled && e.destroyed.Load() {
		return
	}

	e.enabled.Store(enabled)
	e.emit(Event{Kind: EventEnabled, Enabled: enabled})
}

// Settings returns the current settings snapshot.
func (e *Engine) Settings() Settings {
	return e.state.Load().settings
}

// SetSettings merges the given partial updates into the current settings,
// regenerates the target-note table if key or mode changed, publishes the
// result atomically, and returns it. Safe to call from outside the audio
// path at any lifecycle stage.
func (e *Engine) SetSettings(opts ...SettingsOption) Settings {
	current := e.state.Load()

	next := current.settings
	for _, opt := range opts {
		if opt != nil {
			opt(&next)
		}
	}

	table := current.table
	if next.Key != current.settings.Key || next.Mode != current.settings.Mode {
		table = scale.Generate(next.Key, next.Mode)
	}

	e.state.Store(&snapshot{settings: next, table: table})
	e.emit(Event{Kind: EventSettings, Settings: next})

	return next
}

// Destroy forces passthrough and releases the signal-path components.
// It disables the engine before dropping the component snapshot, so a
// block already in flight still holds valid buffers. Destroy is
// idempotent and terminal.
func (e *Engine) Destroy() {
	if e.destroyed.Swap(true) {
		return
	}

	e.enabled.Store(false)
	e.comps.Store(nil)
}

// Process corrects one block of linear PCM samples from input into
// output. When the engine is uninitialized, disabled, or handed
// unusable buffers, the input is copied through unchanged; any fault on
// the correction path is recovered to the same passthrough plus an
// EventError, leaving the engine usable for the next block.
//
// Process never blocks, never allocates, and must be serialized by the
// caller.
func (e *Engine) Process(input, output []float64) {
	n := len(input)
	if len(output) < n {
		n = len(output)
	}
	if n == 0 {
		return
	}
	input = input[:n]
	output = output[:n]

	comps := e.comps.Load()
	if comps == nil || !e.enabled.Load() || n > len(comps.scratch) {
		copy(output, input)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			copy(output, input)
			e.emit(Event{Kind: EventError, Err: fmt.Errorf("tune: block fault: %v", r)})
		}
	}()

	snap := e.state.Load()
	scratch := comps.scratch[:n]
	copy(scratch, input)

	result := comps.detector.Detect(scratch)

	if result.Frequency < minVoicedFrequency || result.Frequency > maxVoicedFrequency ||
		result.Confidence <= minConfidence {
		copy(output, scratch)
		e.emit(Event{Kind: EventPitch, Pitch: PitchEvent{
			DetectedHz: result.Frequency,
			TargetHz:   e.targetFor(snap, result.Frequency),
			Confidence: result.Confidence,
		}})
		return
	}

	target := e.targetFor(snap, result.Frequency)

	settings := snap.settings
	cents := 1200 * mathLog2(target/result.Frequency)
	cents *= settings.Strength / 100
	cents = core.Clamp(cents, -settings.MaxCorrection, settings.MaxCorrection)
	cents *= settings.Speed / 100

	if math.Abs(cents) > correctionDeadband {
		comps.shifter.SetFormantPreserve(settings.FormantPreserve)
		comps.shifter.ShiftInto(output, scratch, cents)
	} else {
		copy(output, scratch)
	}

	e.emit(Event{Kind: EventPitch, Pitch: PitchEvent{
		DetectedHz:      result.Frequency,
		TargetHz:        target,
		CorrectionCents: cents,
		Confidence:      result.Confidence,
	}})
}

// targetFor returns the legal target frequency nearest to detected, or 0
// for unvoiced input.
func (e *Engine) targetFor(snap *snapshot, detected float64) float64 {
	if detected <= 0 {
		return 0
	}

	if snap.settings.Scale == ScaleChromatic {
		return scale.NearestChromatic(detected)
	}

	return snap.table.Nearest(detected)
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink.Emit(ev)
	}
}
