package tune

import (
	"math"

	"github.com/cwbudde/algo-autotune/dsp/core"
	"github.com/cwbudde/algo-autotune/dsp/scale"
)

// ScaleMode selects how detected pitches are quantized.
type ScaleMode int

const (
	// ScaleChromatic quantizes to the nearest equal-tempered semitone
	// relative to the 440 Hz reference, independent of key.
	ScaleChromatic ScaleMode = iota
	// ScaleDiatonic quantizes to the nearest note of the table built from
	// Key and Mode.
	ScaleDiatonic
)

func (m ScaleMode) String() string {
	switch m {
	case ScaleChromatic:
		return "chromatic"
	case ScaleDiatonic:
		return "diatonic"
	default:
		return "?"
	}
}

// Settings are the tunable correction parameters. The engine publishes
// them as a single atomically swapped snapshot; Process reads the snapshot
// exactly once per block, so updates from other goroutines are either
// fully visible or not at all.
type Settings struct {
	// Strength is the fraction of the full correction applied, 0-100.
	Strength float64
	// Speed is the fraction of the strength-scaled correction applied per
	// block, 0-100. Values below 100 model gradual convergence.
	Speed float64
	// MaxCorrection is the hard clamp on the corrective magnitude in
	// cents, applied before Speed scaling.
	MaxCorrection float64
	// Scale selects chromatic or diatonic quantization.
	Scale ScaleMode
	// Key and Mode define the target-note table used in diatonic mode.
	Key  scale.Key
	Mode scale.Mode
	// FormantPreserve is forwarded to the shifter's grain mode.
	FormantPreserve bool
}

// DefaultSettings returns full-strength chromatic correction in C major.
func DefaultSettings() Settings {
	return Settings{
		Strength:      100,
		Speed:         100,
		MaxCorrection: 100,
		Scale:         ScaleChromatic,
		Key:           scale.KeyC,
		Mode:          scale.ModeMajor,
	}
}

// SettingsOption mutates one field of a Settings value. Out-of-range
// values are clamped to the legal range; non-finite values are ignored.
type SettingsOption func(*Settings)

// WithStrength sets the applied fraction of the full correction, 0-100.
func WithStrength(percent float64) SettingsOption {
	return func(s *Settings) {
		if !math.IsNaN(percent) && !math.IsInf(percent, 0) {
			s.Strength = core.Clamp(percent, 0, 100)
		}
	}
}

// WithSpeed sets the per-block convergence fraction, 0-100.
func WithSpeed(percent float64) SettingsOption {
	return func(s *Settings) {
		if !math.IsNaN(percent) && !math.IsInf(percent, 0) {
			s.Speed = core.Clamp(percent, 0, 100)
		}
	}
}

// WithMaxCorrection sets the correction clamp in cents.
func WithMaxCorrection(cents float64) SettingsOption {
	return func(s *Settings) {
		if cents >= 0 && !math.IsNaN(cents) && !math.IsInf(cents, 0) {
			s.MaxCorrection = cents
		}
	}
}

// WithScale selects chromatic or diatonic quantization.
func WithScale(mode ScaleMode) SettingsOption {
	return func(s *Settings) {
		if mode == ScaleChromatic || mode == ScaleDiatonic {
			s.Scale = mode
		}
	}
}

// WithKey sets the tonal center for diatonic quantization.
func WithKey(key scale.Key) SettingsOption {
	return func(s *Settings) {
		if key.Valid() {
			s.Key = key
		}
	}
}

// WithMode sets the interval pattern for diatonic quantization.
func WithMode(mode scale.Mode) SettingsOption {
	return func(s *Settings) {
		if mode.Valid() {
			s.Mode = mode
		}
	}
}

// WithFormantPreserve toggles the shifter's formant-preserving mode.
func WithFormantPreserve(enabled bool) SettingsOption {
	return func(s *Settings) {
		s.FormantPreserve = enabled
	}
}
