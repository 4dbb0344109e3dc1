// Package scale models the musical target-pitch set used for pitch
// correction: keys, modes, and tables of legal note frequencies.
//
// All frequencies derive from the A4 = 440 Hz reference in twelve-tone
// equal temperament.
package scale

import (
	"fmt"
	"math"
	"strings"
)

// ReferenceA4 is the tuning reference frequency in Hz.
const ReferenceA4 = 440.0

// Key is one of the twelve pitch classes.
type Key int

const (
	KeyC Key = iota
	KeyCSharp
	KeyD
	KeyDSharp
	KeyE
	KeyF
	KeyFSharp
	KeyG
	KeyGSharp
	KeyA
	KeyASharp
	KeyB
)

var keyNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var keyAliases = map[string]Key{
	"DB": KeyCSharp,
	"EB": KeyDSharp,
	"GB": KeyFSharp,
	"AB": KeyGSharp,
	"BB": KeyASharp,
}

// ParseKey parses a pitch-class name such as "C", "F#", or "Bb".
func ParseKey(s string) (Key, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range keyNames {
		if normalized == name {
			return Key(i), nil
		}
	}
	if k, ok := keyAliases[normalized]; ok {
		return k, nil
	}

	return 0, fmt.Errorf("unknown key: %q", s)
}

// String returns the sharp spelling of the pitch class.
func (k Key) String() string {
	if k < KeyC || k > KeyB {
		return "?"
	}

	return keyNames[k]
}

// Valid reports whether k is one of the twelve pitch classes.
func (k Key) Valid() bool { return k >= KeyC && k <= KeyB }

// AnchorHz returns the key's tonic frequency in the 4th octave,
// e.g. C4 = 261.63 Hz, A4 = 440 Hz.
func (k Key) AnchorHz() float64 {
	return ReferenceA4 * math.Pow(2, float64(int(k)-int(KeyA))/12.0)
}

// Mode selects the semitone interval pattern built on a key.
type Mode int

const (
	ModeMajor Mode = iota
	ModeMinor
	ModeDorian
	ModeMixolydian
	ModeChromatic
)

var modeNames = [...]string{"major", "minor", "dorian", "mixolydian", "chromatic"}

var modeIntervals = [...][]int{
	{0, 2, 4, 5, 7, 9, 11},
	{0, 2, 3, 5, 7, 8, 10},
	{0, 2, 3, 5, 7, 9, 10},
	{0, 2, 4, 5, 7, 9, 10},
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if normalized == name {
			return Mode(i), nil
		}
	}

	return 0, fmt.Errorf("unknown mode: %q", s)
}

func (m Mode) String() string {
	if !m.Valid() {
		return "?"
	}

	return modeNames[m]
}

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool { return m >= ModeMajor && m <= ModeChromatic }

// Intervals returns the mode's semitone offsets from the tonic, ascending
// within one octave. The returned slice is shared and must not be mutated.
func (m Mode) Intervals() []int {
	if !m.Valid() {
		return nil
	}

	return modeIntervals[m]
}

// KeyNames returns the supported pitch-class names in ascending order.
func KeyNames() []string {
	out := make([]string, len(keyNames))
	copy(out, keyNames[:])
	return out
}

// ModeNames returns the supported mode names.
func ModeNames() []string {
	out := make([]string, len(modeNames))
	copy(out, modeNames[:])
	return out
}
