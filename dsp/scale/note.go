package scale

import (
	"fmt"
	"math"
)

// NoteName returns the nearest note spelling for a frequency, e.g. "A4"
// or "C#3". Non-positive frequencies return an empty string.
func NoteName(f float64) string {
	name, _ := NoteNameCents(f)
	return name
}

// NoteNameCents returns the nearest note spelling and the signed deviation
// from it in cents.
func NoteNameCents(f float64) (string, float64) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", 0
	}

	// Semitone distance from C4, so octave boundaries land between B and C.
	c4 := KeyC.AnchorHz()
	semis := 12 * math.Log2(f/c4)
	nearest := int(math.Round(semis))
	deviation := 100 * (semis - float64(nearest))

	pitchClass := nearest % 12
	if pitchClass < 0 {
		pitchClass += 12
	}
	octave := 4 + (nearest-pitchClass)/12

	return fmt.Sprintf("%s%d", keyNames[pitchClass], octave), deviation
}
