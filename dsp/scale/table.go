package scale

import "math"

// Table octave span: octave indices 2 through 6 relative to the 4th-octave
// anchor, i.e. two octaves below to two above.
const (
	lowestOctaveOffset = -2
	octaveSpan         = 5
)

// Table is an ascending sequence of legal target frequencies in Hz.
//
// A table is rebuilt wholesale on key or mode changes and treated as
// read-only in between; Nearest never mutates it.
type Table []float64

// Generate builds the target-note table for the given key and mode,
// spanning octaves 2-6 around the key's 4th-octave anchor. The result is
// strictly ascending with length len(mode.Intervals()) * 5.
func Generate(key Key, mode Mode) Table {
	intervals := mode.Intervals()
	if len(intervals) == 0 || !key.Valid() {
		return nil
	}

	anchor := key.AnchorHz()
	table := make(Table, 0, len(intervals)*octaveSpan)
	for octave := lowestOctaveOffset; octave < lowestOctaveOffset+octaveSpan; octave++ {
		base := anchor * math.Pow(2, float64(octave))
		for _, semitones := range intervals {
			table = append(table, base*math.Pow(2, float64(semitones)/12.0))
		}
	}

	return table
}

// Nearest returns the table frequency closest to f. Ties resolve to the
// lower candidate (first encountered in the ascending scan). A nil or
// empty table returns 0.
func (t Table) Nearest(f float64) float64 {
	if len(t) == 0 {
		return 0
	}

	best := t[0]
	bestDist := math.Abs(f - best)
	for _, candidate := range t[1:] {
		dist := math.Abs(f - candidate)
		if dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}

	return best
}

// NearestChromatic returns the equal-tempered semitone frequency closest
// to f relative to the 440 Hz reference, independent of key.
func NearestChromatic(f float64) float64 {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	semitones := math.Round(12 * math.Log2(f/ReferenceA4))

	return ReferenceA4 * math.Pow(2, semitones/12.0)
}

// Cents returns the signed interval from one frequency to another in
// cents (1200 cents per octave). Non-positive inputs return 0.
func Cents(from, to float64) float64 {
	if from <= 0 || to <= 0 {
		return 0
	}

	return 1200 * math.Log2(to/from)
}

// RatioFromCents converts a cents interval to a linear frequency ratio.
func RatioFromCents(cents float64) float64 {
	return math.Pow(2, cents/1200.0)
}
