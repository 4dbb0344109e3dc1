package scale

import (
	"math"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "C", want: KeyC},
		{in: "c", want: KeyC},
		{in: "F#", want: KeyFSharp},
		{in: "Bb", want: KeyASharp},
		{in: " g ", want: KeyG},
		{in: "H", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseKey(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, name := range ModeNames() {
		m, err := ParseMode(name)
		if err != nil {
			t.Fatalf("ParseMode(%q) error = %v", name, err)
		}
		if m.String() != name {
			t.Fatalf("round trip %q -> %q", name, m.String())
		}
	}

	if _, err := ParseMode("lydian"); err == nil {
		t.Fatalf("unsupported mode should error")
	}
}

func TestKeyAnchorHz(t *testing.T) {
	if got := KeyA.AnchorHz(); math.Abs(got-440) > 1e-9 {
		t.Fatalf("A4 = %v, want 440", got)
	}
	if got := KeyC.AnchorHz(); math.Abs(got-261.6256) > 1e-3 {
		t.Fatalf("C4 = %v, want 261.6256", got)
	}
}

func TestModeIntervals(t *testing.T) {
	tests := []struct {
		mode Mode
		want []int
	}{
		{ModeMajor, []int{0, 2, 4, 5, 7, 9, 11}},
		{ModeMinor, []int{0, 2, 3, 5, 7, 8, 10}},
		{ModeDorian, []int{0, 2, 3, 5, 7, 9, 10}},
		{ModeMixolydian, []int{0, 2, 4, 5, 7, 9, 10}},
		{ModeChromatic, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := tt.mode.Intervals()
			if len(got) != len(tt.want) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("interval %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGenerateTableShape(t *testing.T) {
	for _, mode := range []Mode{ModeMajor, ModeMinor, ModeDorian, ModeMixolydian, ModeChromatic} {
		table := Generate(KeyC, mode)
		wantLen := len(mode.Intervals()) * 5
		if len(table) != wantLen {
			t.Fatalf("%s: length = %d, want %d", mode, len(table), wantLen)
		}
		for i := 1; i < len(table); i++ {
			if table[i] <= table[i-1] {
				t.Fatalf("%s: table not strictly ascending at %d: %v <= %v",
					mode, i, table[i], table[i-1])
			}
		}
	}
}

func TestGenerateTableKeyTransposition(t *testing.T) {
	c := Generate(KeyC, ModeMajor)
	g := Generate(KeyG, ModeMajor)

	// G major is C major transposed up a perfect fifth.
	wantRatio := math.Pow(2, 7.0/12.0)
	for i := range c {
		ratio := g[i] / c[i]
		if math.Abs(ratio-wantRatio) > 1e-9 {
			t.Fatalf("index %d: ratio = %v, want %v", i, ratio, wantRatio)
		}
	}
	if math.Abs(g[0]/c[0]-1.498) > 1e-3 {
		t.Fatalf("g[0]/c[0] = %v, want ~1.498", g[0]/c[0])
	}
}

func TestGenerateTableSpansOctaves2To6(t *testing.T) {
	table := Generate(KeyA, ModeMajor)

	// First entry is A2 = 110 Hz, last is G#6.
	if math.Abs(table[0]-110) > 1e-9 {
		t.Fatalf("table[0] = %v, want 110", table[0])
	}
	wantLast := 110 * math.Pow(2, 4) * math.Pow(2, 11.0/12.0)
	if math.Abs(table[len(table)-1]-wantLast) > 1e-6 {
		t.Fatalf("table[%d] = %v, want %v", len(table)-1, table[len(table)-1], wantLast)
	}
}

func TestNearest(t *testing.T) {
	table := Generate(KeyC, ModeMajor)

	// Exact member maps to itself.
	for _, f := range []float64{table[0], table[10], table[len(table)-1]} {
		if got := table.Nearest(f); got != f {
			t.Fatalf("Nearest(%v) = %v, want exact match", f, got)
		}
	}

	// Below and above the range clamp to the ends.
	if got := table.Nearest(1); got != table[0] {
		t.Fatalf("Nearest(1) = %v, want %v", got, table[0])
	}
	if got := table.Nearest(1e5); got != table[len(table)-1] {
		t.Fatalf("Nearest(1e5) = %v, want %v", got, table[len(table)-1])
	}

	if got := Table(nil).Nearest(440); got != 0 {
		t.Fatalf("nil table Nearest = %v, want 0", got)
	}
}

func TestNearestChromatic(t *testing.T) {
	// Exact chromatic targets are fixed points.
	for _, f := range []float64{220, 440, 880, 261.6256} {
		got := NearestChromatic(f)
		if math.Abs(Cents(f, got)) > 0.01 {
			t.Fatalf("NearestChromatic(%v) = %v, want ~%v", f, got, f)
		}
	}

	// 225 Hz is ~38.9 cents sharp of A3; nearest semitone is 220.
	if got := NearestChromatic(225); math.Abs(got-220) > 1e-9 {
		t.Fatalf("NearestChromatic(225) = %v, want 220", got)
	}

	for _, f := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if got := NearestChromatic(f); got != 0 {
			t.Fatalf("NearestChromatic(%v) = %v, want 0", f, got)
		}
	}
}

func TestCentsAndRatio(t *testing.T) {
	if got := Cents(220, 440); math.Abs(got-1200) > 1e-9 {
		t.Fatalf("Cents(220, 440) = %v, want 1200", got)
	}
	if got := Cents(440, 220); math.Abs(got+1200) > 1e-9 {
		t.Fatalf("Cents(440, 220) = %v, want -1200", got)
	}
	if got := Cents(0, 440); got != 0 {
		t.Fatalf("Cents(0, 440) = %v, want 0", got)
	}

	if got := RatioFromCents(1200); math.Abs(got-2) > 1e-12 {
		t.Fatalf("RatioFromCents(1200) = %v, want 2", got)
	}
	if got := RatioFromCents(0); got != 1 {
		t.Fatalf("RatioFromCents(0) = %v, want 1", got)
	}
}

func TestNoteName(t *testing.T) {
	tests := []struct {
		f    float64
		want string
	}{
		{440, "A4"},
		{261.6256, "C4"},
		{110, "A2"},
		{246.94, "B3"},
		{277.18, "C#4"},
		{0, ""},
	}

	for _, tt := range tests {
		if got := NoteName(tt.f); got != tt.want {
			t.Fatalf("NoteName(%v) = %q, want %q", tt.f, got, tt.want)
		}
	}

	_, dev := NoteNameCents(225)
	if math.Abs(dev-38.9) > 0.2 {
		t.Fatalf("NoteNameCents(225) deviation = %v, want ~38.9", dev)
	}
}
