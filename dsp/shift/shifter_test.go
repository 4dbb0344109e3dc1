package shift

import (
	"math"
	"testing"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-autotune/dsp/detect"
	"github.com/cwbudde/algo-autotune/internal/testutil"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		opts       []Option
		wantErr    bool
	}{
		{name: "defaults", sampleRate: 48000},
		{name: "zero sample rate", sampleRate: 0, wantErr: true},
		{name: "negative sample rate", sampleRate: -1, wantErr: true},
		{name: "grain too small", sampleRate: 48000, opts: []Option{WithGrainSize(32)}, wantErr: true},
		{name: "grain too large", sampleRate: 48000, opts: []Option{WithGrainSize(16384)}, wantErr: true},
		{name: "overlap too small", sampleRate: 48000, opts: []Option{WithOverlap(1)}, wantErr: true},
		{name: "overlap too large", sampleRate: 48000, opts: []Option{WithOverlap(9)}, wantErr: true},
		{name: "grain not divisible by overlap", sampleRate: 48000, opts: []Option{
			WithGrainSize(1000), WithOverlap(3),
		}, wantErr: true},
		{name: "custom grain and overlap", sampleRate: 48000, opts: []Option{
			WithGrainSize(2048), WithOverlap(8),
		}},
		{name: "nil option ignored", sampleRate: 48000, opts: []Option{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.sampleRate, tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected construction error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if s == nil {
				t.Fatal("New() returned nil shifter without error")
			}
		})
	}
}

func TestShifterGetters(t *testing.T) {
	s, err := New(44100, WithGrainSize(2048), WithOverlap(8))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if got := s.SampleRate(); got != 44100 {
		t.Fatalf("SampleRate() = %v, want 44100", got)
	}
	if got := s.GrainSize(); got != 2048 {
		t.Fatalf("GrainSize() = %v, want 2048", got)
	}
	if got := s.Overlap(); got != 8 {
		t.Fatalf("Overlap() = %v, want 8", got)
	}
	if got := s.HopSize(); got != 256 {
		t.Fatalf("HopSize() = %v, want 256", got)
	}

	if s.FormantPreserve() {
		t.Fatal("FormantPreserve() should default to false")
	}
	s.SetFormantPreserve(true)
	if !s.FormantPreserve() {
		t.Fatal("SetFormantPreserve(true) not reflected")
	}
}

// shiftBlockwise drives a fresh shifter over sig in 512-sample blocks.
func shiftBlockwise(t *testing.T, sig []float64, cents float64) []float64 {
	t.Helper()

	s, err := New(48000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	out := make([]float64, len(sig))
	for i := 0; i < len(sig); i += 512 {
		s.ShiftInto(out[i:i+512], sig[i:i+512], cents)
	}
	return out
}

func TestShiftZeroCentsPreservesLevel(t *testing.T) {
	sig := testutil.DeterministicSine(220, 48000, 0.5, 12288)
	out := shiftBlockwise(t, sig, 0)

	// Skip the pipeline warmup before comparing levels.
	inRMS := testutil.RMS(sig[4096:])
	outRMS := testutil.RMS(out[4096:])
	ratio := outRMS / inRMS
	if ratio < 0.95 || ratio > 1.05 {
		t.Fatalf("steady-state RMS ratio = %.4f, want within 5%% of unity", ratio)
	}

	d, err := detect.New(48000)
	if err != nil {
		t.Fatalf("detect.New() error: %v", err)
	}
	res := d.Detect(out)
	relErr := math.Abs(res.Frequency-220) / 220
	if relErr > 0.005 {
		t.Fatalf("zero-cent output detects as %.3f Hz, want 220 within 0.5%%", res.Frequency)
	}
}

func TestShiftMovesPitch(t *testing.T) {
	tests := []struct {
		name  string
		cents float64
	}{
		{name: "up a semitone", cents: 100},
		{name: "down a semitone", cents: -100},
		{name: "down a minor third", cents: -300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := testutil.DeterministicSine(220, 48000, 0.5, 12288)
			out := shiftBlockwise(t, sig, tt.cents)

			want := 220 * math.Exp2(tt.cents/1200)

			d, err := detect.New(48000)
			if err != nil {
				t.Fatalf("detect.New() error: %v", err)
			}
			res := d.Detect(out)
			if res.Frequency == 0 {
				t.Fatal("shifted output reported unvoiced")
			}

			relErr := math.Abs(res.Frequency-want) / want
			if relErr > 0.01 {
				t.Errorf("detected %.3f Hz, want %.3f within 1%%", res.Frequency, want)
			}
			if res.Confidence < 0.9 {
				t.Errorf("confidence %.4f, want >= 0.9", res.Confidence)
			}

			ratio := testutil.RMS(out[4096:]) / testutil.RMS(sig[4096:])
			if ratio < 0.8 || ratio > 1.2 {
				t.Errorf("steady-state RMS ratio = %.4f, want within 20%% of unity", ratio)
			}

			if snr := bandSNR(t, out, want, 48000, 4096); snr < 10 {
				t.Errorf("band SNR = %.1f dB, want >= 10 dB", snr)
			}
		})
	}
}

// bandSNR runs an FFT on the center of out and returns the power ratio in
// dB between a +-10 bin band around targetFreq and the rest of the
// spectrum.
func bandSNR(t *testing.T, out []float64, targetFreq, sampleRate float64, fftLen int) float64 {
	t.Helper()

	mid := len(out)/2 - fftLen/2
	if mid < 0 {
		mid = 0
	}
	chunk := out[mid : mid+fftLen]

	plan, err := algofft.NewPlan64(fftLen)
	if err != nil {
		t.Fatalf("NewPlan64 error: %v", err)
	}

	fftIn := make([]complex128, fftLen)
	fftOut := make([]complex128, fftLen)
	for i, v := range chunk {
		fftIn[i] = complex(v, 0)
	}
	if err := plan.Forward(fftOut, fftIn); err != nil {
		t.Fatalf("Forward FFT error: %v", err)
	}

	targetBin := int(math.Round(targetFreq * float64(fftLen) / sampleRate))

	const sigBW = 10

	sigPower := 0.0
	noisePower := 0.0
	for k := 1; k <= fftLen/2; k++ {
		mag2 := real(fftOut[k])*real(fftOut[k]) + imag(fftOut[k])*imag(fftOut[k])
		if k >= targetBin-sigBW && k <= targetBin+sigBW {
			sigPower += mag2
		} else {
			noisePower += mag2
		}
	}

	if noisePower <= 1e-30 {
		return 100
	}
	return 10 * math.Log10(sigPower/noisePower)
}

func TestShiftIntoBoundsByShorterBuffer(t *testing.T) {
	s, err := New(48000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	src := testutil.DeterministicSine(220, 48000, 0.5, 512)
	dst := testutil.DC(9, 512)

	s.ShiftInto(dst[:100], src, 0)

	for i := 100; i < len(dst); i++ {
		if dst[i] != 9 {
			t.Fatalf("dst[%d] = %v, want untouched sentinel 9", i, dst[i])
		}
	}
}

func TestShiftIntoAliasedBuffers(t *testing.T) {
	sig := testutil.DeterministicSine(220, 48000, 0.5, 4096)

	separate, err := New(48000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	inPlace, err := New(48000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	out := make([]float64, len(sig))
	separate.ShiftInto(out, sig, -100)

	aliased := make([]float64, len(sig))
	copy(aliased, sig)
	inPlace.ShiftInto(aliased, aliased, -100)

	for i := range out {
		if out[i] != aliased[i] {
			t.Fatalf("sample %d: in-place %v != out-of-place %v", i, aliased[i], out[i])
		}
	}
}

func TestShifterResetIsDeterministic(t *testing.T) {
	s, err := New(48000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	sig := testutil.DeterministicSine(330, 48000, 0.5, 4096)

	first := make([]float64, len(sig))
	s.ShiftInto(first, sig, 70)

	s.Reset()

	second := make([]float64, len(sig))
	s.ShiftInto(second, sig, 70)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs after Reset: %v != %v", i, first[i], second[i])
		}
	}
}
