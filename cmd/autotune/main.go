// Command autotune pitch-corrects a mono WAV file or a synthesized test
// tone through the correction engine, block by block.
//
// Usage:
//
//	autotune [flags]
//
// Examples:
//
//	autotune -in voice.wav -out tuned.wav
//	autotune -sine 225 -dur 2 -out tuned.wav
//	autotune -in voice.wav -settings autotune.yaml -key A -mode minor
//	autotune -list-keys
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-autotune/dsp/core"
	"github.com/cwbudde/algo-autotune/dsp/scale"
	"github.com/cwbudde/algo-autotune/dsp/tune"
	"github.com/cwbudde/algo-autotune/internal/testutil"
)

func main() {
	in := flag.String("in", "", "input WAV file (mono PCM); empty synthesizes a sine instead")
	out := flag.String("out", "", "output WAV file (16-bit mono); empty skips writing")
	sineHz := flag.Float64("sine", 225, "synthesized sine frequency in Hz when -in is empty")
	dur := flag.Float64("dur", 2, "synthesized signal duration in seconds")
	rate := flag.Float64("rate", 48000, "sample rate for synthesized input in Hz")
	block := flag.Int("block", 1024, "processing block size in samples")

	settingsPath := flag.String("settings", "", "YAML settings file (flags override file values)")
	scaleFlag := flag.String("scale", "", "quantization scale: chromatic or diatonic")
	keyFlag := flag.String("key", "", "key for diatonic quantization (see -list-keys)")
	modeFlag := flag.String("mode", "", "mode for diatonic quantization (see -list-modes)")
	strength := flag.Float64("strength", math.NaN(), "correction strength 0-100")
	speed := flag.Float64("speed", math.NaN(), "correction speed 0-100")
	maxCorrection := flag.Float64("max-correction", math.NaN(), "correction clamp in cents")

	debug := flag.Bool("debug", false, "enable debug logging")
	listKeys := flag.Bool("list-keys", false, "list supported keys")
	listModes := flag.Bool("list-modes", false, "list supported modes")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: autotune [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Pitch-corrects a mono WAV file or a synthesized tone.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  autotune -in voice.wav -out tuned.wav\n")
		fmt.Fprintf(os.Stderr, "  autotune -sine 225 -dur 2 -out tuned.wav\n")
		fmt.Fprintf(os.Stderr, "  autotune -in voice.wav -key A -mode minor -scale diatonic\n")
	}
	flag.Parse()

	if *listKeys {
		for _, name := range scale.KeyNames() {
			fmt.Println(name)
		}
		return
	}
	if *listModes {
		for _, name := range scale.ModeNames() {
			fmt.Println(name)
		}
		return
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	samples, sampleRate, err := loadInput(*in, *sineHz, *rate, *dur)
	if err != nil {
		logger.Fatalf("load input: %v", err)
	}
	logger.Debugf("loaded %d samples at %.0f Hz", len(samples), sampleRate)

	opts, err := settingsOptions(*settingsPath, *scaleFlag, *keyFlag, *modeFlag,
		*strength, *speed, *maxCorrection)
	if err != nil {
		logger.Fatalf("settings: %v", err)
	}

	stats := &runStats{}
	engine := tune.NewEngine(
		tune.WithSampleRate(sampleRate),
		tune.WithBlockSize(*block),
		tune.WithSink(stats),
	)
	settings := engine.SetSettings(opts...)
	logger.Infof("settings: scale=%s key=%s mode=%s strength=%.0f speed=%.0f max=%.0f cents",
		settings.Scale, settings.Key, settings.Mode,
		settings.Strength, settings.Speed, settings.MaxCorrection)

	if err := engine.Init(); err != nil {
		logger.Fatalf("init engine: %v", err)
	}
	engine.SetEnabled(true)
	defer engine.Destroy()

	output := make([]float64, len(samples))
	var scratch []float64
	for i := 0; i < len(samples); i += *block {
		end := i + *block
		if end > len(samples) {
			end = len(samples)
		}
		scratch = core.EnsureLen(scratch, end-i)
		copy(scratch, samples[i:end])
		engine.Process(scratch, output[i:end])
	}

	for _, ev := range stats.errors {
		logger.Warnf("block fault: %v", ev)
	}

	if *out != "" {
		if err := writeWAV(*out, output, int(sampleRate)); err != nil {
			logger.Fatalf("write output: %v", err)
		}
		logger.Infof("wrote %s", *out)
	}

	printSummary(stats)
}

// runStats collects telemetry from the engine sink.
type runStats struct {
	blocks     int
	voiced     int
	totalCents float64
	noteCounts map[string]int
	errors     []error
}

func (s *runStats) Emit(ev tune.Event) {
	switch ev.Kind {
	case tune.EventPitch:
		s.blocks++
		if ev.Pitch.DetectedHz > 0 {
			s.voiced++
			s.totalCents += math.Abs(ev.Pitch.CorrectionCents)
			if s.noteCounts == nil {
				s.noteCounts = make(map[string]int)
			}
			if name := scale.NoteName(ev.Pitch.TargetHz); name != "" {
				s.noteCounts[name]++
			}
		}
	case tune.EventError:
		s.errors = append(s.errors, ev.Err)
	}
}

func (s *runStats) dominantNote() string {
	best := ""
	for name, count := range s.noteCounts {
		if best == "" || count > s.noteCounts[best] {
			best = name
		}
	}
	if best == "" {
		return "-"
	}
	return best
}

func printSummary(s *runStats) {
	voicedRatio := 0.0
	meanCents := 0.0
	if s.blocks > 0 {
		voicedRatio = 100 * float64(s.voiced) / float64(s.blocks)
	}
	if s.voiced > 0 {
		meanCents = s.totalCents / float64(s.voiced)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Blocks\tVoiced\tVoiced %%\tMean |corr| [cents]\tDominant note\n")
	fmt.Fprintf(tw, "------\t------\t--------\t-------------------\t-------------\n")
	fmt.Fprintf(tw, "%d\t%d\t%.1f\t%.2f\t%s\n",
		s.blocks, s.voiced, voicedRatio, meanCents, s.dominantNote())
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

func loadInput(path string, sineHz, rate, dur float64) ([]float64, float64, error) {
	if path == "" {
		length := int(rate * dur)
		if length <= 0 {
			return nil, 0, fmt.Errorf("synthesized duration too short: %f s at %f Hz", dur, rate)
		}
		return testutil.DeterministicSine(sineHz, rate, 0.5, length), rate, nil
	}
	return readWAV(path)
}

func readWAV(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("%s: missing format information", path)
	}

	channels := buf.Format.NumChannels
	bitDepth := dec.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	norm := float64(int(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels

	// Downmix to mono by averaging channels.
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) / norm
	}

	return samples, float64(buf.Format.SampleRate), nil
}

func writeWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, v := range samples {
		v = core.Clamp(v, -1, 1)
		buf.Data[i] = int(math.Round(v * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// settingsFile mirrors tune.Settings for YAML loading; pointer fields
// distinguish absent keys from zero values.
type settingsFile struct {
	Strength        *float64 `yaml:"strength"`
	Speed           *float64 `yaml:"speed"`
	MaxCorrection   *float64 `yaml:"max_correction"`
	Scale           string   `yaml:"scale"`
	Key             string   `yaml:"key"`
	Mode            string   `yaml:"mode"`
	FormantPreserve *bool    `yaml:"formant_preserve"`
}

func settingsOptions(path, scaleName, keyName, modeName string,
	strength, speed, maxCorrection float64) ([]tune.SettingsOption, error) {

	var opts []tune.SettingsOption

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var file settingsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		fileOpts, err := file.options()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		opts = append(opts, fileOpts...)
	}

	// Flags override file values.
	if scaleName != "" {
		mode, err := parseScaleMode(scaleName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tune.WithScale(mode))
	}
	if keyName != "" {
		key, err := scale.ParseKey(keyName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tune.WithKey(key))
	}
	if modeName != "" {
		mode, err := scale.ParseMode(modeName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tune.WithMode(mode))
	}
	if !math.IsNaN(strength) {
		opts = append(opts, tune.WithStrength(strength))
	}
	if !math.IsNaN(speed) {
		opts = append(opts, tune.WithSpeed(speed))
	}
	if !math.IsNaN(maxCorrection) {
		opts = append(opts, tune.WithMaxCorrection(maxCorrection))
	}

	return opts, nil
}

func (f *settingsFile) options() ([]tune.SettingsOption, error) {
	var opts []tune.SettingsOption

	if f.Strength != nil {
		opts = append(opts, tune.WithStrength(*f.Strength))
	}
	if f.Speed != nil {
		opts = append(opts, tune.WithSpeed(*f.Speed))
	}
	if f.MaxCorrection != nil {
		opts = append(opts, tune.WithMaxCorrection(*f.MaxCorrection))
	}
	if f.Scale != "" {
		mode, err := parseScaleMode(f.Scale)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tune.WithScale(mode))
	}
	if f.Key != "" {
		key, err := scale.ParseKey(f.Key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tune.WithKey(key))
	}
	if f.Mode != "" {
		mode, err := scale.ParseMode(f.Mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tune.WithMode(mode))
	}
	if f.FormantPreserve != nil {
		opts = append(opts, tune.WithFormantPreserve(*f.FormantPreserve))
	}

	return opts, nil
}

func parseScaleMode(s string) (tune.ScaleMode, error) {
	switch s {
	case "chromatic":
		return tune.ScaleChromatic, nil
	case "diatonic":
		return tune.ScaleDiatonic, nil
	default:
		return 0, fmt.Errorf("unknown scale %q (want chromatic or diatonic)", s)
	}
}
