// SPDX-License-Identifier: MIT
package analysis

import (
	"chladni/internal/plate"
	"chladni/pkg/utils"
	"errors"
	"math"
	"testing"
)

const (
	testBlockSize  = 1024
	testSampleRate = 44100
)

func newTestAnalyzer(t testing.TB) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(testBlockSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func newTestMapper(t testing.TB, freqs []float64, cfg MapperConfig) *Mapper {
	t.Helper()
	bank, err := plate.NewBank(freqs)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	m, err := NewMapper(bank, cfg)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	return m
}

// linearSpectrum has bins every 10 Hz from 0 Hz, all silent.
func linearSpectrum(bins int) Spectrum {
	s := Spectrum{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
	}
	for k := range s.Frequencies {
		s.Frequencies[k] = float64(k) * 10
	}
	return s
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"", Hann, false},
		{"hann", Hann, false},
		{" Blackman ", Blackman, false},
		{"FLATTOP", FlatTop, false},
		{"rectangular", Rectangular, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNewAnalyzerRejectsBadSizes(t *testing.T) {
	for _, size := range []int{0, 1, 1000, -64} {
		if _, err := NewAnalyzer(size, testSampleRate, Hann); err == nil {
			t.Errorf("NewAnalyzer(%d) should fail", size)
		}
	}
	if _, err := NewAnalyzer(testBlockSize, 0, Hann); err == nil {
		t.Error("NewAnalyzer with zero sample rate should fail")
	}
}

func TestSpectrumShape(t *testing.T) {
	a := newTestAnalyzer(t)
	spectrum, err := a.Analyze(utils.GenerateComplexWave(testBlockSize, testSampleRate))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if spectrum.Len() != testBlockSize/2 || len(spectrum.Frequencies) != testBlockSize/2 {
		t.Fatalf("spectrum has %d bins / %d frequencies, want %d",
			spectrum.Len(), len(spectrum.Frequencies), testBlockSize/2)
	}
	if spectrum.Frequencies[0] != 0 {
		t.Errorf("first bin = %f Hz, want 0", spectrum.Frequencies[0])
	}
	for k := 1; k < spectrum.Len(); k++ {
		if spectrum.Frequencies[k] <= spectrum.Frequencies[k-1] {
			t.Fatalf("frequencies not strictly increasing at bin %d", k)
		}
	}
	if top := spectrum.Frequencies[spectrum.Len()-1]; top >= testSampleRate/2 {
		t.Errorf("top bin %f Hz is not below Nyquist", top)
	}
	for k, m := range spectrum.Magnitudes {
		if m < 0 || math.IsNaN(m) {
			t.Fatalf("bin %d magnitude %f is not a non-negative number", k, m)
		}
	}
}

func TestSpectrumOnBinSine(t *testing.T) {
	a := newTestAnalyzer(t)
	const bin = 10
	freq := float64(bin) * a.BinWidth()

	spectrum, err := a.Analyze(utils.GenerateSineWave(testBlockSize, testSampleRate, freq, 1))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if peak := utils.FindPeakBin(spectrum.Magnitudes, 0, spectrum.Len()-1); peak != bin {
		t.Errorf("peak at bin %d, want %d", peak, bin)
	}
	if got := spectrum.Magnitudes[bin]; math.Abs(got-1) > 0.01 {
		t.Errorf("full-scale sine reads %f, want ~1", got)
	}
}

func TestSpectrumOfSilenceIsZero(t *testing.T) {
	a := newTestAnalyzer(t)
	spectrum, err := a.Analyze(make([]float64, testBlockSize))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for k, m := range spectrum.Magnitudes {
		if m != 0 {
			t.Fatalf("bin %d = %g for a silent block", k, m)
		}
	}
}

func TestAnalyzeContractViolations(t *testing.T) {
	a := newTestAnalyzer(t)

	nan := make([]float64, testBlockSize)
	nan[17] = math.NaN()
	inf := make([]float64, testBlockSize)
	inf[3] = math.Inf(-1)

	tests := []struct {
		name      string
		block     []float64
		wantIndex int
	}{
		{"short", make([]float64, testBlockSize-1), -1},
		{"long", make([]float64, testBlockSize*2), -1},
		{"nan", nan, 17},
		{"inf", inf, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Analyze(tt.block)
			if !errors.Is(err, ErrContractViolation) {
				t.Fatalf("Analyze error = %v, want ErrContractViolation", err)
			}
			var cv *ContractViolation
			if !errors.As(err, &cv) {
				t.Fatalf("error %T is not a *ContractViolation", err)
			}
			if cv.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", cv.Index, tt.wantIndex)
			}
		})
	}
}

func TestAnalyzeZeroAllocs(t *testing.T) {
	a := newTestAnalyzer(t)
	block := utils.GenerateComplexWave(testBlockSize, testSampleRate)

	a.Analyze(block)
	allocs := testing.AllocsPerRun(100, func() {
		a.Analyze(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Analyze hot path, got %.1f", allocs)
	}
}

func TestNewMapperValidation(t *testing.T) {
	bank, err := plate.NewBank([]float64{100, 200})
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	valid := MapperConfig{WindowWidth: 40, ReferenceCeiling: 1, SmoothingAlpha: 0.3, MaxAmplitude: 1}

	tests := []struct {
		name   string
		mutate func(*MapperConfig)
	}{
		{"zero alpha", func(c *MapperConfig) { c.SmoothingAlpha = 0 }},
		{"alpha above one", func(c *MapperConfig) { c.SmoothingAlpha = 1.5 }},
		{"zero window", func(c *MapperConfig) { c.WindowWidth = 0 }},
		{"zero ceiling", func(c *MapperConfig) { c.ReferenceCeiling = 0 }},
		{"negative max", func(c *MapperConfig) { c.MaxAmplitude = -1 }},
	}

	if _, err := NewMapper(bank, valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if _, err := NewMapper(nil, valid); err == nil {
		t.Error("nil bank accepted")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewMapper(bank, cfg); err == nil {
				t.Errorf("config %+v accepted", cfg)
			}
		})
	}
}

func TestMapperSharesOverlappingBins(t *testing.T) {
	m := newTestMapper(t, []float64{100, 120}, MapperConfig{
		WindowWidth: 15, ReferenceCeiling: 2, SmoothingAlpha: 1, MaxAmplitude: 10,
	})
	s := linearSpectrum(64)
	s.Magnitudes[11] = 1 // 110 Hz, inside both bands

	raw := make([]float64, 2)
	m.Excitation(s, raw)
	for i, v := range raw {
		if v != 0.5 {
			t.Errorf("mode %d excitation = %f, want 0.5", i, v)
		}
	}
}

func TestMapperNarrowWindowUsesNearestBin(t *testing.T) {
	m := newTestMapper(t, []float64{104}, MapperConfig{
		WindowWidth: 1, ReferenceCeiling: 1, SmoothingAlpha: 1, MaxAmplitude: 10,
	})
	s := linearSpectrum(64)
	s.Magnitudes[10] = 0.25 // 100 Hz
	s.Magnitudes[11] = 0.75 // 110 Hz

	raw := make([]float64, 1)
	m.Excitation(s, raw)
	if raw[0] != 0.25 {
		t.Errorf("excitation = %f, want the 100 Hz bin (0.25)", raw[0])
	}
}

func TestMapperModeAboveSpectrumIsSilent(t *testing.T) {
	m := newTestMapper(t, []float64{100, 5000}, MapperConfig{
		WindowWidth: 5, ReferenceCeiling: 1, SmoothingAlpha: 1, MaxAmplitude: 10,
	})
	s := linearSpectrum(64)
	for k := range s.Magnitudes {
		s.Magnitudes[k] = 1
	}

	raw := make([]float64, 2)
	m.Excitation(s, raw)
	if raw[1] != 0 {
		t.Errorf("mode beyond the top bin got %f", raw[1])
	}
	if raw[0] != 1 {
		t.Errorf("in-range mode got %f, want 1", raw[0])
	}
}

func TestMapperClampsToMaxAmplitude(t *testing.T) {
	m := newTestMapper(t, []float64{100}, MapperConfig{
		WindowWidth: 10, ReferenceCeiling: 1, SmoothingAlpha: 1, MaxAmplitude: 0.8,
	})
	s := linearSpectrum(64)
	s.Magnitudes[10] = 50

	if got := m.Update(s)[0]; got != 0.8 {
		t.Errorf("coefficient = %f, want clamp at 0.8", got)
	}
}

func TestMapperConverges(t *testing.T) {
	const alpha = 0.3
	m := newTestMapper(t, []float64{100, 300}, MapperConfig{
		WindowWidth: 5, ReferenceCeiling: 1, SmoothingAlpha: alpha, MaxAmplitude: 1,
	})
	s := linearSpectrum(64)
	s.Magnitudes[10] = 0.5

	var coeffs []float64
	prev := 0.0
	for i := range 40 {
		coeffs = m.Update(s)
		if coeffs[0] < prev {
			t.Fatalf("block %d: coefficient fell from %f to %f under constant input", i, prev, coeffs[0])
		}
		prev = coeffs[0]
	}
	if math.Abs(coeffs[0]-0.5) > 1e-5 {
		t.Errorf("coefficient = %f, want convergence to 0.5", coeffs[0])
	}
	if coeffs[1] != 0 {
		t.Errorf("unexcited mode = %f, want 0", coeffs[1])
	}
}

func TestMapperDecayIsGeometric(t *testing.T) {
	const alpha = 0.25
	m := newTestMapper(t, []float64{100}, MapperConfig{
		WindowWidth: 5, ReferenceCeiling: 1, SmoothingAlpha: alpha, MaxAmplitude: 1,
	})
	s := linearSpectrum(64)
	s.Magnitudes[10] = 0.8
	c0 := m.Update(s)[0]

	for k := 1; k <= 10; k++ {
		got := m.Decay()[0]
		want := c0 * math.Pow(1-alpha, float64(k))
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("after %d silent blocks coefficient = %g, want %g", k, got, want)
		}
	}

	m.Reset()
	if m.Coefficients()[0] != 0 {
		t.Error("Reset did not return the plate to rest")
	}
}

func TestPipelineSingleToneExcitesOneMode(t *testing.T) {
	freqs := []float64{100, 200, 400, 800}
	a := newTestAnalyzer(t)
	m := newTestMapper(t, freqs, MapperConfig{
		WindowWidth: 50, ReferenceCeiling: 1, SmoothingAlpha: 0.3, MaxAmplitude: 1,
	})
	p := NewPipeline(a, m)

	block := make([]float64, testBlockSize)
	phase := 0.0
	var coeffs []float64
	for range 10 {
		phase = utils.FillSine(block, testSampleRate, 400, 0.5, phase)
		var err error
		if coeffs, err = p.Process(block); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	spectrum, err := a.Analyze(block)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	raw := make([]float64, len(freqs))
	m.Excitation(spectrum, raw)

	if coeffs[2] < 0.9*raw[2] {
		t.Errorf("400 Hz mode = %f, want > 0.9 × %f", coeffs[2], raw[2])
	}
	for _, i := range []int{0, 1, 3} {
		if coeffs[i] >= 0.1 {
			t.Errorf("mode %d (%g Hz) = %f, want < 0.1", i, freqs[i], coeffs[i])
		}
	}
}

func TestPipelineFullScaleToneStaysInRange(t *testing.T) {
	freqs := []float64{100, 200, 400, 800}
	cfg := MapperConfig{WindowWidth: 40, ReferenceCeiling: 1, SmoothingAlpha: 0.3, MaxAmplitude: 1}
	a := newTestAnalyzer(t)
	m := newTestMapper(t, freqs, cfg)
	p := NewPipeline(a, m)

	block := make([]float64, testBlockSize)
	phase := 0.0
	var coeffs []float64
	for range 10 {
		phase = utils.FillSine(block, testSampleRate, 400, 1, phase)
		var err error
		if coeffs, err = p.Process(block); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	spectrum, err := a.Analyze(block)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	raw := make([]float64, len(freqs))
	m.Excitation(spectrum, raw)

	if math.Abs(raw[2]-1) > 0.05 {
		t.Errorf("full-scale 400 Hz tone excites its mode with %f, want about 1", raw[2])
	}
	if coeffs[2] <= 0.9*raw[2] {
		t.Errorf("400 Hz mode = %f, want > 0.9 × %f", coeffs[2], raw[2])
	}
	for i, c := range coeffs {
		if c < 0 || c > cfg.MaxAmplitude {
			t.Errorf("coefficient %d = %f, outside [0, %g]", i, c, cfg.MaxAmplitude)
		}
	}
}

func TestMapperCalibrateNormalizesUnitTone(t *testing.T) {
	tests := []struct {
		name   string
		window WindowFunc
		width  float64
	}{
		{"hann narrow", Hann, 20},
		{"hann default", Hann, 40},
		{"blackman wide", Blackman, 120},
		{"rectangular", Rectangular, 40},
	}

	freqs := []float64{100, 237, 400, 1234.5}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(testBlockSize, testSampleRate, tt.window)
			if err != nil {
				t.Fatalf("NewAnalyzer: %v", err)
			}
			m := newTestMapper(t, freqs, MapperConfig{
				WindowWidth: tt.width, ReferenceCeiling: 2, SmoothingAlpha: 0.3, MaxAmplitude: 1,
			})
			if m.Calibrated() {
				t.Fatal("new mapper reports calibrated gains")
			}
			m.Calibrate(a)
			if !m.Calibrated() {
				t.Fatal("Calibrate left the mapper uncalibrated")
			}

			raw := make([]float64, len(freqs))
			for i, f := range freqs {
				s, err := a.ToneResponse(f)
				if err != nil {
					t.Fatalf("ToneResponse(%g): %v", f, err)
				}
				m.Excitation(s, raw)
				if math.Abs(raw[i]-0.5) > 1e-9 {
					t.Errorf("unit tone at %g Hz excites its mode with %f, want 1/ceiling = 0.5", f, raw[i])
				}
			}
		})
	}
}

func TestMapperCalibrationDroppedOnNewGrid(t *testing.T) {
	a := newTestAnalyzer(t)
	m := newTestMapper(t, []float64{400}, MapperConfig{
		WindowWidth: 40, ReferenceCeiling: 1, SmoothingAlpha: 0.3, MaxAmplitude: 1,
	})
	m.Calibrate(a)

	s := linearSpectrum(100)
	s.Magnitudes[40] = 0.25
	raw := make([]float64, 1)
	m.Excitation(s, raw)

	if m.Calibrated() {
		t.Error("mapper kept its gains after the bin grid changed")
	}
	if raw[0] != 0.25 {
		t.Errorf("excitation on an uncalibrated grid = %f, want 0.25", raw[0])
	}
}

func TestPipelineSilentBlocksDecay(t *testing.T) {
	const alpha = 0.3
	cfg := MapperConfig{WindowWidth: 40, ReferenceCeiling: 1, SmoothingAlpha: alpha, MaxAmplitude: 1}
	a := newTestAnalyzer(t)
	m := newTestMapper(t, []float64{100, 400}, cfg)
	p := NewPipeline(a, m)

	block := make([]float64, testBlockSize)
	phase := 0.0
	for range 5 {
		phase = utils.FillSine(block, testSampleRate, 400, 1, phase)
		if _, err := p.Process(block); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	c0 := append([]float64(nil), m.Coefficients()...)
	if c0[1] == 0 {
		t.Fatal("tone did not excite the 400 Hz mode")
	}

	zeros := make([]float64, testBlockSize)
	for k := 1; k <= 20; k++ {
		coeffs, err := p.Process(zeros)
		if err != nil {
			t.Fatalf("Process(silence): %v", err)
		}
		for i, c := range coeffs {
			want := c0[i] * math.Pow(1-alpha, float64(k))
			if math.Abs(c-want) > 1e-12 {
				t.Fatalf("mode %d after %d silent blocks = %g, want %g", i, k, c, want)
			}
			if c < 0 || c > cfg.MaxAmplitude {
				t.Fatalf("mode %d after %d silent blocks = %g, outside [0, %g]", i, k, c, cfg.MaxAmplitude)
			}
		}
	}
	if p.Rejected() != 0 {
		t.Errorf("silent blocks were rejected %d times", p.Rejected())
	}
}

func TestPipelineDropsBadBlocks(t *testing.T) {
	a := newTestAnalyzer(t)
	m := newTestMapper(t, []float64{440}, MapperConfig{
		WindowWidth: 50, ReferenceCeiling: 1, SmoothingAlpha: 0.5, MaxAmplitude: 1,
	})
	p := NewPipeline(a, m)

	good, err := p.Process(utils.GenerateSineWave(testBlockSize, testSampleRate, 440, 0.5))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	before := good[0]

	bad := make([]float64, testBlockSize)
	bad[0] = math.NaN()
	coeffs, err := p.Process(bad)
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("Process error = %v, want ErrContractViolation", err)
	}
	if coeffs[0] != before {
		t.Errorf("coefficients changed on a rejected block: %f -> %f", before, coeffs[0])
	}
	if p.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", p.Rejected())
	}

	if got := p.Silence()[0]; got != before*0.5 {
		t.Errorf("Silence() = %f, want %f", got, before*0.5)
	}
}

func TestPipelineProcessZeroAllocs(t *testing.T) {
	a := newTestAnalyzer(t)
	m := newTestMapper(t, plate.PlateFrequencies(32, 80), MapperConfig{
		WindowWidth: 40, ReferenceCeiling: 1, SmoothingAlpha: 0.3, MaxAmplitude: 1,
	})
	p := NewPipeline(a, m)
	block := utils.GenerateComplexWave(testBlockSize, testSampleRate)

	p.Process(block)
	allocs := testing.AllocsPerRun(100, func() {
		p.Process(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Process hot path, got %.1f", allocs)
	}
}

func BenchmarkPipelineProcess(b *testing.B) {
	a := newTestAnalyzer(b)
	m := newTestMapper(b, plate.PlateFrequencies(32, 80), MapperConfig{
		WindowWidth: 40, ReferenceCeiling: 1, SmoothingAlpha: 0.3, MaxAmplitude: 1,
	})
	p := NewPipeline(a, m)
	block := utils.GenerateComplexWave(testBlockSize, testSampleRate)

	b.ReportAllocs()

	for b.Loop() {
		p.Process(block)
	}
}
