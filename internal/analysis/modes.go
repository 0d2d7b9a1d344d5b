// SPDX-License-Identifier: MIT
package analysis

import (
	"chladni/internal/plate"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// MapperConfig tunes how a spectrum becomes mode coefficients.
type MapperConfig struct {
	WindowWidth      float64 // half-width in Hz of the band each mode listens to
	ReferenceCeiling float64 // raw excitation that maps to 1.0
	SmoothingAlpha   float64 // EMA weight of the newest block, (0,1]
	MaxAmplitude     float64 // coefficients are clamped to [0, MaxAmplitude]
}

// binRange is an inclusive range of spectrum bins.
type binRange struct {
	lo, hi int
}

// Mapper reduces a spectrum to one excitation per mode and smooths the
// result over time:
//
//	raw_i = g_i · Σ |X_k| for |f_k − f_i| ≤ WindowWidth, divided by ReferenceCeiling
//	c_i   = clamp(α·raw_i + (1−α)·c_i, 0, MaxAmplitude)
//
// g_i is 1 until Calibrate sets it to the inverse of what a full-scale sine
// at f_i sums to over the same bins, so such a tone reads 1/ReferenceCeiling
// whatever the window, bin width and band width.
//
// Bands of neighbouring modes may overlap; a bin in both bands feeds both.
// A Mapper is owned by the audio loop goroutine.
type Mapper struct {
	bank   *plate.Bank
	cfg    MapperConfig
	ranges []binRange
	gain   []float64
	raw    []float64
	coeffs []float64

	// layout the ranges were computed for
	bins    int
	topFreq float64

	calibrated bool
}

// NewMapper validates cfg and returns a Mapper with all coefficients at rest.
func NewMapper(bank *plate.Bank, cfg MapperConfig) (*Mapper, error) {
	if bank == nil || bank.Len() == 0 {
		return nil, fmt.Errorf("mode mapper needs a non-empty mode bank")
	}
	if !(cfg.SmoothingAlpha > 0 && cfg.SmoothingAlpha <= 1) {
		return nil, fmt.Errorf("smoothing alpha must be in (0,1], got %g", cfg.SmoothingAlpha)
	}
	if !(cfg.WindowWidth > 0) {
		return nil, fmt.Errorf("window width must be positive, got %g", cfg.WindowWidth)
	}
	if !(cfg.ReferenceCeiling > 0) {
		return nil, fmt.Errorf("reference ceiling must be positive, got %g", cfg.ReferenceCeiling)
	}
	if !(cfg.MaxAmplitude > 0) {
		return nil, fmt.Errorf("max amplitude must be positive, got %g", cfg.MaxAmplitude)
	}

	n := bank.Len()
	m := &Mapper{
		bank:   bank,
		cfg:    cfg,
		ranges: make([]binRange, n),
		gain:   make([]float64, n),
		raw:    make([]float64, n),
		coeffs: make([]float64, n),
	}
	m.resetGain()
	return m, nil
}

// Calibrate measures, for every mode, the band sum a full-scale sine at the
// mode frequency produces on a's bin grid and normalizes by it. Modes whose
// band holds no bin keep unit gain. It uses a's buffers, so it must not run
// concurrently with Analyze. A spectrum on a different grid drops the
// calibration.
func (m *Mapper) Calibrate(a *Analyzer) {
	m.layout(Spectrum{Frequencies: a.freqs})
	for i, r := range m.ranges {
		m.gain[i] = 1
		if r.lo > r.hi {
			continue
		}
		s, err := a.ToneResponse(m.bank.Mode(i).Frequency)
		if err != nil {
			continue
		}
		if sum := floats.Sum(s.Magnitudes[r.lo : r.hi+1]); sum > 0 {
			m.gain[i] = 1 / sum
		}
	}
	m.calibrated = true
}

// Calibrated reports whether per-mode gains are in effect.
func (m *Mapper) Calibrated() bool {
	return m.calibrated
}

func (m *Mapper) resetGain() {
	for i := range m.gain {
		m.gain[i] = 1
	}
	m.calibrated = false
}

// Excitation writes the normalized, unsmoothed excitation of every mode
// into dst (len = mode count).
func (m *Mapper) Excitation(s Spectrum, dst []float64) {
	m.layout(s)
	for i, r := range m.ranges {
		if r.lo > r.hi {
			dst[i] = 0
			continue
		}
		dst[i] = m.gain[i] * floats.Sum(s.Magnitudes[r.lo:r.hi+1]) / m.cfg.ReferenceCeiling
	}
}

// Update folds one spectrum into the smoothed coefficients and returns them.
// The returned slice is owned by the Mapper and overwritten by the next
// Update or Decay.
func (m *Mapper) Update(s Spectrum) []float64 {
	m.Excitation(s, m.raw)
	m.smooth(m.raw)
	return m.coeffs
}

// Decay advances the smoothing law with zero excitation, letting the plate
// relax toward rest after silence or a dropped block.
func (m *Mapper) Decay() []float64 {
	for i := range m.raw {
		m.raw[i] = 0
	}
	m.smooth(m.raw)
	return m.coeffs
}

// Coefficients returns the current smoothed vector (Mapper-owned).
func (m *Mapper) Coefficients() []float64 {
	return m.coeffs
}

// Reset puts every coefficient back at rest.
func (m *Mapper) Reset() {
	for i := range m.coeffs {
		m.coeffs[i] = 0
	}
}

// Config returns the mapper settings.
func (m *Mapper) Config() MapperConfig {
	return m.cfg
}

func (m *Mapper) smooth(raw []float64) {
	alpha := m.cfg.SmoothingAlpha
	for i, r := range raw {
		v := alpha*r + (1-alpha)*m.coeffs[i]
		m.coeffs[i] = math.Max(0, math.Min(m.cfg.MaxAmplitude, v))
	}
}

// layout recomputes the per-mode bin ranges when the spectrum shape changes.
// A band too narrow to contain any bin falls back to the nearest bin so
// every mode below Nyquist can be excited.
func (m *Mapper) layout(s Spectrum) {
	n := len(s.Frequencies)
	if n == 0 {
		for i := range m.ranges {
			m.ranges[i] = binRange{lo: 0, hi: -1}
		}
		m.bins, m.topFreq = 0, 0
		m.resetGain()
		return
	}
	if n == m.bins && s.Frequencies[n-1] == m.topFreq {
		return
	}
	if m.bins != 0 {
		m.resetGain()
	}

	freqs := s.Frequencies
	w := m.cfg.WindowWidth
	for i := range m.ranges {
		f := m.bank.Mode(i).Frequency
		lo := sort.SearchFloat64s(freqs, f-w)
		hi := sort.SearchFloat64s(freqs, f+w)
		if hi == n || freqs[hi] > f+w {
			hi--
		}
		if lo > hi && f <= freqs[n-1] {
			lo = nearestBin(freqs, f)
			hi = lo
		}
		m.ranges[i] = binRange{lo: lo, hi: hi}
	}
	m.bins, m.topFreq = n, freqs[n-1]
}

func nearestBin(freqs []float64, f float64) int {
	k := sort.SearchFloat64s(freqs, f)
	if k == len(freqs) {
		return k - 1
	}
	if k > 0 && f-freqs[k-1] < freqs[k]-f {
		return k - 1
	}
	return k
}
