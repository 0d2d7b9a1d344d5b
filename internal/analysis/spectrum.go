// SPDX-License-Identifier: MIT
package analysis

import (
	"chladni/pkg/bitint"
	"chladni/pkg/utils"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowFunc selects the taper applied before the transform.
type WindowFunc int

const (
	Hann WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	FlatTop
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

var windowNames = map[WindowFunc]string{
	Hann:            "hann",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	FlatTop:         "flattop",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hann", "hanning":
		return Hann, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "flattop":
		return FlatTop, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// Spectrum is the one-sided magnitude spectrum of a block: N/2 bins from
// 0 Hz up to one bin below Nyquist. Frequencies[k] = k·sampleRate/N.
//
// A Spectrum returned by Analyzer.Analyze aliases the analyzer's buffers and
// is only valid until the next call.
type Spectrum struct {
	Frequencies []float64
	Magnitudes  []float64
}

// Len returns the number of bins.
func (s Spectrum) Len() int {
	return len(s.Magnitudes)
}

// Analyzer windows a block and produces its magnitude spectrum. All buffers
// are allocated up front; Analyze does not allocate.
//
// An Analyzer is owned by a single goroutine (the audio loop).
type Analyzer struct {
	fft        *fourier.FFT
	blockSize  int
	sampleRate float64
	windowType WindowFunc
	scale      float64 // 2/Σw, so a full-scale on-bin sine reads 1

	window    []float64
	input     []float64
	coeffs    []complex128
	freqs     []float64
	magnitude []float64
}

// NewAnalyzer builds an analyzer for blocks of blockSize samples. blockSize
// must be a power of two no smaller than 2.
func NewAnalyzer(blockSize int, sampleRate float64, windowType WindowFunc) (*Analyzer, error) {
	if bitint.Log2(blockSize) < 1 {
		return nil, fmt.Errorf("block size must be a power of 2 (>= 2), got %d", blockSize)
	}
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	coeffs := make([]float64, blockSize)
	applyWindow(coeffs, windowType)

	bins := blockSize / 2
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * sampleRate / float64(blockSize)
	}

	return &Analyzer{
		fft:        fourier.NewFFT(blockSize),
		blockSize:  blockSize,
		sampleRate: sampleRate,
		windowType: windowType,
		scale:      2 / floats.Sum(coeffs),
		window:     coeffs,
		input:      make([]float64, blockSize),
		coeffs:     make([]complex128, blockSize/2+1),
		freqs:      freqs,
		magnitude:  make([]float64, bins),
	}, nil
}

// Analyze validates block, applies the window, transforms, and returns the
// magnitude spectrum. A block of the wrong length or containing NaN/Inf
// returns a *ContractViolation and leaves the previous spectrum untouched.
func (a *Analyzer) Analyze(block []float64) (Spectrum, error) {
	if len(block) != a.blockSize {
		return Spectrum{}, &ContractViolation{
			Reason: fmt.Sprintf("block holds %d samples, analyzer expects %d", len(block), a.blockSize),
			Index:  -1,
		}
	}
	for i, v := range block {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Spectrum{}, &ContractViolation{Reason: "non-finite sample", Index: i}
		}
	}

	floats.MulTo(a.input, block, a.window)
	a.fft.Coefficients(a.coeffs, a.input)

	for k := range a.magnitude {
		a.magnitude[k] = cmplx.Abs(a.coeffs[k]) * a.scale
	}

	return Spectrum{Frequencies: a.freqs, Magnitudes: a.magnitude}, nil
}

// ToneResponse returns the spectrum of a full-scale sine at freq starting at
// phase zero. Like Analyze it reuses the analyzer's buffers; it allocates the
// test block, so keep it off the hot path.
func (a *Analyzer) ToneResponse(freq float64) (Spectrum, error) {
	block := make([]float64, a.blockSize)
	utils.FillSine(block, a.sampleRate, freq, 1, 0)
	return a.Analyze(block)
}

// BlockSize returns N.
func (a *Analyzer) BlockSize() int {
	return a.blockSize
}

// SampleRate returns the sample rate in Hz.
func (a *Analyzer) SampleRate() float64 {
	return a.sampleRate
}

// BinWidth returns the spacing between bins in Hz.
func (a *Analyzer) BinWidth() float64 {
	return a.sampleRate / float64(a.blockSize)
}

// Window returns the configured window function.
func (a *Analyzer) Window() WindowFunc {
	return a.windowType
}

// applyWindow fills coeffs with the selected window's coefficients. The
// gonum functions scale in place, so the slice starts at 1.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case FlatTop:
		window.FlatTop(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
		window.Rectangular(coeffs)
	default:
		window.Hann(coeffs)
	}
}
