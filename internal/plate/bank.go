// SPDX-License-Identifier: MIT

/*
Package plate defines the circular plate: the fixed bank of vibrational
modes, the closed-form displacement field built from them, and a raster
evaluator that samples that field in parallel.

Each mode (m, n) has the basis function

	φ(r, θ) = J_m(j_{m,n}·r) · cos(m·θ),   r ≤ 1

where j_{m,n} is the n-th zero of the Bessel function J_m, so every basis
vanishes on the rim. Displacement is Σ c_i·φ_i and nodal lines are where it
crosses zero.
*/
package plate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxModes bounds the bank so basis tables and frames stay small.
const MaxModes = 256

// Shape is the spatial part of a mode: angular order m (nodal diameters),
// radial order n (nodal circles, counting the rim) and wavenumber j_{m,n}.
type Shape struct {
	Angular    int
	Radial     int
	Wavenumber float64
}

// Mode is one entry of the bank.
type Mode struct {
	Index int
	Shape
	Frequency float64 // resonant frequency in Hz
}

// Bank is the immutable, ordered set of modes fixed at startup.
type Bank struct {
	modes []Mode
}

// Shapes returns the first count mode shapes ordered by ascending
// wavenumber, ties broken by angular order.
func Shapes(count int) []Shape {
	if count <= 0 {
		return nil
	}

	// m = 0 supplies count zeros on its own, which bounds every other order.
	var shapes []Shape
	for n, z := range BesselZeros(0, count, math.Inf(1)) {
		shapes = append(shapes, Shape{Angular: 0, Radial: n + 1, Wavenumber: z})
	}
	limit := shapes[len(shapes)-1].Wavenumber

	for m := 1; ; m++ {
		zeros := BesselZeros(m, count, limit)
		if len(zeros) == 0 {
			break
		}
		for n, z := range zeros {
			shapes = append(shapes, Shape{Angular: m, Radial: n + 1, Wavenumber: z})
		}
	}

	sort.Slice(shapes, func(i, j int) bool {
		if shapes[i].Wavenumber != shapes[j].Wavenumber {
			return shapes[i].Wavenumber < shapes[j].Wavenumber
		}
		return shapes[i].Angular < shapes[j].Angular
	})
	return shapes[:count]
}

// PlateFrequencies derives count resonant frequencies from a fundamental
// using thin-plate scaling, f ∝ k², so f_i = base·(k_i/k_0)².
func PlateFrequencies(count int, base float64) []float64 {
	shapes := Shapes(count)
	if len(shapes) == 0 {
		return nil
	}
	k0 := shapes[0].Wavenumber
	freqs := make([]float64, len(shapes))
	for i, s := range shapes {
		r := s.Wavenumber / k0
		freqs[i] = base * r * r
	}
	return freqs
}

// NewBank assigns frequencies[i] to the i-th shape in wavenumber order.
// Frequencies must be positive and strictly increasing.
func NewBank(frequencies []float64) (*Bank, error) {
	if len(frequencies) == 0 {
		return nil, errors.New("plate: mode bank needs at least one frequency")
	}
	if len(frequencies) > MaxModes {
		return nil, fmt.Errorf("plate: %d modes exceeds the maximum of %d", len(frequencies), MaxModes)
	}
	for i, f := range frequencies {
		if !(f > 0) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("plate: mode %d frequency must be positive and finite, got %g", i, f)
		}
		if i > 0 && f <= frequencies[i-1] {
			return nil, fmt.Errorf("plate: mode frequencies must be strictly increasing, %g follows %g", f, frequencies[i-1])
		}
	}

	shapes := Shapes(len(frequencies))
	modes := make([]Mode, len(frequencies))
	for i, f := range frequencies {
		modes[i] = Mode{Index: i, Shape: shapes[i], Frequency: f}
	}
	return &Bank{modes: modes}, nil
}

// Len returns the number of modes.
func (b *Bank) Len() int {
	return len(b.modes)
}

// Mode returns mode i.
func (b *Bank) Mode(i int) Mode {
	return b.modes[i]
}

// Modes returns a copy of the bank.
func (b *Bank) Modes() []Mode {
	out := make([]Mode, len(b.modes))
	copy(out, b.modes)
	return out
}

// Frequencies returns the resonant frequencies in bank order.
func (b *Bank) Frequencies() []float64 {
	out := make([]float64, len(b.modes))
	for i, m := range b.modes {
		out[i] = m.Frequency
	}
	return out
}

// Highest returns the largest resonant frequency.
func (b *Bank) Highest() float64 {
	return b.modes[len(b.modes)-1].Frequency
}
