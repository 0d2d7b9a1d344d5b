// SPDX-License-Identifier: MIT
package plate

import "math"

// Basis evaluates the mode's spatial function at polar coordinate (r, θ).
// Outside the plate (r > 1) it is zero.
func Basis(s Shape, r, theta float64) float64 {
	if r > 1 || r < 0 {
		return 0
	}
	v := math.Jn(s.Angular, s.Wavenumber*r)
	if s.Angular == 0 {
		return v
	}
	return v * math.Cos(float64(s.Angular)*theta)
}

// Displacement is the modal superposition Σ coeffs[i]·φ_i(r, θ). Only the
// first min(len(coeffs), bank.Len()) modes contribute.
func Displacement(bank *Bank, coeffs []float64, r, theta float64) float64 {
	if r > 1 {
		return 0
	}
	n := min(len(coeffs), bank.Len())
	var z float64
	for i := range n {
		c := coeffs[i]
		if c == 0 {
			continue
		}
		z += c * Basis(bank.modes[i].Shape, r, theta)
	}
	return z
}

// DisplacementXY is Displacement at Cartesian (x, y) with the plate being
// the unit disc.
func DisplacementXY(bank *Bank, coeffs []float64, x, y float64) float64 {
	return Displacement(bank, coeffs, math.Hypot(x, y), math.Atan2(y, x))
}

// Nodal maps a displacement to sand density: 1 on the nodal line, 0 once
// |z| reaches epsilon, with a cubic Hermite edge between.
func Nodal(z, epsilon float64) float64 {
	if epsilon <= 0 {
		if z == 0 {
			return 1
		}
		return 0
	}
	return 1 - smoothstep(0, epsilon, math.Abs(z))
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := (x - edge0) / (edge1 - edge0)
	t = math.Max(0, math.Min(1, t))
	return t * t * (3 - 2*t)
}
