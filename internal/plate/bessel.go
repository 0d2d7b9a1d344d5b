// SPDX-License-Identifier: MIT
package plate

import "math"

const (
	// besselScanStep is well under the ~π spacing of consecutive zeros, so a
	// sign change between two samples brackets exactly one root.
	besselScanStep = 0.05
	besselBisect   = 64
)

// BesselZeros returns the positive zeros of J_m in ascending order, stopping
// after max zeros or once the scan passes limit (pass math.Inf(1) for no
// limit).
func BesselZeros(m, max int, limit float64) []float64 {
	if m < 0 || max <= 0 {
		return nil
	}

	zeros := make([]float64, 0, max)

	// J_m has a zero of order m at the origin and its first positive zero
	// lies above m, so the scan starts just past the origin.
	x0 := besselScanStep
	if m > 0 {
		x0 = float64(m)
	}
	f0 := math.Jn(m, x0)

	for x0 < limit && len(zeros) < max {
		x1 := x0 + besselScanStep
		f1 := math.Jn(m, x1)
		if f1 == 0 {
			zeros = append(zeros, x1)
			x0, f0 = x1+besselScanStep, math.Jn(m, x1+besselScanStep)
			continue
		}
		if math.Signbit(f0) != math.Signbit(f1) {
			root := bisect(m, x0, x1, f0)
			if root > limit {
				break
			}
			zeros = append(zeros, root)
		}
		x0, f0 = x1, f1
	}
	return zeros
}

// BesselZero returns j_{m,n}, the n-th positive zero of J_m (n >= 1).
func BesselZero(m, n int) float64 {
	zeros := BesselZeros(m, n, math.Inf(1))
	if len(zeros) < n {
		return math.NaN()
	}
	return zeros[n-1]
}

func bisect(m int, lo, hi, flo float64) float64 {
	for range besselBisect {
		mid := 0.5 * (lo + hi)
		fmid := math.Jn(m, mid)
		if fmid == 0 {
			return mid
		}
		if math.Signbit(fmid) == math.Signbit(flo) {
			lo, flo = mid, fmid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}
