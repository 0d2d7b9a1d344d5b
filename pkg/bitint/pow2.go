// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to validate and
suggest analysis block sizes.

Design Principles:
- Zero Allocations: all operations use stack memory only
- Real-Time Safe: no locks, syscalls, or blocking operations

Usage:

	// Reject a block size the FFT cannot use
	if !bitint.IsPowerOfTwo(blockSize) {
		return fmt.Errorf("try %d", bitint.NextPowerOfTwo(blockSize))
	}

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map onto themselves:

	size=8: bits.Len(7) = 3, 1<<3 = 8
	size=9: bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Non-positive sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of two <= size, or 0 when size
// is not positive.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// NearestPowerOfTwo returns whichever of PrevPowerOfTwo and NextPowerOfTwo
// is closer to size, preferring the larger one on a tie. It is used to
// suggest a valid block size in configuration errors.
func NearestPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	lo, hi := PrevPowerOfTwo(size), NextPowerOfTwo(size)
	if size-lo < hi-size {
		return lo
	}
	return hi
}

// IsPowerOfTwo reports whether n is a positive power of two.
// (n & (n-1)) clears the lowest set bit, which leaves zero only when a
// single bit was set.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the base-2 logarithm of a power of two n, and -1 when n is
// not a power of two.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
