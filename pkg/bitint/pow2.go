// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to validate analysis
window sizes and to suggest the nearest valid one.

	if !bitint.IsPowerOfTwo(windowSize) {
		hint := bitint.NextPowerOfTwo(windowSize)
	}

NextPowerOfTwo subtracts one before taking the bit length so exact powers of
two are preserved: for 8, bits.Len(7) is 3 and 1<<3 is 8. Without the
subtraction bits.Len(8) is 4 and the input would be doubled.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. Powers of two have exactly one
// bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
