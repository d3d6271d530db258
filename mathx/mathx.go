// Package mathx provides decimal rounding, half to even after scaling by a
// power of ten.
package mathx

import "math"

// RoundN rounds x to the given number of decimal digits.
func RoundN(x float64, digits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow10(digits)
	return math.RoundToEven(x*p) / p
}

// EqualN returns true if a and b agree once both are rounded to digits
func EqualN(a, b float64, digits int) bool {
	return RoundN(a, digits) == RoundN(b, digits)
}
