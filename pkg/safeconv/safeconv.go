// Package safeconv provides integer conversions that panic instead of
// silently wrapping. Use them where the value has already been validated.
package safeconv

import "math"

// MustIntToUint8 converts v to uint8, panicking outside [0, 255].
func MustIntToUint8(v int) uint8 {
	if v < 0 || v > math.MaxUint8 {
		panic("safeconv: int to uint8 out of bounds")
	}

	return uint8(v)
}

// MustIntToUint64 converts v to uint64, panicking if v is negative.
func MustIntToUint64(v int) uint64 {
	if v < 0 {
		panic("safeconv: negative int to uint64 conversion")
	}

	return uint64(v)
}
