package hll

import (
	"math"
	"math/bits"
)

// hashBits is the width of the token hash.
const hashBits = 32

// Registers is the fixed-size register bank of a sketch. Register values
// only ever grow; a fresh bank has every register at 0.
type Registers struct {
	values    []uint8
	precision uint8
}

// NewRegisters allocates 2^precision zeroed registers.
// Precision must be in [4, 16].
func NewRegisters(precision uint8) (*Registers, error) {
	if precision < MinPrecision || precision > MaxPrecision {
		return nil, ErrPrecisionOutOfRange
	}

	return &Registers{
		values:    make([]uint8, uint(1)<<precision),
		precision: precision,
	}, nil
}

// Len returns the register count m.
func (r *Registers) Len() int {
	return len(r.values)
}

// Precision returns B.
func (r *Registers) Precision() uint8 {
	return r.precision
}

// Snapshot returns a copy of all register values in bucket order.
func (r *Registers) Snapshot() []uint8 {
	out := make([]uint8, len(r.values))
	copy(out, r.values)

	return out
}

// Update folds hash x into the bank. The top B bits select the bucket and
// the remaining bits give rho. It reports whether the register grew.
func (r *Registers) Update(x uint32) bool {
	bucket := Bucket(x, r.precision)
	rho := Rho(x, r.precision)

	if rho <= r.values[bucket] {
		return false
	}

	r.values[bucket] = rho

	return true
}

// Harmonic returns Σ 2^-M[i] summed in bucket order, together with the
// number of registers still at zero.
func (r *Registers) Harmonic() (sum float64, zeros int) {
	for _, v := range r.values {
		sum += math.Ldexp(1, -int(v))

		if v == 0 {
			zeros++
		}
	}

	return sum, zeros
}

// Bucket returns the register index for hash x: its top precision bits.
func Bucket(x uint32, precision uint8) uint32 {
	return x >> (hashBits - uint(precision))
}

// Rho returns 1 + the number of leading zeros in the bits of x below the
// bucket index, capped at MaxRho(precision) when those bits are all zero.
func Rho(x uint32, precision uint8) uint8 {
	remainder := x << precision
	capped := MaxRho(precision)

	if remainder == 0 {
		return capped
	}

	return min(uint8(bits.LeadingZeros32(remainder))+1, capped)
}

// MaxRho returns 32-precision+1.
func MaxRho(precision uint8) uint8 {
	return hashBits - precision + 1
}
