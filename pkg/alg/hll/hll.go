// Package hll provides HyperLogLog cardinality estimators over a 32-bit
// seeded token hash.
//
// Two variants share the register update rule and differ only in how the
// final estimate is derived from the registers:
//
//   - Basic applies the raw HyperLogLog formula with the linear-counting
//     small-range correction.
//   - Corrected additionally scales medium-range estimates by a heuristic
//     bias factor and applies the large-range correction for hash collisions
//     as the cardinality approaches 2^32.
//
// The Corrected constants are simplified approximations, not a calibrated
// HLL++ bias table.
//
// An Estimator is not safe for concurrent use.
package hll

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinPrecision is the minimum allowed precision (2^4 = 16 registers).
	MinPrecision = 4

	// MaxPrecision is the maximum allowed precision (2^16 = 65536 registers).
	MaxPrecision = 16

	// registers16 is m for precision 4, used for alpha constant lookup.
	registers16 = 16

	// registers32 is m for precision 5.
	registers32 = 32

	// registers64 is m for precision 6.
	registers64 = 64

	// alpha16 is the alpha constant for 16 registers.
	alpha16 = 0.673

	// alpha32 is the alpha constant for 32 registers.
	alpha32 = 0.697

	// alpha64 is the alpha constant for 64 registers.
	alpha64 = 0.709

	// alphaGenericNumerator is the numerator in the generic alpha formula.
	alphaGenericNumerator = 0.7213

	// alphaGenericDenominatorCoeff is the coefficient in the generic alpha denominator.
	alphaGenericDenominatorCoeff = 1.079

	// smallRangeFactor bounds the raw estimate (in units of m) below which
	// linear counting replaces it.
	smallRangeFactor = 2.5

	// biasRatioLimit is E/m below which the bias factor applies.
	biasRatioLimit = 5.0

	// biasSlope is the per-unit-of-ratio bias shrink.
	biasSlope = 0.005

	// largeRangeDivisor sets the large-range threshold at 2^32/30.
	largeRangeDivisor = 30.0
)

var (
	// hashSpace is 2^32, the size of the hash output space.
	hashSpace = math.Ldexp(1, hashBits)

	// largeRangeCeiling is the large-range transform of the largest float64
	// below 2^32, about 1.58e11. Estimates at or above 2^32 saturate here.
	largeRangeCeiling = largeRange(math.Nextafter(hashSpace, 0))
)

// ErrPrecisionOutOfRange is returned when precision is not in [4, 16].
var ErrPrecisionOutOfRange = errors.New("hll: precision must be in [4, 16]")

// Variant selects the estimate formula.
type Variant uint8

const (
	// Basic is the baseline estimator.
	Basic Variant = iota
	// Corrected adds bias and large-range corrections.
	Corrected
)

// String returns the variant name used in logs and metric attributes.
func (v Variant) String() string {
	switch v {
	case Basic:
		return "basic"
	case Corrected:
		return "corrected"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// Estimator is a HyperLogLog sketch. It owns its register bank and hasher;
// nothing is shared between estimators.
type Estimator struct {
	regs    *Registers
	hasher  Hasher
	variant Variant
}

// New creates an estimator of the given variant with 2^precision registers
// and a hasher seeded by seed.
func New(variant Variant, precision uint8, seed uint64) (*Estimator, error) {
	regs, err := NewRegisters(precision)
	if err != nil {
		return nil, err
	}

	return &Estimator{
		regs:    regs,
		hasher:  NewHasher(seed),
		variant: variant,
	}, nil
}

// Variant returns the estimator's variant tag.
func (e *Estimator) Variant() Variant {
	return e.variant
}

// Precision returns B.
func (e *Estimator) Precision() uint8 {
	return e.regs.Precision()
}

// RegisterCount returns m = 2^B, which is also the register memory in bytes.
func (e *Estimator) RegisterCount() int {
	return e.regs.Len()
}

// Registers returns a copy of the register values.
func (e *Estimator) Registers() []uint8 {
	return e.regs.Snapshot()
}

// Add hashes token and raises its register if the observed rho is larger.
// Adding a token that is already reflected in the registers is a no-op.
func (e *Estimator) Add(token []byte) {
	e.regs.Update(e.hasher.Sum32(token))
}

// Estimate returns the current cardinality estimate. It does not modify the
// registers. An empty estimator returns 0.
func (e *Estimator) Estimate() float64 {
	regCount := float64(e.regs.Len())
	sum, zeros := e.regs.Harmonic()

	raw := Alpha(e.regs.Len()) * regCount * regCount / sum

	if raw <= smallRangeFactor*regCount && zeros > 0 {
		est := LinearCounting(e.regs.Len(), zeros)
		if e.variant == Corrected {
			return LargeRangeCorrection(est)
		}

		return est
	}

	if e.variant == Basic {
		return raw
	}

	return LargeRangeCorrection(BiasCorrection(raw, regCount))
}

// Count returns Estimate rounded to the nearest integer.
func (e *Estimator) Count() uint64 {
	return uint64(math.Round(e.Estimate()))
}

// Alpha returns the alpha_m constant for regCount registers.
// For m >= 128, alpha_m = 0.7213 / (1 + 1.079/m).
func Alpha(regCount int) float64 {
	switch regCount {
	case registers16:
		return alpha16
	case registers32:
		return alpha32
	case registers64:
		return alpha64
	default:
		return alphaGenericNumerator / (1 + alphaGenericDenominatorCoeff/float64(regCount))
	}
}

// LinearCounting returns m*ln(m/zeros). zeros must be positive; zeros == m
// yields 0.
func LinearCounting(regCount, zeros int) float64 {
	m := float64(regCount)

	return m * math.Log(m/float64(zeros))
}

// BiasCorrection shrinks estimates below 5m by 0.5% per unit of E/m short
// of 5 and leaves larger estimates unchanged.
func BiasCorrection(est, regCount float64) float64 {
	ratio := est / regCount
	if ratio < biasRatioLimit {
		return est * (1 - biasSlope*(biasRatioLimit-ratio))
	}

	return est
}

// LargeRangeCorrection compensates for hash collisions when est exceeds
// 2^32/30 by returning -2^32*ln(1-est/2^32). The log diverges at 2^32, so
// estimates at or above it return the transform's largest finite value and
// the result never decreases as est grows.
func LargeRangeCorrection(est float64) float64 {
	switch {
	case est <= hashSpace/largeRangeDivisor:
		return est
	case est >= hashSpace:
		return largeRangeCeiling
	default:
		return largeRange(est)
	}
}

func largeRange(est float64) float64 {
	return -hashSpace * math.Log1p(-est/hashSpace)
}
