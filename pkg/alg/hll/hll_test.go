package hll_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/hllsim/pkg/alg/hll"
)

const (
	defaultPrecision = uint8(10)
	belowMinPrec     = uint8(3)
	aboveMaxPrec     = uint8(17)

	testSeed      = uint64(42)
	otherTestSeed = uint64(43)

	// Register counts for known precisions.
	registersP4  = 1 << 4
	registersP10 = 1 << 10
	registersP16 = 1 << 16

	// Accuracy test parameters.
	accuracyMaxError  = 0.05
	smallCardinality  = 50
	smallCardMaxError = 5.0

	monotonicTokens = 5000
	cardN1K         = 1_000
	cardN10K        = 10_000
	cardN100K       = 100_000
)

// uint64ToBytes converts a uint64 to an 8-byte big-endian slice.
func uint64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)

	return buf
}

func newEstimator(t *testing.T, variant hll.Variant, precision uint8, seed uint64) *hll.Estimator {
	t.Helper()

	est, err := hll.New(variant, precision, seed)
	require.NoError(t, err)

	return est
}

func TestNew_Parameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		precision  uint8
		wantRegCnt int
	}{
		{name: "min_precision_4", precision: hll.MinPrecision, wantRegCnt: registersP4},
		{name: "precision_10", precision: defaultPrecision, wantRegCnt: registersP10},
		{name: "max_precision_16", precision: hll.MaxPrecision, wantRegCnt: registersP16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			est := newEstimator(t, hll.Basic, tt.precision, testSeed)
			assert.Equal(t, tt.precision, est.Precision())
			assert.Equal(t, tt.wantRegCnt, est.RegisterCount())
			assert.Equal(t, hll.Basic, est.Variant())
		})
	}
}

func TestNew_EdgeCases(t *testing.T) {
	t.Parallel()

	for _, precision := range []uint8{0, belowMinPrec, aboveMaxPrec} {
		t.Run(fmt.Sprintf("precision_%d", precision), func(t *testing.T) {
			t.Parallel()

			_, err := hll.New(hll.Corrected, precision, testSeed)
			assert.ErrorIs(t, err, hll.ErrPrecisionOutOfRange)
		})
	}
}

func TestEstimate_EmptySketch(t *testing.T) {
	t.Parallel()

	for _, variant := range []hll.Variant{hll.Basic, hll.Corrected} {
		t.Run(variant.String(), func(t *testing.T) {
			t.Parallel()

			est := newEstimator(t, variant, defaultPrecision, testSeed)

			assert.Zero(t, est.Estimate())
			assert.Equal(t, uint64(0), est.Count())
		})
	}
}

func TestAdd_Idempotent(t *testing.T) {
	t.Parallel()

	est := newEstimator(t, hll.Basic, defaultPrecision, testSeed)

	for i := range cardN1K {
		token := []byte(fmt.Sprintf("token-%d", i))

		est.Add(token)
		before := est.Registers()

		est.Add(token)
		assert.Equal(t, before, est.Registers(), "re-adding %q changed registers", token)
	}
}

func TestAdd_MonotonicRegisters(t *testing.T) {
	t.Parallel()

	est := newEstimator(t, hll.Corrected, hll.MinPrecision, testSeed)
	prev := est.Registers()

	for i := range monotonicTokens {
		est.Add(uint64ToBytes(uint64(i)))
		cur := est.Registers()

		for j := range cur {
			require.GreaterOrEqual(t, cur[j], prev[j], "register %d decreased after token %d", j, i)
			require.LessOrEqual(t, cur[j], hll.MaxRho(hll.MinPrecision))
		}

		prev = cur
	}
}

func TestDeterminism(t *testing.T) {
	t.Parallel()

	for _, variant := range []hll.Variant{hll.Basic, hll.Corrected} {
		t.Run(variant.String(), func(t *testing.T) {
			t.Parallel()

			est1 := newEstimator(t, variant, defaultPrecision, testSeed)
			est2 := newEstimator(t, variant, defaultPrecision, testSeed)

			for i := range cardN10K {
				data := uint64ToBytes(uint64(i))
				est1.Add(data)
				est2.Add(data)
			}

			assert.Equal(t, est1.Registers(), est2.Registers())
			assert.Equal(t, math.Float64bits(est1.Estimate()), math.Float64bits(est2.Estimate()))
		})
	}
}

func TestSeed_ChangesHashFamily(t *testing.T) {
	t.Parallel()

	est1 := newEstimator(t, hll.Basic, defaultPrecision, testSeed)
	est2 := newEstimator(t, hll.Basic, defaultPrecision, otherTestSeed)

	for i := range cardN1K {
		data := uint64ToBytes(uint64(i))
		est1.Add(data)
		est2.Add(data)
	}

	assert.NotEqual(t, est1.Registers(), est2.Registers())
}

func TestHasher_Sum32KnownValues(t *testing.T) {
	t.Parallel()

	// FNV-1a of the token, XOR the low 32 seed bits, then
	// h ^= h>>16; h *= 0x45d9f3b; h ^= h>>16.
	tests := []struct {
		name  string
		seed  uint64
		token string
		want  uint32
	}{
		{name: "a_seed0", seed: 0, token: "a", want: 0x86faa09a},
		{name: "hello_seed42", seed: 42, token: "hello", want: 0xd231abdb},
		{name: "token_estimator_mask", seed: 0xABCDEF, token: "token", want: 0x7238e74d},
		{name: "high_seed_bits_ignored", seed: 0x1_0000_0007, token: "foobar", want: 0xcb5c8c5d},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, hll.NewHasher(tt.seed).Sum32([]byte(tt.token)))
		})
	}
}

func TestVariants_ShareRegisterRule(t *testing.T) {
	t.Parallel()

	basic := newEstimator(t, hll.Basic, defaultPrecision, testSeed)
	corrected := newEstimator(t, hll.Corrected, defaultPrecision, testSeed)

	for i := range cardN10K {
		data := uint64ToBytes(uint64(i))
		basic.Add(data)
		corrected.Add(data)
	}

	assert.Equal(t, basic.Registers(), corrected.Registers())
}

func TestEstimate_SmallCardinality(t *testing.T) {
	t.Parallel()

	for _, variant := range []hll.Variant{hll.Basic, hll.Corrected} {
		t.Run(variant.String(), func(t *testing.T) {
			t.Parallel()

			est := newEstimator(t, variant, defaultPrecision, testSeed)

			for i := range smallCardinality {
				est.Add([]byte(fmt.Sprintf("small-%d", i)))
			}

			got := est.Estimate()
			t.Logf("k=%d estimate=%.3f", smallCardinality, got)
			assert.InDelta(t, float64(smallCardinality), got, smallCardMaxError)
		})
	}
}

func TestEstimate_SmallCardinality_VariantsAgree(t *testing.T) {
	t.Parallel()

	basic := newEstimator(t, hll.Basic, defaultPrecision, testSeed)
	corrected := newEstimator(t, hll.Corrected, defaultPrecision, testSeed)

	for i := range smallCardinality {
		data := []byte(fmt.Sprintf("small-%d", i))
		basic.Add(data)
		corrected.Add(data)
	}

	// Both take the linear-counting branch.
	assert.InDelta(t, basic.Estimate(), corrected.Estimate(), 1e-9)
}

func TestAccuracy_Ranges(t *testing.T) {
	t.Parallel()

	precision := uint8(14)

	for _, n := range []int{cardN1K, cardN10K, cardN100K} {
		t.Run(fmt.Sprintf("n_%d", n), func(t *testing.T) {
			t.Parallel()

			est := newEstimator(t, hll.Basic, precision, testSeed)

			for i := range n {
				est.Add(uint64ToBytes(uint64(i)))
			}

			expected := float64(n)
			relativeError := math.Abs(est.Estimate()-expected) / expected

			t.Logf("n=%d, estimate=%.1f, relError=%.4f%%", n, est.Estimate(), relativeError*100)
			assert.LessOrEqual(t, relativeError, accuracyMaxError)
		})
	}
}

func TestAlpha(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		regCount int
		want     float64
	}{
		{name: "m_16", regCount: 16, want: 0.673},
		{name: "m_32", regCount: 32, want: 0.697},
		{name: "m_64", regCount: 64, want: 0.709},
		{name: "m_128", regCount: 128, want: 0.7213 / (1 + 1.079/128.0)},
		{name: "m_1024", regCount: 1024, want: 0.7213 / (1 + 1.079/1024.0)},
		{name: "m_65536", regCount: 65536, want: 0.7213 / (1 + 1.079/65536.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.want, hll.Alpha(tt.regCount), 1e-12)
		})
	}
}

func TestAlpha_FixedConstantsExact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.673, hll.Alpha(16)) //nolint:testifylint // table constants are exact.
	assert.Equal(t, 0.697, hll.Alpha(32)) //nolint:testifylint // table constants are exact.
	assert.Equal(t, 0.709, hll.Alpha(64)) //nolint:testifylint // table constants are exact.
}

func TestLinearCounting(t *testing.T) {
	t.Parallel()

	assert.Zero(t, hll.LinearCounting(registersP10, registersP10))
	assert.InDelta(t, registersP10*math.Log(2), hll.LinearCounting(registersP10, registersP10/2), 1e-9)
}

func TestBiasCorrection(t *testing.T) {
	t.Parallel()

	const regCount = 1024.0

	tests := []struct {
		name string
		est  float64
		want float64
	}{
		{name: "ratio_zero", est: 0, want: 0},
		{name: "ratio_one", est: regCount, want: regCount * (1 - 0.005*4)},
		{name: "ratio_just_below_limit", est: 4.5 * regCount, want: 4.5 * regCount * (1 - 0.005*0.5)},
		{name: "ratio_at_limit", est: 5 * regCount, want: 5 * regCount},
		{name: "ratio_above_limit", est: 50 * regCount, want: 50 * regCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.want, hll.BiasCorrection(tt.est, regCount), 1e-9)
		})
	}
}

func TestLargeRangeCorrection(t *testing.T) {
	t.Parallel()

	threshold := hll.HashSpace / 30

	t.Run("below_threshold_unchanged", func(t *testing.T) {
		t.Parallel()

		assert.InDelta(t, threshold/2, hll.LargeRangeCorrection(threshold/2), 0)
	})

	t.Run("at_threshold_unchanged", func(t *testing.T) {
		t.Parallel()

		assert.InDelta(t, threshold, hll.LargeRangeCorrection(threshold), 0)
	})

	for _, frac := range []float64{0.05, 0.25, 0.5, 0.9, 0.999999} {
		t.Run(fmt.Sprintf("above_threshold_%g", frac), func(t *testing.T) {
			t.Parallel()

			in := frac * hll.HashSpace
			out := hll.LargeRangeCorrection(in)

			assert.False(t, math.IsNaN(out) || math.IsInf(out, 0), "got %v", out)
			assert.Greater(t, out, in)
			assert.InDelta(t, -hll.HashSpace*math.Log(1-frac), out, 1e-3*out)
		})
	}

	t.Run("saturates_at_and_above_hash_space", func(t *testing.T) {
		t.Parallel()

		assert.InDelta(t, 53*math.Ln2*hll.HashSpace, hll.LargeRangeCeiling, 1e-6*hll.LargeRangeCeiling)

		for _, in := range []float64{hll.HashSpace, 1.5 * hll.HashSpace, 6.2e9, math.MaxFloat64} {
			assert.Equal(t, hll.LargeRangeCeiling, hll.LargeRangeCorrection(in), "est %g", in)
		}
	})

	t.Run("never_decreases", func(t *testing.T) {
		t.Parallel()

		inputs := []float64{
			threshold / 2, threshold, math.Nextafter(threshold, math.Inf(1)),
			0.5 * hll.HashSpace, 0.999999 * hll.HashSpace,
			math.Nextafter(hll.HashSpace, 0), hll.HashSpace, 2 * hll.HashSpace,
		}

		prev := 0.0
		for _, in := range inputs {
			out := hll.LargeRangeCorrection(in)
			assert.False(t, math.IsNaN(out) || math.IsInf(out, 0), "est %g", in)
			assert.GreaterOrEqual(t, out, prev, "est %g", in)
			prev = out
		}
	})
}

func TestCorrected_BiasBranchFromRegisters(t *testing.T) {
	t.Parallel()

	// All registers at 2: raw = 0.673*256/4 ~ 43.1, above 2.5m = 40 with no
	// zeros, so the bias factor applies.
	regs := make([]uint8, registersP4)
	for i := range regs {
		regs[i] = 2
	}

	basic := newEstimator(t, hll.Basic, hll.MinPrecision, testSeed)
	corrected := newEstimator(t, hll.Corrected, hll.MinPrecision, testSeed)
	basic.SetRegisters(regs)
	corrected.SetRegisters(regs)

	raw := 0.673 * registersP4 * registersP4 / 4.0
	assert.InDelta(t, raw, basic.Estimate(), 1e-9)
	assert.InDelta(t, hll.BiasCorrection(raw, registersP4), corrected.Estimate(), 1e-9)
	assert.Less(t, corrected.Estimate(), basic.Estimate())
}

func TestCorrected_LargeRangeFromRegisters(t *testing.T) {
	t.Parallel()

	// All registers at 26: raw = 0.673*16*2^26 ~ 7.2e8, above 2^32/30 and
	// below 2^32.
	regs := make([]uint8, registersP4)
	for i := range regs {
		regs[i] = 26
	}

	basic := newEstimator(t, hll.Basic, hll.MinPrecision, testSeed)
	corrected := newEstimator(t, hll.Corrected, hll.MinPrecision, testSeed)
	basic.SetRegisters(regs)
	corrected.SetRegisters(regs)

	raw := basic.Estimate()
	got := corrected.Estimate()

	require.Greater(t, raw, hll.HashSpace/30)
	require.Less(t, raw, hll.HashSpace)
	assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
	assert.Greater(t, got, raw)
	assert.InDelta(t, hll.LargeRangeCorrection(raw), got, 1e-6*got)
}

func TestRho(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		x         uint32
		precision uint8
		want      uint8
	}{
		{name: "remainder_all_zero_capped", x: 0, precision: 10, want: 23},
		{name: "bucket_bits_only_capped", x: 0xFFC00000, precision: 10, want: 23},
		{name: "first_remainder_bit_set", x: 1 << 21, precision: 10, want: 1},
		{name: "last_bit_set", x: 1, precision: 10, want: 22},
		{name: "all_ones", x: 0xFFFFFFFF, precision: 10, want: 1},
		{name: "min_precision_cap", x: 0, precision: 4, want: 29},
		{name: "max_precision_cap", x: 0, precision: 16, want: 17},
		{name: "max_precision_last_bit", x: 1, precision: 16, want: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, hll.Rho(tt.x, tt.precision))
		})
	}
}

func TestBucket(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), hll.Bucket(0, 10))
	assert.Equal(t, uint32(1023), hll.Bucket(0xFFFFFFFF, 10))
	assert.Equal(t, uint32(1), hll.Bucket(1<<22, 10))
	assert.Equal(t, uint32(15), hll.Bucket(0xF0000000, 4))
}

func TestVariant_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "basic", hll.Basic.String())
	assert.Equal(t, "corrected", hll.Corrected.String())
	assert.Equal(t, "variant(7)", hll.Variant(7).String())
}

func TestNilAndEmptyTokens(t *testing.T) {
	t.Parallel()

	est := newEstimator(t, hll.Basic, defaultPrecision, testSeed)

	est.Add(nil)
	est.Add([]byte{})

	// nil and empty hash identically.
	assert.Equal(t, uint64(1), est.Count())
}

func TestCorrected_SaturatedBankNeverDropsBelowTransform(t *testing.T) {
	t.Parallel()

	for _, precision := range []uint8{hll.MinPrecision, defaultPrecision, hll.MaxPrecision} {
		t.Run(fmt.Sprintf("precision_%d", precision), func(t *testing.T) {
			t.Parallel()

			regs := make([]uint8, 1<<precision)
			for i := range regs {
				regs[i] = hll.MaxRho(precision)
			}

			basic := newEstimator(t, hll.Basic, precision, testSeed)
			corrected := newEstimator(t, hll.Corrected, precision, testSeed)
			basic.SetRegisters(regs)
			corrected.SetRegisters(regs)

			require.GreaterOrEqual(t, basic.Estimate(), hll.HashSpace)
			assert.Equal(t, hll.LargeRangeCeiling, corrected.Estimate())
			assert.Greater(t, corrected.Estimate(), hll.LargeRangeCorrection(0.999999*hll.HashSpace))
		})
	}
}
