// Package hashutil provides shared hash constants and 32-bit mixing functions
// for the probabilistic counters in pkg/alg.
//
// Token hashing is FNV-1a over the raw bytes followed by a seed XOR and a
// two-round xor-shift-multiply finalizer, all wrapping modulo 2^32.
package hashutil

// FNV-1a and finalizer constants.
const (
	// FNV32Offset is the FNV-1a 32-bit offset basis.
	FNV32Offset = 2166136261

	// FNV32Prime is the FNV-1a 32-bit prime.
	FNV32Prime = 16777619

	// MixShift is the xor-shift applied before and after the multiply.
	MixShift = 16

	// MixMul is the odd multiplier of the 32-bit finalizer.
	MixMul = 0x45d9f3b

	// seedMask keeps the low 32 bits of a 64-bit seed.
	seedMask = 0xFFFFFFFF
)

// FNV32a computes the 32-bit FNV-1a hash of data.
// Empty or nil data yields FNV32Offset.
func FNV32a(data []byte) uint32 {
	h := uint32(FNV32Offset)

	for _, b := range data {
		h ^= uint32(b)
		h *= FNV32Prime
	}

	return h
}

// Mix32 applies the avalanche finalizer. It does not advance any state.
func Mix32(v uint32) uint32 {
	v ^= v >> MixShift
	v *= MixMul
	v ^= v >> MixShift

	return v
}

// SeededHash32 hashes data with FNV-1a, folds the low 32 bits of seed into
// the accumulator and finalizes with Mix32.
func SeededHash32(seed uint64, data []byte) uint32 {
	h := FNV32a(data)
	h ^= uint32(seed & seedMask)

	return Mix32(h)
}
