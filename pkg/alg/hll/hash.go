package hll

import "github.com/Sumatoshi-tech/hllsim/pkg/alg/internal/hashutil"

// Hasher is a seeded token hash. Two hashers with equal seeds produce
// identical outputs; the zero value hashes with seed 0.
type Hasher struct {
	seed uint64
}

// NewHasher creates a Hasher bound to seed.
func NewHasher(seed uint64) Hasher {
	return Hasher{seed: seed}
}

// Sum32 maps token to a 32-bit value. Small changes to the token or to the
// low 32 bits of the seed flip roughly half of the output bits.
func (h Hasher) Sum32(token []byte) uint32 {
	return hashutil.SeededHash32(h.seed, token)
}
