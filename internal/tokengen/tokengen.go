// Package tokengen generates the synthetic token streams fed through the
// estimators. A Generator is an unbounded, lazy, deterministic sequence:
// the only way to replay a stream is a fresh Generator with the same seed.
package tokengen

import "math/rand/v2"

const (
	// Alphabet is the set of bytes tokens are drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

	// MinLength is the shortest token length.
	MinLength = 1

	// MaxLength is the longest token length.
	MaxLength = 30

	// pcgStream selects the PCG increment derived from the seed.
	pcgStream = 0xda3e39cb94b95bdb
)

// Generator produces random tokens from an exclusively owned PRNG.
// It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^pcgStream)), //nolint:gosec // reproducible simulation input.
	}
}

// Next returns a fresh token of uniform length in [MinLength, MaxLength]
// with bytes drawn uniformly from Alphabet.
func (g *Generator) Next() []byte {
	length := MinLength + g.rng.IntN(MaxLength-MinLength+1)
	token := make([]byte, length)

	for i := range token {
		token[i] = Alphabet[g.rng.IntN(len(Alphabet))]
	}

	return token
}
