// Package random provides the seedable random sources injected into pools and policies.
package random

import "math/rand/v2"

// Source covers both the pool draw and the policy draw.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// New returns a deterministic PCG source. Equal seeds give equal sequences.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Global returns a source backed by the runtime-seeded top-level generator.
func Global() Source {
	return global{}
}

type global struct{}

func (global) IntN(n int) int    { return rand.IntN(n) }
func (global) Float64() float64 { return rand.Float64() }

// NewSeed returns a fresh seed from the runtime generator.
func NewSeed() uint64 {
	return rand.Uint64()
}
