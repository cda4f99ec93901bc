// Package rng provides the deterministic pseudo-random source for the
// simulation. Every stochastic decision in the engine draws from one
// explicitly owned PCG32 instance; there is no global state, so two
// colonies built from the same seed replay bit-identically.
package rng

import (
	"fmt"
	"math/bits"
)

const (
	pcgMultiplier = 6364136223846793005
	seedSalt      = 0xDA442D24
)

// splitmix64 expands a 64-bit seed into well-distributed state words.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// PCG32 is a small, fast, deterministic generator. The zero value is not
// usable; construct with New.
type PCG32 struct {
	state uint64
	inc   uint64
	seed  uint64
}

// New returns a generator seeded with seed.
func New(seed uint64) *PCG32 {
	r := &PCG32{}
	r.Reseed(seed)
	return r
}

// Reseed resets the generator to the start of the stream for seed.
func (r *PCG32) Reseed(seed uint64) {
	r.seed = seed
	r.state = splitmix64(seed)
	// Increment must be odd.
	r.inc = splitmix64(seed^seedSalt)<<1 | 1
	// Step once away from the zero-state corner case.
	r.Uint32()
}

// Seed returns the seed the stream was started from.
func (r *PCG32) Seed() uint64 { return r.seed }

// Uint32 returns the next 32-bit output. This is the authoritative draw;
// everything else is derived from it.
func (r *PCG32) Uint32() uint32 {
	old := r.state
	r.state = old*pcgMultiplier + r.inc
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint(old >> 59)
	return bits.RotateLeft32(xorshifted, -int(rot))
}

// Uint64 returns the next 64-bit output (two draws, high word first).
func (r *PCG32) Uint64() uint64 {
	return uint64(r.Uint32())<<32 | uint64(r.Uint32())
}

// Float64 returns a uniform draw in [0, 1) with 53 bits of precision.
func (r *PCG32) Float64() float64 {
	return float64(r.Uint64()>>11) / float64(1<<53)
}

// Uint32N returns an unbiased draw in [0, n) using Lemire's method.
func (r *PCG32) Uint32N(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	m := uint64(r.Uint32()) * uint64(n)
	lo := uint32(m)
	if lo < n {
		t := -n % n
		for lo < t {
			m = uint64(r.Uint32()) * uint64(n)
			lo = uint32(m)
		}
	}
	return uint32(m >> 32)
}

// IntRange returns a uniform draw in the inclusive range [lo, hi].
func (r *PCG32) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(r.Uint32N(uint32(hi-lo+1)))
}

// FloatRange returns a uniform draw in [lo, hi).
func (r *PCG32) FloatRange(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Clone returns an independent generator at the same stream position.
func (r *PCG32) Clone() *PCG32 {
	c := *r
	return &c
}

// MarshalState encodes the full internal state as a single text line.
func (r *PCG32) MarshalState() string {
	return fmt.Sprintf("%d %d %d", r.state, r.inc, r.seed)
}

// UnmarshalState restores a state produced by MarshalState. The stream
// position round-trips exactly: the next draw after restore equals the
// next draw the marshalled generator would have produced.
func (r *PCG32) UnmarshalState(s string) error {
	var state, inc, seed uint64
	if _, err := fmt.Sscanf(s, "%d %d %d", &state, &inc, &seed); err != nil {
		return fmt.Errorf("rng state %q: %w", s, err)
	}
	if inc%2 == 0 {
		return fmt.Errorf("rng state %q: increment must be odd", s)
	}
	r.state, r.inc, r.seed = state, inc, seed
	return nil
}
