// Package site derives landing-site solar quality from simplex noise.
// The factor is a pure function of the colony seed, so it never affects
// reproducibility: same seed, same site.
package site

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	// The survey samples a small neighborhood around the landing
	// coordinates rather than a single point, so one unlucky noise
	// cell cannot dominate the factor.
	sampleRadius = 2
	sampleStep   = 0.35

	minFactor = 0.9
	maxFactor = 1.1
)

// Factor returns the site solar quality multiplier in [0.9, 1.1] for a
// colony seed.
func Factor(seed uint64) float64 {
	noise := opensimplex.NewNormalized(int64(seed))

	sum := 0.0
	n := 0
	for dx := -sampleRadius; dx <= sampleRadius; dx++ {
		for dy := -sampleRadius; dy <= sampleRadius; dy++ {
			sum += noise.Eval2(float64(dx)*sampleStep, float64(dy)*sampleStep)
			n++
		}
	}
	avg := sum / float64(n) // [0,1]
	return minFactor + (maxFactor-minFactor)*avg
}
