package site

import "testing"

func TestFactorDeterministic(t *testing.T) {
	if Factor(42) != Factor(42) {
		t.Fatal("same seed produced different site factors")
	}
}

func TestFactorBounds(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		f := Factor(seed)
		if f < minFactor || f > maxFactor {
			t.Fatalf("seed %d: factor %v outside [%v,%v]", seed, f, minFactor, maxFactor)
		}
	}
}
