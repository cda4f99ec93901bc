package daylight

import (
	"math"
	"testing"
)

func TestNightAndPlateau(t *testing.T) {
	m := Default()
	for _, h := range []int{0, 1, 2, 3, 4, 20, 21, 22, 23} {
		if v := m.Irradiance(h); v != 0 {
			t.Errorf("hour %d: want 0, got %v", h, v)
		}
	}
	for _, h := range []int{8, 9, 10, 11, 12, 13, 14, 15, 16} {
		if v := m.Irradiance(h); v != 1 {
			t.Errorf("hour %d: want 1, got %v", h, v)
		}
	}
}

func TestRampsAreMonotonicAndBounded(t *testing.T) {
	m := Default()
	prev := m.Irradiance(4)
	for h := 5; h <= 8; h++ {
		v := m.Irradiance(h)
		if v < prev {
			t.Errorf("sunrise not monotonic at hour %d: %v < %v", h, v, prev)
		}
		if v < 0 || v > 1 {
			t.Errorf("hour %d out of [0,1]: %v", h, v)
		}
		prev = v
	}
	prev = m.Irradiance(16)
	for h := 17; h <= 20; h++ {
		v := m.Irradiance(h)
		if v > prev {
			t.Errorf("sunset not monotonic at hour %d: %v > %v", h, v, prev)
		}
		prev = v
	}
}

func TestRampMidpoint(t *testing.T) {
	// The cosine ramp passes through 0.5 exactly at sunrise/sunset.
	m := Default()
	if v := m.Irradiance(6); math.Abs(v-0.5) > 1e-12 {
		t.Errorf("sunrise midpoint: want 0.5, got %v", v)
	}
	if v := m.Irradiance(18); math.Abs(v-0.5) > 1e-12 {
		t.Errorf("sunset midpoint: want 0.5, got %v", v)
	}
}

func TestHourWrapping(t *testing.T) {
	m := Default()
	if got := m.HourOfCycle(49); got != 1 {
		t.Errorf("HourOfCycle(49) = %d, want 1", got)
	}
	if got := m.Sol(49); got != 2 {
		t.Errorf("Sol(49) = %d, want 2", got)
	}
	if m.Irradiance(m.HourOfCycle(24+12)) != 1 {
		t.Error("noon on sol 1 should be full daylight")
	}
}
