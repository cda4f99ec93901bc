// Package daylight models solar irradiance over the sol. The curve is a
// raised-cosine ramp through twilight so production has no step changes
// that would destabilize the dispatch optimizer.
package daylight

import "math"

// Model describes the illuminated window of a sol. Hours are positions
// within the cycle; Twilight is the half-width of each ramp.
type Model struct {
	CycleHours int
	Sunrise    float64
	Sunset     float64
	Twilight   float64
}

// Default matches the simplified 24-hour sol: daylight 06:00–18:00 with
// 1.5-hour twilight ramps.
func Default() Model {
	return Model{CycleHours: 24, Sunrise: 6, Sunset: 18, Twilight: 1.5}
}

// ease maps t in [0,1] onto a smooth 0..1 cosine ramp.
func ease(t float64) float64 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return 0.5 - 0.5*math.Cos(t*math.Pi)
}

// Irradiance returns the irradiance factor in [0,1] for an hour of the
// cycle: 0 at night, 1 on the daylight plateau, continuous through both
// twilight ramps.
func (m Model) Irradiance(hourOfCycle int) float64 {
	h := float64(hourOfCycle)
	a := m.Sunrise - m.Twilight // sunrise ramp start
	b := m.Sunrise + m.Twilight // full daylight
	c := m.Sunset - m.Twilight  // sunset ramp start
	d := m.Sunset + m.Twilight  // night

	switch {
	case h <= a || h >= d:
		return 0
	case h >= b && h <= c:
		return 1
	case h < b:
		return ease((h - a) / (b - a))
	default:
		return ease((d - h) / (d - c))
	}
}

// HourOfCycle wraps an absolute hour counter into the cycle.
func (m Model) HourOfCycle(hour int64) int {
	return int(hour % int64(m.CycleHours))
}

// Sol returns the sol index for an absolute hour counter.
func (m Model) Sol(hour int64) int64 {
	return hour / int64(m.CycleHours)
}
