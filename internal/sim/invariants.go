package sim

import (
	"fmt"
	"math"
)

// CheckMode selects how invariant violations are handled.
type CheckMode uint8

const (
	// CheckAdvisory logs violations and continues.
	CheckAdvisory CheckMode = iota
	// CheckFatal aborts the run on the first violating tick.
	CheckFatal
)

// Violation describes one failed invariant.
type Violation struct {
	Field  string
	Detail string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Detail
}

// tolerance for float slack in non-negativity checks.
const checkTolerance = 1e-9

// CheckInvariants runs the post-tick assertion pass: numeric ranges and
// conservation bounds over the whole state. An empty result means the
// state is sound.
func CheckInvariants(s *State) []Violation {
	var out []Violation
	bad := func(field, format string, args ...any) {
		out = append(out, Violation{Field: field, Detail: fmt.Sprintf(format, args...)})
	}

	if s.Hour < 0 {
		bad("hour", "negative: %d", s.Hour)
	}
	if s.Morale < 0 || s.Morale > 1 || math.IsNaN(s.Morale) {
		bad("morale", "outside [0,1]: %v", s.Morale)
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"powerStored", s.Res.PowerStored},
		{"batteryCapacity", s.Res.BatteryCapacity},
		{"water", s.Res.Water},
		{"oxygen", s.Res.Oxygen},
		{"food", s.Res.Food},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			bad(f.name, "not finite: %v", f.v)
		} else if f.v < -checkTolerance {
			bad(f.name, "negative: %v", f.v)
		}
	}
	if s.Res.Metals < 0 {
		bad("metals", "negative: %d", s.Res.Metals)
	}
	if s.Res.Credits < 0 {
		bad("credits", "negative: %d", s.Res.Credits)
	}

	if s.Res.PowerStored > s.Res.BatteryCapacity+checkTolerance {
		bad("powerStored", "exceeds capacity: %v > %v", s.Res.PowerStored, s.Res.BatteryCapacity)
	}

	if s.CRate < 0 || math.IsNaN(s.CRate) {
		bad("cRate", "invalid: %v", s.CRate)
	}
	if s.EtaIn <= 0 || s.EtaIn > 1 {
		bad("etaIn", "outside (0,1]: %v", s.EtaIn)
	}
	if s.EtaOut <= 0 || s.EtaOut > 1 {
		bad("etaOut", "outside (0,1]: %v", s.EtaOut)
	}

	if eff := s.LastPower.NonCriticalEff; eff < 0 || eff > 1 || math.IsNaN(eff) {
		bad("nonCriticalEff", "outside [0,1]: %v", eff)
	}

	for i, eff := range s.Effects {
		if eff.HoursRemaining <= 0 {
			bad("effects", "entry %d expired but still present (%dh)", i, eff.HoursRemaining)
		}
		if eff.SolarMultiplier <= 0 || eff.SolarMultiplier > 1 {
			bad("effects", "entry %d solar multiplier outside (0,1]: %v", i, eff.SolarMultiplier)
		}
	}

	return out
}
