package sim

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCheckInvariantsCleanState(t *testing.T) {
	s := NewState(42, quietTuning())
	if v := CheckInvariants(s); len(v) != 0 {
		t.Errorf("starter colony flagged: %v", v)
	}
}

func TestCheckInvariantsFlagsCorruption(t *testing.T) {
	for name, mutate := range map[string]func(*State){
		"negative hour":    func(s *State) { s.Hour = -1 },
		"morale above one": func(s *State) { s.Morale = 1.5 },
		"nan morale":       func(s *State) { s.Morale = math.NaN() },
		"negative water":   func(s *State) { s.Res.Water = -3 },
		"infinite oxygen":  func(s *State) { s.Res.Oxygen = math.Inf(1) },
		"negative metals":  func(s *State) { s.Res.Metals = -1 },
		"overfull battery": func(s *State) { s.Res.PowerStored = s.Res.BatteryCapacity + 1 },
		"negative c-rate":  func(s *State) { s.CRate = -0.1 },
		"zero eta":         func(s *State) { s.EtaOut = 0 },
		"dead effect": func(s *State) {
			s.Effects = append(s.Effects, ActiveEffect{Kind: EffectDustStorm, HoursRemaining: 0, SolarMultiplier: 0.5})
		},
	} {
		s := NewState(42, quietTuning())
		mutate(s)
		if v := CheckInvariants(s); len(v) == 0 {
			t.Errorf("%s: no violation reported", name)
		}
	}
}

func TestCheckInvariantsToleratesFloatSlack(t *testing.T) {
	s := NewState(42, quietTuning())
	s.Res.Water = -1e-12
	s.Res.PowerStored = s.Res.BatteryCapacity + 1e-12
	if v := CheckInvariants(s); len(v) != 0 {
		t.Errorf("sub-tolerance slack flagged: %v", v)
	}
}

func TestStepFatalOnViolation(t *testing.T) {
	e := New(42, quietTuning(), discardLog())
	e.Mode = CheckFatal
	e.State.EtaIn = 1.5 // invalid; dispatch never repairs battery params

	err := e.Step()
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvariantError", err)
	}
	if len(ie.Violations) == 0 {
		t.Error("error carries no violations")
	}
	if !strings.Contains(ie.Error(), "hour 0") {
		t.Errorf("error message %q missing hour", ie.Error())
	}
}

func TestStepAdvisoryContinues(t *testing.T) {
	e := New(42, quietTuning(), discardLog())
	e.Mode = CheckAdvisory
	e.State.EtaIn = 1.5

	if err := e.Step(); err != nil {
		t.Fatalf("advisory mode returned %v", err)
	}
	if e.State.Hour != 1 {
		t.Errorf("hour = %d, want 1", e.State.Hour)
	}
}
