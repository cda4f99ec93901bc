package sim

import (
	"errors"
	"testing"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/rng"
	"github.com/talgya/mars-colony/internal/tuning"
)

// scriptedEngine builds an engine with a fixed command script, used by the
// determinism tests to compare two independent instances.
func scriptedEngine(seed uint64, tun tuning.Tuning) *Engine {
	e := New(seed, tun, discardLog())
	e.Submit(Command{Hour: 8, Kind: CommandBuild, Facility: catalog.SolarArray})
	e.Submit(Command{Hour: 8, Kind: CommandBuild, Facility: catalog.BatteryBank})
	e.Submit(Command{Hour: 40, Kind: CommandBuild, Facility: catalog.WaterExtractor})
	return e
}

func TestDeterminismSameSeed(t *testing.T) {
	tun := tuning.Default()
	a := scriptedEngine(1234, tun)
	b := scriptedEngine(1234, tun)

	for hour := 0; hour < 24*14; hour++ {
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}
		if err := b.Step(); err != nil {
			t.Fatal(err)
		}
		if ha, hb := a.State.ChecksumHex(), b.State.ChecksumHex(); ha != hb {
			t.Fatalf("hour %d: checksums diverge: %s vs %s", hour, ha, hb)
		}
	}
	if *a.State.RNG != *b.State.RNG {
		t.Error("RNG positions diverge after identical runs")
	}
}

func TestDeterminismDifferentSeeds(t *testing.T) {
	tun := tuning.Default()
	a := New(1, tun, discardLog())
	b := New(2, tun, discardLog())

	diverged := false
	for hour := 0; hour < 24*14; hour++ {
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}
		if err := b.Step(); err != nil {
			t.Fatal(err)
		}
		if a.State.Checksum() != b.State.Checksum() {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Error("two weeks under different seeds never diverged")
	}
}

// TestScenarioSeed42 pins the reference scenario: seed 42, hazards
// disabled, 3 solar arrays and one 40-unit battery at half charge,
// 6 colonists, 24 ticks. Two independent runs must agree tick for
// tick; the final checksum is logged so CI can pin it once recorded.
func TestScenarioSeed42(t *testing.T) {
	build := func() *Engine {
		tun := tuning.Default()
		tun.StormProb = 0
		tun.MeteoroidProb = 0
		tun.SupplyDropProb = 0
		tun.SiteSurvey = false

		s := &State{
			Population: 6,
			Morale:     0.75,
			Res: Resources{
				Water:  500,
				Oxygen: 500,
				Food:   500,
			},
			CRate:      0.25,
			EtaIn:      0.92,
			EtaOut:     0.95,
			SiteFactor: 1,
			RNG:        rng.New(42),
		}
		for i := 0; i < 3; i++ {
			s.AddFacility(catalog.SolarArray)
		}
		s.AddFacility(catalog.BatteryBank)
		s.Res.BatteryCapacity = 40
		s.Res.PowerStored = 20
		return NewFromState(s, tun, discardLog())
	}

	a, b := build(), build()
	for tick := 0; tick < 24; tick++ {
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}
		if err := b.Step(); err != nil {
			t.Fatal(err)
		}
		if ha, hb := a.State.ChecksumHex(), b.State.ChecksumHex(); ha != hb {
			t.Fatalf("tick %d: %s vs %s", tick, ha, hb)
		}
	}
	t.Logf("scenario checksum after 24 ticks: %s", a.State.ChecksumHex())
}

func TestCloneSharesNothing(t *testing.T) {
	s := NewState(9, tuning.Default())
	s.Effects = append(s.Effects, ActiveEffect{Kind: EffectDustStorm, HoursRemaining: 10, SolarMultiplier: 0.3})

	c := s.Clone()
	c.Facilities[0].Active = false
	c.Effects[0].HoursRemaining = 1
	c.RNG.Uint32()
	c.Res.Water = 0

	if !s.Facilities[0].Active {
		t.Error("facility mutation leaked into original")
	}
	if s.Effects[0].HoursRemaining != 10 {
		t.Error("effect mutation leaked into original")
	}
	if *s.RNG == *c.RNG {
		t.Error("RNG shared between clone and original")
	}
	if s.Res.Water == 0 {
		t.Error("resource mutation leaked into original")
	}
}

func TestChecksumSensitivity(t *testing.T) {
	base := NewState(5, tuning.Default())
	for name, mutate := range map[string]func(*State){
		"hour":     func(s *State) { s.Hour++ },
		"morale":   func(s *State) { s.Morale += 0.001 },
		"water":    func(s *State) { s.Res.Water += 1 },
		"facility": func(s *State) { s.Facilities[0].Active = false },
		"effect": func(s *State) {
			s.Effects = append(s.Effects, ActiveEffect{Kind: EffectDustStorm, HoursRemaining: 3, SolarMultiplier: 0.5})
		},
	} {
		m := base.Clone()
		mutate(m)
		if m.Checksum() == base.Checksum() {
			t.Errorf("%s change not reflected in checksum", name)
		}
	}
}

func TestChecksumIgnoresDiagnostics(t *testing.T) {
	// The power report and the RNG position are reproducible from the
	// persisted fields, so they stay out of the checksum.
	s := NewState(5, tuning.Default())
	sum := s.Checksum()
	s.LastPower.Producers = 123
	s.RNG.Uint32()
	if s.Checksum() != sum {
		t.Error("checksum covers diagnostic fields")
	}
}

func TestBuildChargesCosts(t *testing.T) {
	s := NewState(1, tuning.Default())
	metals, credits := s.Res.Metals, s.Res.Credits
	capBefore := s.Res.BatteryCapacity

	if err := s.Build(catalog.BatteryBank); err != nil {
		t.Fatal(err)
	}
	sp := catalog.Get(catalog.BatteryBank)
	if s.Res.Metals != metals-sp.MetalsCost || s.Res.Credits != credits-sp.CreditsCost {
		t.Error("costs not charged")
	}
	if s.Res.BatteryCapacity != capBefore+sp.BatteryCapacityDelta {
		t.Error("battery capacity not extended")
	}
}

func TestBuildInsufficientResources(t *testing.T) {
	s := NewState(1, tuning.Default())
	s.Res.Credits = 0

	err := s.Build(catalog.RTG)
	if !errors.Is(err, ErrInsufficientResources) {
		t.Errorf("err = %v, want ErrInsufficientResources", err)
	}
}

func TestBuildNowRecordsEvent(t *testing.T) {
	e := New(1, quietTuning(), discardLog())
	if err := e.BuildNow(catalog.SolarArray); err != nil {
		t.Fatal(err)
	}
	events := e.DrainEvents()
	if len(events) != 1 || events[0].Category != "build" {
		t.Errorf("events = %v, want one build event", events)
	}
}

func TestReseedResetsStream(t *testing.T) {
	tun := tuning.Default()
	s := NewState(10, tun)
	s.RNG.Uint32()
	s.RNG.Uint32()
	s.Reseed(10, tun)

	fresh := NewState(10, tun)
	for i := 0; i < 8; i++ {
		if a, b := s.RNG.Uint32(), fresh.RNG.Uint32(); a != b {
			t.Fatalf("draw %d: %d != %d after reseed", i, a, b)
		}
	}
}

func TestHoursOfSupply(t *testing.T) {
	if got := hoursOfSupply(100, 4); got != 25 {
		t.Errorf("hoursOfSupply(100,4) = %v", got)
	}
	if got := hoursOfSupply(100, 0); got != 9999 {
		t.Errorf("zero rate: %v, want 9999", got)
	}
}
