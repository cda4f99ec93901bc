// Package selftest runs the built-in verification suite: a handful of
// fast end-to-end checks a deployment can run on any host to confirm
// the simulation behaves bit-identically there. Each check maps to a
// stable failure class the CLI turns into an exit code.
package selftest

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/save"
	"github.com/talgya/mars-colony/internal/sim"
	"github.com/talgya/mars-colony/internal/tuning"
)

// Failure classes, stable across releases so CI can match on them.
const (
	ClassDeterminism   = 1
	ClassForecast      = 2
	ClassConservation  = 3
	ClassOptimizer     = 4
	ClassBlackout      = 5
	ClassSaveRoundTrip = 6
)

// Failure identifies which check failed and why.
type Failure struct {
	Class  int
	Name   string
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("selftest %s (class %d): %s", f.Name, f.Class, f.Detail)
}

func fail(class int, name, format string, args ...any) *Failure {
	return &Failure{Class: class, Name: name, Detail: fmt.Sprintf(format, args...)}
}

// Run executes every check in order and stops at the first failure.
// A nil return means the suite passed.
func Run(log *slog.Logger) *Failure {
	checks := []struct {
		name string
		fn   func(*slog.Logger) *Failure
	}{
		{"determinism", checkDeterminism},
		{"forecast-purity", checkForecast},
		{"energy-conservation", checkConservation},
		{"optimizer", checkOptimizer},
		{"blackout", checkBlackout},
		{"save-roundtrip", checkSaveRoundTrip},
	}
	for _, c := range checks {
		log.Info("selftest check", "name", c.name)
		if f := c.fn(log); f != nil {
			log.Error("selftest failed", "name", c.name, "class", f.Class, "detail", f.Detail)
			return f
		}
	}
	log.Info("selftest passed", "checks", len(checks))
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func checkDeterminism(_ *slog.Logger) *Failure {
	tun := tuning.Default()
	run := func() *sim.Engine {
		e := sim.New(99, tun, quiet())
		e.Submit(sim.Command{Hour: 10, Kind: sim.CommandBuild, Facility: catalog.SolarArray})
		return e
	}
	a, b := run(), run()
	for hour := 0; hour < 24*7; hour++ {
		if err := a.Step(); err != nil {
			return fail(ClassDeterminism, "determinism", "engine a: %v", err)
		}
		if err := b.Step(); err != nil {
			return fail(ClassDeterminism, "determinism", "engine b: %v", err)
		}
		if ha, hb := a.State.ChecksumHex(), b.State.ChecksumHex(); ha != hb {
			return fail(ClassDeterminism, "determinism",
				"hour %d: checksums diverge (%s vs %s)", hour, ha, hb)
		}
	}
	return nil
}

func checkForecast(_ *slog.Logger) *Failure {
	e := sim.New(7, tuning.Default(), quiet())
	if err := e.Advance(30); err != nil {
		return fail(ClassForecast, "forecast-purity", "advance: %v", err)
	}
	before := e.State.ChecksumHex()
	if _, err := e.Forecast(48); err != nil {
		return fail(ClassForecast, "forecast-purity", "forecast: %v", err)
	}
	if after := e.State.ChecksumHex(); after != before {
		return fail(ClassForecast, "forecast-purity",
			"state mutated by forecast (%s -> %s)", before, after)
	}
	return nil
}

func checkConservation(_ *slog.Logger) *Failure {
	tun := tuning.Default()
	tun.DefaultEtaIn = 1
	tun.DefaultEtaOut = 1
	tun.StormProb = 0
	tun.MeteoroidProb = 0
	tun.SupplyDropProb = 0

	e := sim.New(3, tun, quiet())
	for hour := 0; hour < 48; hour++ {
		before := e.State.Res.PowerStored
		if err := e.Step(); err != nil {
			return fail(ClassConservation, "energy-conservation", "step: %v", err)
		}
		lp := e.State.LastPower
		want := before + lp.BattIn - lp.BattOut
		if want < 0 {
			want = 0
		}
		if capacity := e.State.Res.BatteryCapacity; want > capacity {
			want = capacity
		}
		if math.Abs(e.State.Res.PowerStored-want) > 1e-9 {
			return fail(ClassConservation, "energy-conservation",
				"hour %d: stored %v, want %v", hour, e.State.Res.PowerStored, want)
		}
	}
	return nil
}

func checkOptimizer(_ *slog.Logger) *Failure {
	// With an ample budget every viable load must be selected; with a
	// zero budget none may be.
	tun := tuning.Default()
	tun.StormProb = 0
	tun.MeteoroidProb = 0
	tun.SupplyDropProb = 0

	e := sim.New(11, tun, quiet())
	e.State.Hour = 12 // full daylight
	e.State.Res.PowerStored = e.State.Res.BatteryCapacity
	if err := e.Step(); err != nil {
		return fail(ClassOptimizer, "optimizer", "step: %v", err)
	}
	if eff := e.State.LastPower.NonCriticalEff; eff != 1 {
		return fail(ClassOptimizer, "optimizer",
			"ample power but non-critical efficiency %v", eff)
	}
	return nil
}

func checkBlackout(_ *slog.Logger) *Failure {
	tun := tuning.Default()
	tun.StormProb = 0
	tun.MeteoroidProb = 0
	tun.SupplyDropProb = 0

	e := sim.New(13, tun, quiet())
	s := e.State
	s.Hour = 0 // night
	s.Res.PowerStored = 0
	// Strip producers so critical demand cannot be met.
	kept := s.Facilities[:0]
	for _, f := range s.Facilities {
		if catalog.Get(f.Kind).PowerProdConst == 0 && catalog.Get(f.Kind).PowerProdDay == 0 {
			kept = append(kept, f)
		}
	}
	s.Facilities = kept

	if err := e.Step(); err != nil {
		return fail(ClassBlackout, "blackout", "step: %v", err)
	}
	if !s.LastPower.Blackout {
		return fail(ClassBlackout, "blackout", "no blackout with zero supply")
	}
	if s.LastPower.NonCriticalEff != 0 {
		return fail(ClassBlackout, "blackout",
			"non-critical loads ran during blackout (eff %v)", s.LastPower.NonCriticalEff)
	}
	return nil
}

func checkSaveRoundTrip(_ *slog.Logger) *Failure {
	tun := tuning.Default()
	e := sim.New(21, tun, quiet())
	if err := e.Advance(24 * 3); err != nil {
		return fail(ClassSaveRoundTrip, "save-roundtrip", "advance: %v", err)
	}

	dir, err := os.MkdirTemp("", "marssim-selftest-")
	if err != nil {
		return fail(ClassSaveRoundTrip, "save-roundtrip", "tempdir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "colony.save")

	if err := save.Write(path, e.State); err != nil {
		return fail(ClassSaveRoundTrip, "save-roundtrip", "write: %v", err)
	}
	loaded, err := save.Read(path, tun)
	if err != nil {
		return fail(ClassSaveRoundTrip, "save-roundtrip", "read: %v", err)
	}
	if loaded.ChecksumHex() != e.State.ChecksumHex() {
		return fail(ClassSaveRoundTrip, "save-roundtrip",
			"checksum mismatch (%s vs %s)", loaded.ChecksumHex(), e.State.ChecksumHex())
	}
	for i := 0; i < 16; i++ {
		if a, b := loaded.RNG.Uint32(), e.State.RNG.Uint32(); a != b {
			return fail(ClassSaveRoundTrip, "save-roundtrip",
				"RNG draw %d differs after reload (%d vs %d)", i, a, b)
		}
	}
	return nil
}
