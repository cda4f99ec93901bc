// Package sim is the hourly colony simulation core: power dispatch,
// load selection, stochastic events, forecasting and the determinism
// machinery around them.
package sim

import (
	"errors"
	"fmt"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/rng"
	"github.com/talgya/mars-colony/internal/site"
	"github.com/talgya/mars-colony/internal/tuning"
)

// ErrInsufficientResources reports a build the colony cannot pay for.
// The triggering command is consumed either way.
var ErrInsufficientResources = errors.New("insufficient resources")

// EffectKind identifies a timed effect.
type EffectKind uint8

const (
	EffectDustStorm EffectKind = iota
)

func (k EffectKind) String() string {
	if k == EffectDustStorm {
		return "Dust Storm"
	}
	return "Unknown"
}

// Facility is an installed instance of a catalog kind.
type Facility struct {
	Kind   catalog.Kind
	Active bool
}

// ActiveEffect is a timed modifier. It is removed the tick its
// remaining duration reaches zero.
type ActiveEffect struct {
	Kind            EffectKind
	HoursRemaining  int
	SolarMultiplier float64
}

// Description renders the effect the way event logs show it.
func (e ActiveEffect) Description() string {
	return fmt.Sprintf("%s (solar %d%%)", e.Kind, int(e.SolarMultiplier*100))
}

// Resources are the colony stocks. All fields stay >= 0 and PowerStored
// never exceeds BatteryCapacity.
type Resources struct {
	PowerStored     float64
	BatteryCapacity float64
	Water           float64
	Oxygen          float64
	Food            float64
	Metals          int
	Credits         int
}

// PowerReport is the diagnostic snapshot of the most recent dispatch.
// It is fully recomputed every tick.
type PowerReport struct {
	Producers         float64
	CriticalDemand    float64
	NonCriticalDemand float64
	NonCriticalEff    float64 // share of non-critical demand actually run
	Blackout          bool

	BattIn  float64 // energy added to the battery this tick (post-loss)
	BattOut float64 // energy drained from the battery this tick (pre-loss)

	ChargeRateLimited    bool
	DischargeRateLimited bool
	SoCLimited           bool
}

// State is the single mutable aggregate the engine advances. It owns
// its RNG exclusively so independently constructed colonies with the
// same seed replay bit-identically.
type State struct {
	Hour            int64
	Population      int
	HousingCapacity int
	Morale          float64 // [0,1]

	Res        Resources
	Facilities []Facility
	Effects    []ActiveEffect
	LastPower  PowerReport

	// Battery physics. CRate is the max charge/discharge power as a
	// multiple of capacity per hour; zero makes the battery inert.
	CRate  float64
	EtaIn  float64
	EtaOut float64

	// SiteFactor scales solar production; derived from the seed when
	// the site survey is enabled, otherwise 1.
	SiteFactor float64

	RNG *rng.PCG32
}

// NewState builds the starter colony from a seed.
func NewState(seed uint64, tun tuning.Tuning) *State {
	s := &State{
		Population:      5,
		HousingCapacity: 5,
		Morale:          0.75,
		Res: Resources{
			PowerStored:     300,
			BatteryCapacity: 600,
			Water:           100,
			Oxygen:          200,
			Food:            100,
			Metals:          200,
			Credits:         1000,
		},
		CRate:      tun.DefaultCRate,
		EtaIn:      tun.DefaultEtaIn,
		EtaOut:     tun.DefaultEtaOut,
		SiteFactor: 1,
		RNG:        rng.New(seed),
	}
	if tun.SiteSurvey {
		s.SiteFactor = site.Factor(seed)
	}

	for _, k := range []catalog.Kind{
		catalog.Habitat,
		catalog.SolarArray,
		catalog.SolarArray,
		catalog.SolarArray,
		catalog.BatteryBank,
		catalog.WaterExtractor,
		catalog.Greenhouse,
		catalog.Electrolyzer,
	} {
		s.AddFacility(k)
	}
	return s
}

// Reseed resets the RNG to a fresh stream and re-derives the site
// factor for the new seed.
func (s *State) Reseed(seed uint64, tun tuning.Tuning) {
	s.RNG.Reseed(seed)
	s.SiteFactor = 1
	if tun.SiteSurvey {
		s.SiteFactor = site.Factor(seed)
	}
}

// AddFacility installs a facility and applies its housing and battery
// capacity contributions. It does not charge build costs.
func (s *State) AddFacility(k catalog.Kind) {
	sp := catalog.Get(k)
	s.Facilities = append(s.Facilities, Facility{Kind: k, Active: true})
	s.HousingCapacity += sp.Housing
	s.Res.BatteryCapacity += sp.BatteryCapacityDelta
	s.Res.PowerStored = clamp(s.Res.PowerStored, 0, s.Res.BatteryCapacity)
}

// Build pays for and installs a facility.
func (s *State) Build(k catalog.Kind) error {
	sp := catalog.Get(k)
	if s.Res.Metals < sp.MetalsCost || s.Res.Credits < sp.CreditsCost {
		return fmt.Errorf("build %s: %w", k, ErrInsufficientResources)
	}
	s.Res.Metals -= sp.MetalsCost
	s.Res.Credits -= sp.CreditsCost
	s.AddFacility(k)
	return nil
}

// Clone returns a deep copy sharing nothing with the original,
// including the RNG stream position.
func (s *State) Clone() *State {
	c := *s
	c.Facilities = make([]Facility, len(s.Facilities))
	copy(c.Facilities, s.Facilities)
	c.Effects = make([]ActiveEffect, len(s.Effects))
	copy(c.Effects, s.Effects)
	c.RNG = s.RNG.Clone()
	return &c
}

// hoursOfSupply returns how long a stock lasts at a consumption rate,
// effectively unbounded when nothing consumes it.
func hoursOfSupply(stock, ratePerHour float64) float64 {
	if ratePerHour <= 0 {
		return 9999
	}
	return stock / ratePerHour
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
