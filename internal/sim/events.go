package sim

import (
	"github.com/talgya/mars-colony/internal/catalog"
)

// Event is a notable occurrence, kept for the CLI and the run archive.
type Event struct {
	Hour     int64  `db:"hour"`
	Category string `db:"category"`
	Message  string `db:"message"`
}

// maybeSpawnEvents runs the cycle-boundary hazard/boon rolls. The three
// Bernoulli draws are always consumed in storm, meteoroid, supply order;
// follow-up draws (duration, multiplier, victim pick) happen only inside
// a taken branch. Reordering breaks every recorded seed.
func (e *Engine) maybeSpawnEvents() {
	if !e.spawnEvents {
		return
	}
	s := e.State
	if e.Daylight.HourOfCycle(s.Hour) != 0 {
		return
	}
	tun := e.Tuning

	// Dust storm: only one at a time; the roll is consumed regardless.
	stormRoll := s.RNG.Float64() < tun.StormProb
	if stormRoll && !stormActive(s.Effects) {
		eff := ActiveEffect{
			Kind:            EffectDustStorm,
			HoursRemaining:  s.RNG.IntRange(tun.StormMinHours, tun.StormMaxHours),
			SolarMultiplier: s.RNG.FloatRange(tun.StormMinMult, tun.StormMaxMult),
		}
		s.Effects = append(s.Effects, eff)
		e.event("weather", "A dust storm rolls in. Solar output reduced.")
		e.Log.Info("dust storm", "hours", eff.HoursRemaining, "solar_mult", eff.SolarMultiplier, "hour", s.Hour)
	}

	// Meteoroid: destroys one uniformly chosen non-battery facility.
	if s.RNG.Float64() < tun.MeteoroidProb && len(s.Facilities) > 0 {
		candidates := make([]int, 0, len(s.Facilities))
		for i, f := range s.Facilities {
			if f.Kind != catalog.BatteryBank {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) > 0 {
			idx := candidates[s.RNG.IntRange(0, len(candidates)-1)]
			kind := s.Facilities[idx].Kind
			sp := catalog.Get(kind)
			s.HousingCapacity -= sp.Housing
			if s.HousingCapacity < 0 {
				s.HousingCapacity = 0
			}
			s.Facilities = append(s.Facilities[:idx], s.Facilities[idx+1:]...)
			s.Morale = clamp(s.Morale-0.08, 0, 1)
			e.event("hazard", "Meteoroid strike! "+kind.String()+" destroyed.")
			e.Log.Warn("meteoroid strike", "destroyed", kind.String(), "hour", s.Hour)
		}
	}

	// Supply drop: fixed bonuses.
	if s.RNG.Float64() < tun.SupplyDropProb {
		s.Res.Water += tun.SupplyWater
		s.Res.Oxygen += tun.SupplyOxygen
		s.Res.Food += tun.SupplyFood
		s.Res.Metals += tun.SupplyMetals
		s.Res.Credits += tun.SupplyCredits
		e.event("boon", "Orbital supply drop delivered. Stocks replenished.")
		e.Log.Info("supply drop", "hour", s.Hour)
	}
}

func stormActive(effects []ActiveEffect) bool {
	for _, eff := range effects {
		if eff.Kind == EffectDustStorm {
			return true
		}
	}
	return false
}

// tickEffects decrements every active effect and rebuilds the
// collection without the expired ones, emitting clearance notices
// before removal.
func (e *Engine) tickEffects() {
	s := e.State
	kept := s.Effects[:0]
	for _, eff := range s.Effects {
		eff.HoursRemaining--
		if eff.HoursRemaining <= 0 {
			e.event("weather", eff.Description()+" has cleared.")
			e.Log.Info("effect cleared", "effect", eff.Description(), "hour", s.Hour)
			continue
		}
		kept = append(kept, eff)
	}
	s.Effects = kept
}

// event records a log entry when the engine is running live; forecast
// and replay look-ahead stay silent.
func (e *Engine) event(category, message string) {
	if e.silent {
		return
	}
	e.Events = append(e.Events, Event{Hour: e.State.Hour, Category: category, Message: message})
}
