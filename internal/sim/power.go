package sim

import (
	"log/slog"
	"math"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/daylight"
	"github.com/talgya/mars-colony/internal/tuning"
)

// epsilon absorbs float slack in power comparisons.
const epsilon = 1e-9

// solarMultiplier is the product of every active storm's attenuation.
// Multiplication commutes, so simultaneous storms compose in any order;
// no storms means 1.
func solarMultiplier(effects []ActiveEffect) float64 {
	mult := 1.0
	for _, e := range effects {
		if e.Kind == EffectDustStorm {
			mult *= e.SolarMultiplier
		}
	}
	return mult
}

// deliverablePower is the most energy the battery can put on the bus
// this tick: the C-rate ceiling or the stored energy after discharge
// loss, whichever binds first. Computed once per tick; both the
// critical reserve and the non-critical budget draw from this same
// pool, so the two passes can never double-count battery power.
func deliverablePower(s *State) float64 {
	return math.Min(s.CRate*s.Res.BatteryCapacity, s.Res.PowerStored*s.EtaOut)
}

// scarcityWeight grows as the remaining hours of supply shrink:
// ~1+K near empty, ~1 when comfortably stocked.
func scarcityWeight(hours, k float64) float64 {
	return 1 + k/(hours+1)
}

// dispatch runs one hour of power and life support: production,
// critical allocation, non-critical load selection, battery physics,
// resource flows and morale. It fills s.LastPower and mutates stocks.
func dispatch(s *State, tun tuning.Tuning, model daylight.Model, log *slog.Logger) {
	// 1) Production.
	day := model.Irradiance(model.HourOfCycle(s.Hour))
	storm := solarMultiplier(s.Effects)

	producers := 0.0
	for _, f := range s.Facilities {
		if !f.Active {
			continue
		}
		sp := catalog.Get(f.Kind)
		producers += sp.PowerProdConst
		producers += sp.PowerProdDay * day * storm * s.SiteFactor
	}

	// 2) Demand.
	critical := tun.LifeSupportBase + float64(s.Population)*tun.PowerPerColonist
	noncritDemand := 0.0
	for _, f := range s.Facilities {
		if !f.Active {
			continue
		}
		sp := catalog.Get(f.Kind)
		if !sp.NeedsPower || sp.PowerCons <= 0 {
			continue
		}
		if sp.IsCriticalLoad {
			critical += sp.PowerCons
		} else {
			noncritDemand += sp.PowerCons
		}
	}

	// Scarcity weights from pre-tick stocks.
	pop := float64(s.Population)
	wFood := scarcityWeight(hoursOfSupply(s.Res.Food, pop*tun.FoodPerColonist), tun.ScarcityK)
	wWater := scarcityWeight(hoursOfSupply(s.Res.Water, pop*tun.WaterPerColonist), tun.ScarcityK)
	wO2 := scarcityWeight(hoursOfSupply(s.Res.Oxygen, pop*tun.OxygenPerColonist), tun.ScarcityK)

	// 3) Critical reserve against the single deliverable pool.
	pool := deliverablePower(s)
	needFromBatt := math.Max(0, critical-producers)
	blackout := pool+epsilon < needFromBatt

	runFlags := make([]bool, len(s.Facilities))
	noncritUsed := 0.0
	if !blackout {
		budget := math.Max(0, producers-critical) + (pool - needFromBatt)
		for _, idx := range chooseNonCriticalLoads(s, budget, wFood, wO2, wWater, tun) {
			runFlags[idx] = true
			noncritUsed += catalog.Get(s.Facilities[idx].Kind).PowerCons
		}
	}

	// 4) Battery pass. Efficiency is applied exactly once per
	// direction: stored = input*etaIn on charge, stored -= delivered/etaOut
	// on discharge.
	rpt := PowerReport{
		Producers:         producers,
		CriticalDemand:    critical,
		NonCriticalDemand: noncritDemand,
		Blackout:          blackout,
	}
	maxRate := s.CRate * s.Res.BatteryCapacity

	battIn, battOut := 0.0, 0.0
	switch net := producers - critical - noncritUsed; {
	case blackout:
		// Drain the full pool toward critical; the shortfall is the
		// blackout, never silently dropped.
		battOut = pool / s.EtaOut
		rpt.DischargeRateLimited = maxRate <= s.Res.PowerStored*s.EtaOut
		rpt.SoCLimited = !rpt.DischargeRateLimited
	case net > epsilon:
		input := net
		if input > maxRate {
			input = maxRate
			rpt.ChargeRateLimited = true
		}
		if room := s.Res.BatteryCapacity - s.Res.PowerStored; input*s.EtaIn > room {
			input = room / s.EtaIn
			rpt.SoCLimited = true
		}
		battIn = input * s.EtaIn
	case net < -epsilon:
		delivered := -net
		if delivered > pool {
			// Never exceed the reserved pool; see deliverablePower.
			delivered = pool
			rpt.DischargeRateLimited = maxRate <= s.Res.PowerStored*s.EtaOut
			rpt.SoCLimited = !rpt.DischargeRateLimited
		}
		battOut = delivered / s.EtaOut
	}
	s.Res.PowerStored = clamp(s.Res.PowerStored+battIn-battOut, 0, s.Res.BatteryCapacity)
	rpt.BattIn = battIn
	rpt.BattOut = battOut
	if noncritDemand > 0 {
		rpt.NonCriticalEff = clamp(noncritUsed/noncritDemand, 0, 1)
	}

	// 5) Resource flows, gated by power and the chosen dispatch.
	waterDelta, oxygenDelta, foodDelta := 0.0, 0.0, 0.0
	for i, f := range s.Facilities {
		if !f.Active {
			continue
		}
		sp := catalog.Get(f.Kind)
		if sp.WaterFlow == 0 && sp.OxygenFlow == 0 && sp.FoodFlow == 0 {
			continue
		}
		eff := 1.0
		if sp.NeedsPower {
			if sp.IsCriticalLoad {
				if blackout {
					eff = 0
				}
			} else if !runFlags[i] {
				eff = 0
			}
		}
		waterDelta += sp.WaterFlow * eff
		oxygenDelta += sp.OxygenFlow * eff
		foodDelta += sp.FoodFlow * eff
	}

	// 6) Population consumption.
	waterDelta -= pop * tun.WaterPerColonist
	oxygenDelta -= pop * tun.OxygenPerColonist
	foodDelta -= pop * tun.FoodPerColonist

	s.Res.Water = math.Max(0, s.Res.Water+waterDelta)
	s.Res.Oxygen = math.Max(0, s.Res.Oxygen+oxygenDelta)
	s.Res.Food = math.Max(0, s.Res.Food+foodDelta)

	// 7) Morale.
	applyMorale(s, tun, blackout)

	s.LastPower = rpt

	// 8) Shortage warnings.
	if s.Res.Oxygen <= 0 {
		log.Warn("critical shortage", "resource", "oxygen", "hour", s.Hour)
	}
	if s.Res.Water <= 0 {
		log.Warn("critical shortage", "resource", "water", "hour", s.Hour)
	}
	if s.Res.Food <= 0 {
		log.Warn("critical shortage", "resource", "food", "hour", s.Hour)
	}
}

const (
	moraleBlackoutPenalty    = 0.04
	moraleLowFoodPenalty     = 0.02
	moraleLowWaterPenalty    = 0.02
	moraleLowOxygenPenalty   = 0.03
	moraleComfortBonus       = 0.01
	moraleOvercrowdPenalty   = 0.02
	moraleLowSupplyHours     = 24.0
	moraleComfortSupplyHours = 72.0
)

func applyMorale(s *State, tun tuning.Tuning, blackout bool) {
	pop := float64(s.Population)
	hFood := hoursOfSupply(s.Res.Food, pop*tun.FoodPerColonist)
	hWater := hoursOfSupply(s.Res.Water, pop*tun.WaterPerColonist)
	hO2 := hoursOfSupply(s.Res.Oxygen, pop*tun.OxygenPerColonist)

	delta := 0.0
	if blackout {
		delta -= moraleBlackoutPenalty
	}
	if hFood < moraleLowSupplyHours {
		delta -= moraleLowFoodPenalty
	}
	if hWater < moraleLowSupplyHours {
		delta -= moraleLowWaterPenalty
	}
	if hO2 < moraleLowSupplyHours {
		delta -= moraleLowOxygenPenalty
	}
	if !blackout &&
		hFood > moraleComfortSupplyHours &&
		hWater > moraleComfortSupplyHours &&
		hO2 > moraleComfortSupplyHours &&
		s.Res.PowerStored > s.Res.BatteryCapacity*0.5 {
		delta += moraleComfortBonus
	}
	if s.Population > s.HousingCapacity {
		delta -= moraleOvercrowdPenalty
	}
	s.Morale = clamp(s.Morale+delta, 0, 1)
}
