// Package tuning holds the simulation constants. Defaults reproduce the
// shipped balance; a yaml file can overlay any subset of them.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	CycleHours    int     `yaml:"cycle_hours"`
	DaylightStart float64 `yaml:"daylight_start"`
	DaylightEnd   float64 `yaml:"daylight_end"`
	TwilightHours float64 `yaml:"twilight_hours"`

	LifeSupportBase   float64 `yaml:"life_support_base"`
	PowerPerColonist  float64 `yaml:"power_per_colonist"`
	WaterPerColonist  float64 `yaml:"water_per_colonist"`
	OxygenPerColonist float64 `yaml:"oxygen_per_colonist"`
	FoodPerColonist   float64 `yaml:"food_per_colonist"`

	StormProb     float64 `yaml:"storm_prob"`
	StormMinHours int     `yaml:"storm_min_hours"`
	StormMaxHours int     `yaml:"storm_max_hours"`
	StormMinMult  float64 `yaml:"storm_min_mult"`
	StormMaxMult  float64 `yaml:"storm_max_mult"`

	MeteoroidProb float64 `yaml:"meteoroid_prob"`

	SupplyDropProb float64 `yaml:"supply_drop_prob"`
	SupplyWater    float64 `yaml:"supply_water"`
	SupplyOxygen   float64 `yaml:"supply_oxygen"`
	SupplyFood     float64 `yaml:"supply_food"`
	SupplyMetals   int     `yaml:"supply_metals"`
	SupplyCredits  int     `yaml:"supply_credits"`

	ScarcityK     float64 `yaml:"scarcity_k"`
	PowerPenalty  float64 `yaml:"power_penalty"`
	KnapsackScale int     `yaml:"knapsack_scale"`

	DefaultCRate  float64 `yaml:"default_c_rate"`
	DefaultEtaIn  float64 `yaml:"default_eta_in"`
	DefaultEtaOut float64 `yaml:"default_eta_out"`

	SiteSurvey bool `yaml:"site_survey"`
}

// Default returns the shipped balance.
func Default() Tuning {
	return Tuning{
		CycleHours:    24,
		DaylightStart: 6,
		DaylightEnd:   18,
		TwilightHours: 1.5,

		LifeSupportBase:   1.5,
		PowerPerColonist:  0.3,
		WaterPerColonist:  0.10,
		OxygenPerColonist: 0.50,
		FoodPerColonist:   0.05,

		StormProb:     0.18,
		StormMinHours: 36,
		StormMaxHours: 96,
		StormMinMult:  0.2,
		StormMaxMult:  0.6,

		MeteoroidProb: 0.06,

		SupplyDropProb: 0.12,
		SupplyWater:    60,
		SupplyOxygen:   120,
		SupplyFood:     80,
		SupplyMetals:   60,
		SupplyCredits:  400,

		ScarcityK:     72,
		PowerPenalty:  0.05,
		KnapsackScale: 10,

		DefaultCRate:  0.25,
		DefaultEtaIn:  0.92,
		DefaultEtaOut: 0.95,

		SiteSurvey: true,
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects values the dispatch math cannot work with.
func (t Tuning) Validate() error {
	if t.CycleHours <= 0 {
		return fmt.Errorf("cycle_hours must be positive, got %d", t.CycleHours)
	}
	if t.KnapsackScale <= 0 {
		return fmt.Errorf("knapsack_scale must be positive, got %d", t.KnapsackScale)
	}
	for name, p := range map[string]float64{
		"storm_prob":       t.StormProb,
		"meteoroid_prob":   t.MeteoroidProb,
		"supply_drop_prob": t.SupplyDropProb,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, p)
		}
	}
	if t.DefaultCRate < 0 {
		return fmt.Errorf("default_c_rate must be >= 0, got %v", t.DefaultCRate)
	}
	if t.DefaultEtaIn <= 0 || t.DefaultEtaIn > 1 {
		return fmt.Errorf("default_eta_in must be in (0,1], got %v", t.DefaultEtaIn)
	}
	if t.DefaultEtaOut <= 0 || t.DefaultEtaOut > 1 {
		return fmt.Errorf("default_eta_out must be in (0,1], got %v", t.DefaultEtaOut)
	}
	return nil
}
