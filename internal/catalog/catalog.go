// Package catalog is the static facility database: pure data keyed by
// kind, no behavior. Indices are stable because the save and replay
// formats persist them.
package catalog

import "fmt"

// Kind identifies a facility type.
type Kind uint8

const (
	SolarArray Kind = iota
	BatteryBank
	Habitat
	Greenhouse
	WaterExtractor
	Electrolyzer
	RTG

	kindCount
)

// Spec describes one facility kind. Flows are per hour at full power;
// positive means production.
type Spec struct {
	Name string

	PowerProdDay   float64 // scaled by daylight and storms
	PowerProdConst float64 // constant output (RTG)
	PowerCons      float64 // consumption when running

	WaterFlow  float64
	OxygenFlow float64
	FoodFlow   float64

	Housing              int
	BatteryCapacityDelta float64

	MetalsCost  int
	CreditsCost int

	NeedsPower     bool
	IsCriticalLoad bool
}

var specs = [kindCount]Spec{
	SolarArray: {
		Name: "Solar Array", PowerProdDay: 25.0,
		MetalsCost: 50, CreditsCost: 100,
	},
	BatteryBank: {
		Name: "Battery Bank", BatteryCapacityDelta: 200.0,
		MetalsCost: 40, CreditsCost: 50,
	},
	Habitat: {
		Name: "Habitat", PowerCons: 2.0, Housing: 5,
		MetalsCost: 100, CreditsCost: 500,
		NeedsPower: true, IsCriticalLoad: true,
	},
	Greenhouse: {
		Name: "Greenhouse", PowerCons: 12.0,
		WaterFlow: -2.0, OxygenFlow: 1.0, FoodFlow: 2.0,
		MetalsCost: 80, CreditsCost: 400,
		NeedsPower: true,
	},
	WaterExtractor: {
		Name: "Water Extractor", PowerCons: 8.0,
		WaterFlow:  3.0,
		MetalsCost: 60, CreditsCost: 300,
		NeedsPower: true,
	},
	Electrolyzer: {
		Name: "Electrolyzer", PowerCons: 10.0,
		WaterFlow: -1.0, OxygenFlow: 1.5,
		MetalsCost: 50, CreditsCost: 350,
		NeedsPower: true,
	},
	RTG: {
		Name: "RTG", PowerProdConst: 30.0,
		MetalsCost: 200, CreditsCost: 2000,
	},
}

// Get returns the spec for a kind.
func Get(k Kind) Spec {
	return specs[k]
}

// Count returns the number of facility kinds.
func Count() int { return int(kindCount) }

// Kinds lists all kinds in index order.
func Kinds() []Kind {
	out := make([]Kind, kindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// FromIndex converts a persisted index back to a Kind.
func FromIndex(i int) (Kind, error) {
	if i < 0 || i >= int(kindCount) {
		return 0, fmt.Errorf("facility kind index %d out of range", i)
	}
	return Kind(i), nil
}

// FromName resolves a kind by its display name or a lowercase,
// space-free alias (e.g. "solararray").
func FromName(name string) (Kind, error) {
	for k := Kind(0); k < kindCount; k++ {
		if specs[k].Name == name || alias(specs[k].Name) == alias(name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown facility %q", name)
}

func alias(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func (k Kind) String() string {
	if k >= kindCount {
		return "Unknown"
	}
	return specs[k].Name
}
