package sim

import (
	"math"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/tuning"
)

// loadItem is a knapsack candidate: an installed, powered, non-critical
// facility with a discretized power weight and a scarcity-biased
// utility.
type loadItem struct {
	idx    int
	weight int
	value  float64
}

// chooseNonCriticalLoads picks which non-critical facilities run this
// tick: a 0/1 knapsack maximizing scarcity-weighted utility under the
// power budget. Items are built in facility order and the DP prefers
// skip on equal value, so ties resolve by index deterministically.
// Zero budget or no candidates returns an empty selection.
func chooseNonCriticalLoads(s *State, powerBudget, wFood, wO2, wWater float64, tun tuning.Tuning) []int {
	scale := float64(tun.KnapsackScale)
	capacity := int(math.Max(0, powerBudget)*scale + 0.5)

	items := make([]loadItem, 0, len(s.Facilities))
	for i, f := range s.Facilities {
		if !f.Active {
			continue
		}
		sp := catalog.Get(f.Kind)
		if !sp.NeedsPower || sp.IsCriticalLoad || sp.PowerCons <= 0 {
			continue
		}

		util := 0.0
		if sp.FoodFlow > 0 {
			util += wFood * sp.FoodFlow
		}
		if sp.OxygenFlow > 0 {
			util += wO2 * sp.OxygenFlow
		}
		if sp.WaterFlow > 0 {
			util += wWater * sp.WaterFlow
		}
		// Soft penalty so power-hungry loads lose ties.
		util /= 1 + tun.PowerPenalty*sp.PowerCons

		weight := int(sp.PowerCons*scale + 0.5)
		if weight <= 0 || util <= 0 {
			continue
		}
		items = append(items, loadItem{idx: i, weight: weight, value: util})
	}

	if capacity <= 0 || len(items) == 0 {
		return nil
	}

	n := len(items)
	dp := make([][]float64, n+1)
	take := make([][]bool, n+1)
	for i := 0; i <= n; i++ {
		dp[i] = make([]float64, capacity+1)
		take[i] = make([]bool, capacity+1)
	}

	for i := 1; i <= n; i++ {
		w, v := items[i-1].weight, items[i-1].value
		for c := 0; c <= capacity; c++ {
			dp[i][c] = dp[i-1][c]
			if w <= c {
				if cand := dp[i-1][c-w] + v; cand > dp[i][c] {
					dp[i][c] = cand
					take[i][c] = true
				}
			}
		}
	}

	// Back-track the take/skip table.
	chosen := make([]int, 0, n)
	for i, c := n, capacity; i >= 1; i-- {
		if take[i][c] {
			chosen = append(chosen, items[i-1].idx)
			c -= items[i-1].weight
		}
	}
	// Reverse into facility order.
	for l, r := 0, len(chosen)-1; l < r; l, r = l+1, r-1 {
		chosen[l], chosen[r] = chosen[r], chosen[l]
	}
	return chosen
}
