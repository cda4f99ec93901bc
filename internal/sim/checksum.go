package sim

import (
	"fmt"
	"math"
)

// FNV-1a 64 over the canonical little-endian byte encoding of the
// state's numeric fields. The byte order is pinned so the same state
// hashes identically across builds and platforms.
const (
	fnvOffset = 0xcbf29ce484222325
	fnvPrime  = 1099511628211
)

func fnvByte(h uint64, b byte) uint64 {
	return (h ^ uint64(b)) * fnvPrime
}

func fnvU32(h uint64, v uint32) uint64 {
	for i := 0; i < 4; i++ {
		h = fnvByte(h, byte(v>>(8*i)))
	}
	return h
}

func fnvU64(h uint64, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h = fnvByte(h, byte(v>>(8*i)))
	}
	return h
}

func fnvF64(h uint64, v float64) uint64 {
	return fnvU64(h, math.Float64bits(v))
}

// Checksum folds the state's numeric fields into a 64-bit value.
// Diagnostic fields (the power report) and the RNG position are
// excluded; the save round-trip covers those.
func (s *State) Checksum() uint64 {
	h := uint64(fnvOffset)
	h = fnvU64(h, uint64(s.Hour))
	h = fnvU32(h, uint32(s.Population))
	h = fnvU32(h, uint32(s.HousingCapacity))
	h = fnvF64(h, s.Morale)

	h = fnvF64(h, s.Res.PowerStored)
	h = fnvF64(h, s.Res.BatteryCapacity)
	h = fnvF64(h, s.Res.Water)
	h = fnvF64(h, s.Res.Oxygen)
	h = fnvF64(h, s.Res.Food)
	h = fnvU32(h, uint32(s.Res.Metals))
	h = fnvU32(h, uint32(s.Res.Credits))

	h = fnvF64(h, s.CRate)
	h = fnvF64(h, s.EtaIn)
	h = fnvF64(h, s.EtaOut)
	h = fnvF64(h, s.SiteFactor)

	h = fnvU32(h, uint32(len(s.Facilities)))
	for _, f := range s.Facilities {
		active := uint32(0)
		if f.Active {
			active = 1
		}
		h = fnvU32(h, uint32(f.Kind)<<1|active)
	}

	h = fnvU32(h, uint32(len(s.Effects)))
	for _, e := range s.Effects {
		h = fnvU32(h, uint32(e.Kind))
		h = fnvU32(h, uint32(e.HoursRemaining))
		h = fnvF64(h, e.SolarMultiplier)
	}

	return h
}

// ChecksumHex is the checksum as a fixed-width uppercase hex string,
// the form the CLI prints and CI pins.
func (s *State) ChecksumHex() string {
	return fmt.Sprintf("%016X", s.Checksum())
}
