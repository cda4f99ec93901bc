// Package save implements the persisted colony formats: the versioned
// line-oriented save file and the append-only command replay log. Both
// are plain text so a recorded run can be inspected and repaired by
// hand.
package save

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/rng"
	"github.com/talgya/mars-colony/internal/sim"
	"github.com/talgya/mars-colony/internal/site"
	"github.com/talgya/mars-colony/internal/tuning"
)

const (
	saveMagic = "MARS_SAVE"

	// saveVersion is what Write emits. Version 1 files lack the
	// battery and site lines; the loader fills those from tuning.
	saveVersion = 2
)

// gzipMagic is the first two bytes of any gzip stream.
var gzipMagic = [2]byte{0x1f, 0x8b}

// Write stores the state at path. A path ending in .gz is compressed.
func Write(path string, s *sim.State) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save %s: %w", path, cerr)
		}
	}()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	bw := bufio.NewWriter(w)
	if err := encode(bw, s); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}
	return nil
}

// Read loads a state from path, decompressing transparently when the
// file is gzip regardless of its name. On any error the returned state
// is nil, so a caller's live state is never half-overwritten. Battery
// parameters and the site factor absent from version 1 files come from
// tun.
func Read(path string, tun tuning.Tuning) (*sim.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if head, err := br.Peek(2); err == nil && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	s, err := decode(r, tun)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// ffmt renders a float with enough digits to round-trip exactly.
func ffmt(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encode(w *bufio.Writer, s *sim.State) error {
	fmt.Fprintf(w, "%s %d\n", saveMagic, saveVersion)
	fmt.Fprintf(w, "hour %d\n", s.Hour)
	fmt.Fprintf(w, "population %d\n", s.Population)
	fmt.Fprintf(w, "housing %d\n", s.HousingCapacity)
	fmt.Fprintf(w, "morale %s\n", ffmt(s.Morale))
	fmt.Fprintf(w, "res %s %s %s %s %s %d %d\n",
		ffmt(s.Res.PowerStored), ffmt(s.Res.BatteryCapacity),
		ffmt(s.Res.Water), ffmt(s.Res.Oxygen), ffmt(s.Res.Food),
		s.Res.Metals, s.Res.Credits)

	fmt.Fprintf(w, "buildings %d\n", len(s.Facilities))
	for _, b := range s.Facilities {
		fmt.Fprintf(w, "b %d %d\n", int(b.Kind), boolInt(b.Active))
	}

	fmt.Fprintf(w, "effects %d\n", len(s.Effects))
	for _, e := range s.Effects {
		fmt.Fprintf(w, "e %d %d %s\n", int(e.Kind), e.HoursRemaining, ffmt(e.SolarMultiplier))
	}

	lp := s.LastPower
	fmt.Fprintf(w, "lastpower %s %s %s %s %d\n",
		ffmt(lp.Producers), ffmt(lp.CriticalDemand),
		ffmt(lp.NonCriticalDemand), ffmt(lp.NonCriticalEff),
		boolInt(lp.Blackout))

	fmt.Fprintf(w, "battery %s %s %s\n", ffmt(s.CRate), ffmt(s.EtaIn), ffmt(s.EtaOut))
	fmt.Fprintf(w, "site %s\n", ffmt(s.SiteFactor))

	fmt.Fprintf(w, "rngseed %d\n", s.RNG.Seed())
	fmt.Fprintf(w, "rngstate %s\n", s.RNG.MarshalState())
	_, err := fmt.Fprintf(w, "end\n")
	return err
}

// decoder walks the save line by line. Unknown keys are skipped whole,
// which is the forward-compatibility contract newer writers rely on.
type decoder struct {
	sc   *bufio.Scanner
	line int
}

func (d *decoder) next() ([]string, error) {
	for d.sc.Scan() {
		d.line++
		fields := strings.Fields(d.sc.Text())
		if len(fields) == 0 {
			continue
		}
		return fields, nil
	}
	if err := d.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (d *decoder) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", d.line, fmt.Sprintf(format, args...))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func decode(r io.Reader, tun tuning.Tuning) (*sim.State, error) {
	d := &decoder{sc: bufio.NewScanner(r)}
	d.sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	header, err := d.next()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	if len(header) != 2 || header[0] != saveMagic {
		return nil, d.errf("bad header %q", strings.Join(header, " "))
	}
	version, err := strconv.Atoi(header[1])
	if err != nil || version < 1 || version > saveVersion {
		return nil, d.errf("unsupported version %q", header[1])
	}

	s := &sim.State{
		CRate:      tun.DefaultCRate,
		EtaIn:      tun.DefaultEtaIn,
		EtaOut:     tun.DefaultEtaOut,
		SiteFactor: 1,
	}
	var (
		seed     uint64
		rngState string
		sawSite  bool
		ended    bool
	)

	for !ended {
		fields, err := d.next()
		if err == io.EOF {
			return nil, fmt.Errorf("truncated save: no end marker")
		}
		if err != nil {
			return nil, err
		}

		key, args := fields[0], fields[1:]
		switch key {
		case "end":
			ended = true

		case "hour":
			if len(args) != 1 {
				return nil, d.errf("hour wants 1 field")
			}
			if s.Hour, err = strconv.ParseInt(args[0], 10, 64); err != nil {
				return nil, d.errf("hour: %v", err)
			}

		case "population":
			if len(args) != 1 {
				return nil, d.errf("population wants 1 field")
			}
			if s.Population, err = strconv.Atoi(args[0]); err != nil {
				return nil, d.errf("population: %v", err)
			}

		case "housing":
			if len(args) != 1 {
				return nil, d.errf("housing wants 1 field")
			}
			if s.HousingCapacity, err = strconv.Atoi(args[0]); err != nil {
				return nil, d.errf("housing: %v", err)
			}

		case "morale":
			if len(args) != 1 {
				return nil, d.errf("morale wants 1 field")
			}
			if s.Morale, err = parseFloat(args[0]); err != nil {
				return nil, d.errf("morale: %v", err)
			}

		case "res":
			if len(args) != 7 {
				return nil, d.errf("res wants 7 fields, got %d", len(args))
			}
			floats := make([]float64, 5)
			for i := 0; i < 5; i++ {
				if floats[i], err = parseFloat(args[i]); err != nil {
					return nil, d.errf("res field %d: %v", i, err)
				}
			}
			s.Res.PowerStored = floats[0]
			s.Res.BatteryCapacity = floats[1]
			s.Res.Water = floats[2]
			s.Res.Oxygen = floats[3]
			s.Res.Food = floats[4]
			if s.Res.Metals, err = strconv.Atoi(args[5]); err != nil {
				return nil, d.errf("res metals: %v", err)
			}
			if s.Res.Credits, err = strconv.Atoi(args[6]); err != nil {
				return nil, d.errf("res credits: %v", err)
			}

		case "buildings":
			n, err := countArg(args)
			if err != nil {
				return nil, d.errf("buildings: %v", err)
			}
			if n > 0 {
				s.Facilities = make([]sim.Facility, 0, n)
			}
			for i := 0; i < n; i++ {
				bf, err := d.next()
				if err != nil || len(bf) != 3 || bf[0] != "b" {
					return nil, d.errf("bad building entry %d", i)
				}
				idx, err := strconv.Atoi(bf[1])
				if err != nil {
					return nil, d.errf("building %d kind: %v", i, err)
				}
				kind, err := catalog.FromIndex(idx)
				if err != nil {
					return nil, d.errf("building %d: %v", i, err)
				}
				s.Facilities = append(s.Facilities, sim.Facility{Kind: kind, Active: bf[2] != "0"})
			}

		case "effects":
			n, err := countArg(args)
			if err != nil {
				return nil, d.errf("effects: %v", err)
			}
			if n > 0 {
				s.Effects = make([]sim.ActiveEffect, 0, n)
			}
			for i := 0; i < n; i++ {
				ef, err := d.next()
				if err != nil || len(ef) != 4 || ef[0] != "e" {
					return nil, d.errf("bad effect entry %d", i)
				}
				typ, err := strconv.Atoi(ef[1])
				if err != nil || typ != int(sim.EffectDustStorm) {
					return nil, d.errf("effect %d: unknown type %q", i, ef[1])
				}
				hours, err := strconv.Atoi(ef[2])
				if err != nil {
					return nil, d.errf("effect %d hours: %v", i, err)
				}
				mult, err := parseFloat(ef[3])
				if err != nil {
					return nil, d.errf("effect %d multiplier: %v", i, err)
				}
				s.Effects = append(s.Effects, sim.ActiveEffect{
					Kind:            sim.EffectDustStorm,
					HoursRemaining:  hours,
					SolarMultiplier: mult,
				})
			}

		case "lastpower":
			if len(args) != 5 {
				return nil, d.errf("lastpower wants 5 fields, got %d", len(args))
			}
			floats := make([]float64, 4)
			for i := 0; i < 4; i++ {
				if floats[i], err = parseFloat(args[i]); err != nil {
					return nil, d.errf("lastpower field %d: %v", i, err)
				}
			}
			s.LastPower.Producers = floats[0]
			s.LastPower.CriticalDemand = floats[1]
			s.LastPower.NonCriticalDemand = floats[2]
			s.LastPower.NonCriticalEff = floats[3]
			s.LastPower.Blackout = args[4] != "0"

		case "battery":
			if len(args) != 3 {
				return nil, d.errf("battery wants 3 fields")
			}
			if s.CRate, err = parseFloat(args[0]); err != nil {
				return nil, d.errf("battery cRate: %v", err)
			}
			if s.EtaIn, err = parseFloat(args[1]); err != nil {
				return nil, d.errf("battery etaIn: %v", err)
			}
			if s.EtaOut, err = parseFloat(args[2]); err != nil {
				return nil, d.errf("battery etaOut: %v", err)
			}

		case "site":
			if len(args) != 1 {
				return nil, d.errf("site wants 1 field")
			}
			if s.SiteFactor, err = parseFloat(args[0]); err != nil {
				return nil, d.errf("site: %v", err)
			}
			sawSite = true

		case "rngseed":
			if len(args) != 1 {
				return nil, d.errf("rngseed wants 1 field")
			}
			if seed, err = strconv.ParseUint(args[0], 10, 64); err != nil {
				return nil, d.errf("rngseed: %v", err)
			}

		case "rngstate":
			rngState = strings.Join(args, " ")

		default:
			// Unknown key from a newer writer; the whole line is
			// already consumed.
		}
	}

	s.RNG = rng.New(seed)
	if rngState != "" {
		if err := s.RNG.UnmarshalState(rngState); err != nil {
			return nil, fmt.Errorf("rngstate: %w", err)
		}
	}
	if !sawSite && tun.SiteSurvey {
		// Version 1 files predate the site survey; re-derive it from
		// the seed so old saves keep their terrain.
		s.SiteFactor = site.Factor(seed)
	}
	return s, nil
}

func countArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("want 1 field, got %d", len(args))
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
