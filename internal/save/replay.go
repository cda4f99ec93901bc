package save

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/sim"
)

const replayMagic = "MARS_REPLAY"

// Recorder streams submitted commands to an append-only log, one line
// per command, flushed as written so a crashed run still leaves a
// usable file.
type Recorder struct {
	f *os.File
	w *bufio.Writer
}

// NewRecorder opens path and writes the replay header.
func NewRecorder(path string, seed uint64, startHour int64) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s 1\n", replayMagic)
	fmt.Fprintf(w, "seed %d\n", seed)
	fmt.Fprintf(w, "start_hour %d\n", startHour)
	fmt.Fprintf(w, "endheader\n")
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("record %s: %w", path, err)
	}
	return &Recorder{f: f, w: w}, nil
}

// Record appends one command and flushes it to disk.
func (r *Recorder) Record(c sim.Command) error {
	fmt.Fprintf(r.w, "h %d build %d\n", c.Hour, int(c.Facility))
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

// Close writes the end marker and closes the file.
func (r *Recorder) Close() error {
	fmt.Fprintf(r.w, "end\n")
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return fmt.Errorf("record: %w", err)
	}
	return r.f.Close()
}

// Replay is a parsed command log.
type Replay struct {
	Seed      uint64
	StartHour int64
	Commands  []sim.Command
}

// ReadReplay parses a recorded command log. Both command spellings are
// accepted: "h <hour> build <kind>" and "build <hour> <kind>". A
// missing end marker is tolerated so a log from an interrupted run
// still replays.
func ReadReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	defer f.Close()

	rp, err := decodeReplay(f)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	return rp, nil
}

func decodeReplay(r io.Reader) (*Replay, error) {
	d := &decoder{sc: bufio.NewScanner(r)}

	header, err := d.next()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	if len(header) != 2 || header[0] != replayMagic || header[1] != "1" {
		return nil, d.errf("bad header %q", header)
	}

	rp := &Replay{}
	inHeader := true
	for {
		fields, err := d.next()
		if err == io.EOF {
			if inHeader {
				return nil, fmt.Errorf("truncated replay header")
			}
			return rp, nil
		}
		if err != nil {
			return nil, err
		}

		key := fields[0]
		if inHeader {
			switch key {
			case "endheader":
				inHeader = false
			case "seed":
				if len(fields) != 2 {
					return nil, d.errf("seed wants 1 field")
				}
				if rp.Seed, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
					return nil, d.errf("seed: %v", err)
				}
			case "start_hour":
				if len(fields) != 2 {
					return nil, d.errf("start_hour wants 1 field")
				}
				if rp.StartHour, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
					return nil, d.errf("start_hour: %v", err)
				}
			default:
				return nil, d.errf("unexpected header key %q", key)
			}
			continue
		}

		switch key {
		case "end":
			return rp, nil
		case "h":
			// h <hour> build <kindIndex>
			if len(fields) != 4 || fields[2] != "build" {
				return nil, d.errf("bad command line %q", fields)
			}
			c, err := parseBuild(fields[1], fields[3])
			if err != nil {
				return nil, d.errf("%v", err)
			}
			rp.Commands = append(rp.Commands, c)
		case "build":
			// build <hour> <kindIndex>
			if len(fields) != 3 {
				return nil, d.errf("bad command line %q", fields)
			}
			c, err := parseBuild(fields[1], fields[2])
			if err != nil {
				return nil, d.errf("%v", err)
			}
			rp.Commands = append(rp.Commands, c)
		default:
			return nil, d.errf("unknown command %q", key)
		}
	}
}

func parseBuild(hourField, kindField string) (sim.Command, error) {
	hour, err := strconv.ParseInt(hourField, 10, 64)
	if err != nil {
		return sim.Command{}, fmt.Errorf("command hour: %w", err)
	}
	idx, err := strconv.Atoi(kindField)
	if err != nil {
		return sim.Command{}, fmt.Errorf("command kind: %w", err)
	}
	kind, err := catalog.FromIndex(idx)
	if err != nil {
		return sim.Command{}, err
	}
	return sim.Command{Hour: hour, Kind: sim.CommandBuild, Facility: kind}, nil
}
