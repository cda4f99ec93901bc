// Command marssim runs the Mars colony resource simulator: advance the
// colony, inspect power forecasts, schedule construction, verify
// determinism and archive completed runs.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/mars-colony/internal/archive"
	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/save"
	"github.com/talgya/mars-colony/internal/selftest"
	"github.com/talgya/mars-colony/internal/sim"
	"github.com/talgya/mars-colony/internal/tuning"
)

const defaultSeed = 42

var (
	flagSeed    uint64
	flagTuning  string
	flagLoad    string
	flagSave    string
	flagRecord  string
	flagReplay  string
	flagArchive string
	flagStrict  bool
	flagQuiet   bool

	flagHours    int
	flagHeadless bool
	flagBuilds   []string
	flagAt       int64
)

func main() {
	root := &cobra.Command{
		Use:   "marssim",
		Short: "Deterministic Mars colony resource simulator",
		Long: `An hourly-tick simulation of a Mars colony: solar and RTG power,
battery physics, life support, dust storms and construction. Runs are
fully deterministic for a seed, so they can be recorded, replayed and
checksummed across machines.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.Uint64Var(&flagSeed, "seed", 0, "Simulation seed (0 = default or from save/replay)")
	pf.StringVar(&flagTuning, "tuning", "", "Path to a yaml tuning overlay")
	pf.StringVar(&flagLoad, "load", "", "Load colony state from a save file")
	pf.StringVar(&flagSave, "save", "", "Write colony state to a save file on exit")
	pf.StringVar(&flagRecord, "record", "", "Record submitted commands to a replay log")
	pf.StringVar(&flagReplay, "replay", "", "Replay commands from a recorded log")
	pf.StringVar(&flagArchive, "archive", "", "Archive the run into a SQLite database")
	pf.BoolVar(&flagStrict, "strict", false, "Abort on the first invariant violation")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress the engine log")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Advance the colony a number of hours",
		RunE:  runRun,
	}
	runCmd.Flags().IntVar(&flagHours, "hours", 24, "Hours to simulate")
	runCmd.Flags().BoolVar(&flagHeadless, "headless", false, "No status output, log only")
	runCmd.Flags().StringArrayVar(&flagBuilds, "build", nil,
		`Schedule construction, "<hour>:<facility>" (repeatable)`)

	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print a power forecast without advancing the colony",
		RunE:  runForecast,
	}
	forecastCmd.Flags().IntVar(&flagHours, "hours", 24, "Hours to look ahead")

	buildCmd := &cobra.Command{
		Use:   "build <facility>",
		Short: "Build a facility now or schedule it for a later hour",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
	buildCmd.Flags().Int64Var(&flagAt, "at", -1, "Hour to build at (-1 = immediately)")

	hashCmd := &cobra.Command{
		Use:   "hash",
		Short: "Run N hours and print the deterministic state checksum",
		RunE:  runHash,
	}
	hashCmd.Flags().IntVar(&flagHours, "hours", 24, "Hours to simulate")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the colony status",
		RunE:  runStatus,
	}

	selftestCmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the built-in verification suite",
		Run: func(cmd *cobra.Command, args []string) {
			if f := selftest.Run(newLogger()); f != nil {
				color.Red("FAIL: %v", f)
				os.Exit(f.Class)
			}
			color.Green("selftest passed")
		},
	}

	root.AddCommand(runCmd, forecastCmd, buildCmd, hashCmd, statusCmd, selftestCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	if flagQuiet {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func loadTuning() (tuning.Tuning, error) {
	if flagTuning == "" {
		return tuning.Default(), nil
	}
	return tuning.Load(flagTuning)
}

// setup builds the engine from the seed/load/replay flags. Seed
// precedence: an explicit --seed wins, then a loaded save's recorded
// stream, then the replay header, then the default.
func setup(log *slog.Logger) (*sim.Engine, error) {
	tun, err := loadTuning()
	if err != nil {
		return nil, err
	}

	var replay *save.Replay
	if flagReplay != "" {
		if replay, err = save.ReadReplay(flagReplay); err != nil {
			return nil, err
		}
	}

	var e *sim.Engine
	switch {
	case flagLoad != "":
		st, err := save.Read(flagLoad, tun)
		if err != nil {
			return nil, err
		}
		e = sim.NewFromState(st, tun, log)
		if flagSeed != 0 {
			st.Reseed(flagSeed, tun)
		}
	default:
		seed := uint64(defaultSeed)
		if replay != nil {
			seed = replay.Seed
		}
		if flagSeed != 0 {
			seed = flagSeed
		}
		e = sim.New(seed, tun, log)
		if replay != nil {
			e.State.Hour = replay.StartHour
		}
	}

	if replay != nil {
		for _, c := range replay.Commands {
			e.Submit(c)
		}
		log.Info("replay loaded", "path", flagReplay, "commands", len(replay.Commands))
	}
	if flagStrict {
		e.Mode = sim.CheckFatal
	}
	return e, nil
}

// parseBuildSpec parses "<hour>:<facility>".
func parseBuildSpec(spec string) (sim.Command, error) {
	hourStr, name, ok := strings.Cut(spec, ":")
	if !ok {
		return sim.Command{}, fmt.Errorf("build spec %q: want <hour>:<facility>", spec)
	}
	hour, err := strconv.ParseInt(hourStr, 10, 64)
	if err != nil {
		return sim.Command{}, fmt.Errorf("build spec %q: %w", spec, err)
	}
	kind, err := catalog.FromName(name)
	if err != nil {
		return sim.Command{}, fmt.Errorf("build spec %q: %w", spec, err)
	}
	return sim.Command{Hour: hour, Kind: sim.CommandBuild, Facility: kind}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()
	e, err := setup(log)
	if err != nil {
		return err
	}

	var rec *save.Recorder
	if flagRecord != "" {
		rec, err = save.NewRecorder(flagRecord, e.State.RNG.Seed(), e.State.Hour)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	for _, spec := range flagBuilds {
		c, err := parseBuildSpec(spec)
		if err != nil {
			return err
		}
		e.Submit(c)
		if rec != nil {
			if err := rec.Record(c); err != nil {
				return err
			}
		}
	}

	var run *archive.Run
	if flagArchive != "" {
		db, err := archive.Open(flagArchive)
		if err != nil {
			return err
		}
		defer db.Close()
		if run, err = db.BeginRun(e.State.RNG.Seed()); err != nil {
			return err
		}
	}

	for i := 0; i < flagHours; i++ {
		if err := e.Step(); err != nil {
			var ie *sim.InvariantError
			if errors.As(err, &ie) {
				color.Red("run aborted: %v", ie)
			}
			return err
		}
		events := e.DrainEvents()
		if !flagHeadless {
			for _, ev := range events {
				printEvent(ev)
			}
		}
		if run != nil {
			if err := run.RecordTick(e.State, events); err != nil {
				return err
			}
		}
	}

	if run != nil {
		if err := run.Finish(e.State); err != nil {
			return err
		}
		log.Info("run archived", "id", run.ID, "db", flagArchive)
	}
	if !flagHeadless {
		printStatus(e)
	}
	if flagSave != "" {
		if err := save.Write(flagSave, e.State); err != nil {
			return err
		}
		log.Info("state saved", "path", flagSave)
	}
	return nil
}

func runForecast(cmd *cobra.Command, args []string) error {
	e, err := setup(newLogger())
	if err != nil {
		return err
	}
	points, err := e.Forecast(flagHours)
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Hour", "Sol", "H", "Produce", "Critical", "Non-crit", "Battery", "In", "Out", "Status"}),
	)
	for _, p := range points {
		status := "ok"
		if p.Blackout {
			status = "BLACKOUT"
		}
		_ = table.Append([]string{
			strconv.FormatInt(p.Hour, 10),
			strconv.FormatInt(p.Sol, 10),
			strconv.Itoa(p.HourOfSol),
			fmt.Sprintf("%.1f", p.Producers),
			fmt.Sprintf("%.1f", p.Critical),
			fmt.Sprintf("%.1f", p.NonCriticalRun),
			fmt.Sprintf("%.1f", p.Battery),
			fmt.Sprintf("%.1f", p.BattIn),
			fmt.Sprintf("%.1f", p.BattOut),
			status,
		})
	}
	return table.Render()
}

func runBuild(cmd *cobra.Command, args []string) error {
	if flagLoad == "" || flagSave == "" {
		return fmt.Errorf("build requires --load and --save")
	}
	log := newLogger()
	e, err := setup(log)
	if err != nil {
		return err
	}
	kind, err := catalog.FromName(args[0])
	if err != nil {
		return err
	}

	if flagAt >= 0 {
		c := sim.Command{Hour: flagAt, Kind: sim.CommandBuild, Facility: kind}
		e.Submit(c)
		if flagRecord != "" {
			rec, err := save.NewRecorder(flagRecord, e.State.RNG.Seed(), e.State.Hour)
			if err != nil {
				return err
			}
			if err := rec.Record(c); err != nil {
				rec.Close()
				return err
			}
			if err := rec.Close(); err != nil {
				return err
			}
		}
		log.Info("build scheduled", "facility", kind.String(), "hour", flagAt)
	} else if err := e.BuildNow(kind); err != nil {
		return err
	}

	return save.Write(flagSave, e.State)
}

func runHash(cmd *cobra.Command, args []string) error {
	flagQuiet = true
	e, err := setup(newLogger())
	if err != nil {
		return err
	}
	if err := e.Advance(flagHours); err != nil {
		return err
	}
	fmt.Println(e.State.ChecksumHex())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := setup(newLogger())
	if err != nil {
		return err
	}
	printStatus(e)
	return nil
}

func printEvent(ev sim.Event) {
	switch ev.Category {
	case "hazard":
		color.Red("[%5d] %s", ev.Hour, ev.Message)
	case "boon":
		color.Green("[%5d] %s", ev.Hour, ev.Message)
	case "weather":
		color.Yellow("[%5d] %s", ev.Hour, ev.Message)
	default:
		fmt.Printf("[%5d] %s\n", ev.Hour, ev.Message)
	}
}

func printStatus(e *sim.Engine) {
	s := e.State
	title := color.New(color.FgCyan, color.Bold)
	title.Printf("\nSol %d, hour %d\n", e.Daylight.Sol(s.Hour), e.Daylight.HourOfCycle(s.Hour))

	fmt.Printf("Population %d/%d housed, morale %.0f%%\n",
		s.Population, s.HousingCapacity, s.Morale*100)
	fmt.Printf("Battery %s / %s kWh (C-rate %.2f)\n",
		humanize.CommafWithDigits(s.Res.PowerStored, 1),
		humanize.CommafWithDigits(s.Res.BatteryCapacity, 1), s.CRate)
	fmt.Printf("Stocks: water %s, oxygen %s, food %s, metals %s, credits %s\n",
		humanize.CommafWithDigits(s.Res.Water, 1),
		humanize.CommafWithDigits(s.Res.Oxygen, 1),
		humanize.CommafWithDigits(s.Res.Food, 1),
		humanize.Comma(int64(s.Res.Metals)),
		humanize.Comma(int64(s.Res.Credits)))

	lp := s.LastPower
	if lp.Blackout {
		color.Red("BLACKOUT last hour: %.1f kW critical vs %.1f kW available",
			lp.CriticalDemand, lp.Producers+lp.BattOut)
	} else {
		fmt.Printf("Last hour: %.1f kW produced, %.1f kW critical, non-critical at %.0f%%\n",
			lp.Producers, lp.CriticalDemand, lp.NonCriticalEff*100)
	}

	for _, eff := range s.Effects {
		color.Yellow("Active: %s, %d h remaining", eff.Description(), eff.HoursRemaining)
	}

	counts := map[catalog.Kind]int{}
	for _, f := range s.Facilities {
		counts[f.Kind]++
	}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Facility", "Count"}),
	)
	for _, k := range catalog.Kinds() {
		if counts[k] == 0 {
			continue
		}
		_ = table.Append([]string{k.String(), strconv.Itoa(counts[k])})
	}
	_ = table.Render()
	fmt.Printf("Checksum %s\n", s.ChecksumHex())
}
