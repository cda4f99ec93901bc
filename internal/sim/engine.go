package sim

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mars-colony/internal/catalog"
	"github.com/talgya/mars-colony/internal/daylight"
	"github.com/talgya/mars-colony/internal/tuning"
)

// InvariantError aborts a run in fatal check mode.
type InvariantError struct {
	Hour       int64
	Violations []Violation
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant check failed at hour %d: %v", e.Hour, e.Violations)
}

// Engine drives one colony forward an hour at a time. The per-tick
// order is fixed: commands, events, dispatch, effect expiry, invariant
// check, then the hour counter advances. Later steps read values the
// earlier ones establish, so the sequence must not be reordered.
type Engine struct {
	State    *State
	Queue    *CommandQueue
	Tuning   tuning.Tuning
	Daylight daylight.Model
	Log      *slog.Logger
	Mode     CheckMode

	// Events accumulates notable occurrences for the CLI and the run
	// archive; callers drain it between steps.
	Events []Event

	spawnEvents bool
	silent      bool
}

// New builds an engine around the starter colony for a seed.
func New(seed uint64, tun tuning.Tuning, log *slog.Logger) *Engine {
	return &Engine{
		State:       NewState(seed, tun),
		Queue:       NewCommandQueue(),
		Tuning:      tun,
		Daylight:    modelFromTuning(tun),
		Log:         log,
		spawnEvents: true,
	}
}

// NewFromState wraps a loaded state in an engine.
func NewFromState(s *State, tun tuning.Tuning, log *slog.Logger) *Engine {
	return &Engine{
		State:       s,
		Queue:       NewCommandQueue(),
		Tuning:      tun,
		Daylight:    modelFromTuning(tun),
		Log:         log,
		spawnEvents: true,
	}
}

func modelFromTuning(tun tuning.Tuning) daylight.Model {
	return daylight.Model{
		CycleHours: tun.CycleHours,
		Sunrise:    tun.DaylightStart,
		Sunset:     tun.DaylightEnd,
		Twilight:   tun.TwilightHours,
	}
}

// Submit queues a player order.
func (e *Engine) Submit(c Command) {
	e.Queue.Submit(c)
}

// BuildNow applies a build order immediately, before the next step, the
// way the interactive shell issues it. Equivalent to a queued command
// at the current hour.
func (e *Engine) BuildNow(k catalog.Kind) error {
	if err := e.State.Build(k); err != nil {
		return err
	}
	e.event("build", "Construction complete: "+k.String())
	e.Log.Info("built facility", "facility", k.String(), "hour", e.State.Hour)
	return nil
}

// Step advances the simulation one hour.
func (e *Engine) Step() error {
	s := e.State

	// 1) Apply every command scheduled for this hour, in submission
	// order. A failed build is consumed and reported, not retried.
	for _, c := range e.Queue.DrainForHour(s.Hour) {
		e.apply(c)
	}

	// 2) Stochastic hazards/boons on the cycle boundary.
	e.maybeSpawnEvents()

	// 3) Power dispatch and life support.
	dispatch(s, e.Tuning, e.Daylight, e.Log)

	// 4) Effect expiry.
	e.tickEffects()

	// 5) Post-tick assertions.
	if violations := CheckInvariants(s); len(violations) > 0 {
		if e.Mode == CheckFatal {
			return &InvariantError{Hour: s.Hour, Violations: violations}
		}
		for _, v := range violations {
			e.Log.Error("invariant violated", "hour", s.Hour, "violation", v.String())
		}
	}

	s.Hour++
	return nil
}

func (e *Engine) apply(c Command) {
	switch c.Kind {
	case CommandBuild:
		if err := e.State.Build(c.Facility); err != nil {
			e.event("build", "Build failed: "+c.Facility.String()+" (insufficient resources)")
			e.Log.Warn("build failed", "facility", c.Facility.String(), "hour", e.State.Hour, "error", err)
			return
		}
		e.event("build", "Construction complete: "+c.Facility.String())
		e.Log.Info("built facility", "facility", c.Facility.String(), "hour", e.State.Hour)
	default:
		e.Log.Warn("unknown command kind", "kind", c.Kind, "hour", e.State.Hour)
	}
}

// Advance runs n hours.
func (e *Engine) Advance(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

// DrainEvents returns and clears the accumulated event log.
func (e *Engine) DrainEvents() []Event {
	out := e.Events
	e.Events = nil
	return out
}
