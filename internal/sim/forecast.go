package sim

import (
	"log/slog"
)

// ForecastPoint is one tick of a look-ahead series.
type ForecastPoint struct {
	Hour      int64
	Sol       int64
	HourOfSol int

	Producers      float64
	Critical       float64
	NonCriticalRun float64
	Battery        float64
	BattIn         float64
	BattOut        float64
	Blackout       bool
}

// Forecast runs hours ticks of what-if simulation and returns the
// series. The run happens on deep copies of the state and command
// queue with event spawning disabled and logging discarded, so the
// live colony is never mutated: calling Forecast any number of times
// yields identical output.
func (e *Engine) Forecast(hours int) ([]ForecastPoint, error) {
	if hours < 0 {
		hours = 0
	}

	shadow := &Engine{
		State:       e.State.Clone(),
		Queue:       e.Queue.Clone(),
		Tuning:      e.Tuning,
		Daylight:    e.Daylight,
		Log:         slog.New(slog.DiscardHandler),
		Mode:        CheckAdvisory,
		spawnEvents: false,
		silent:      true,
	}

	out := make([]ForecastPoint, 0, hours)
	for i := 0; i < hours; i++ {
		if err := shadow.Step(); err != nil {
			// Advisory mode should never error; if it somehow does,
			// the live state is still untouched by construction.
			return nil, err
		}
		s := shadow.State
		out = append(out, ForecastPoint{
			Hour:           s.Hour,
			Sol:            e.Daylight.Sol(s.Hour),
			HourOfSol:      e.Daylight.HourOfCycle(s.Hour),
			Producers:      s.LastPower.Producers,
			Critical:       s.LastPower.CriticalDemand,
			NonCriticalRun: s.LastPower.NonCriticalDemand * s.LastPower.NonCriticalEff,
			Battery:        s.Res.PowerStored,
			BattIn:         s.LastPower.BattIn,
			BattOut:        s.LastPower.BattOut,
			Blackout:       s.LastPower.Blackout,
		})
	}
	return out, nil
}
