package controlloop

import (
	"log/slog"
	"time"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hw"
)

// Options tunes a Loop. Durations and counts left at zero fall back to the
// configuration defaults.
type Options struct {
	Interval   time.Duration
	Timeout    time.Duration
	Refresh    time.Duration
	WakePoll   time.Duration
	WakeWindow time.Duration
	BoostPoll  time.Duration

	Tolerance  int
	StallTicks int
	Workers    int

	// UnknownAsStandby treats drives whose power state cannot be determined
	// as asleep. By default they are read like active drives.
	UnknownAsStandby bool
	// ShutdownDuty is written to every fan when the loop exits, unless
	// RestoreOnExit is set and the fan can restore its original settings.
	ShutdownDuty  hw.Duty
	RestoreOnExit bool

	Sink   events.Sink
	Logger *slog.Logger
	Now    func() time.Time
}

// OptionsFromConfig maps the [control] section onto loop options.
func OptionsFromConfig(cfg *config.Config) Options {
	c := cfg.Control
	return Options{
		Interval:         c.Poll(),
		Timeout:          c.Timeout(),
		Refresh:          c.Refresh(),
		WakePoll:         c.WakePoll(),
		WakeWindow:       c.WakeWindowSpan(),
		BoostPoll:        c.BoostPoll(),
		Tolerance:        c.FailureTolerance,
		StallTicks:       c.StallTicks,
		Workers:          c.Workers,
		UnknownAsStandby: c.UnknownPowerState == config.UnknownAsStandby,
		ShutdownDuty:     hw.Duty(c.ShutdownDuty),
		RestoreOnExit:    c.RestoreOnExit,
	}
}

func (o *Options) applyDefaults() {
	def := config.Default().Control
	if o.Interval <= 0 {
		o.Interval = def.Poll()
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout()
	}
	if o.Tolerance <= 0 {
		o.Tolerance = def.FailureTolerance
	}
	if o.StallTicks <= 0 {
		o.StallTicks = def.StallTicks
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if !o.ShutdownDuty.Valid() {
		o.ShutdownDuty = hw.MaxDuty
	}
	if o.Sink == nil {
		o.Sink = events.Discard
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
