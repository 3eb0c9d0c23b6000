package controlloop

import (
	"context"
	"errors"
	"time"

	"hddfancontrol/internal/control"
	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/logging"
)

// Tick runs one control cycle. It returns ctx.Err() when canceled part way;
// device failures are recorded and reported as events, never returned.
func (l *Loop) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := l.opts.Now()
	l.tick++

	l.probeDrives(ctx, started)
	if err := ctx.Err(); err != nil {
		return err
	}
	observations := l.readSensors(ctx, started)
	if err := ctx.Err(); err != nil {
		return err
	}
	l.decideGroups(observations, started)
	l.applyFans(ctx, started)
	if err := ctx.Err(); err != nil {
		return err
	}
	l.checkRPM(ctx)
	l.updateState()
	l.publish(started)

	summary := events.Event{Kind: events.KindTickCompleted, Duration: l.opts.Now().Sub(started)}
	for _, f := range l.fans {
		summary.Duty = max(summary.Duty, f.target)
	}
	for _, g := range l.groups {
		if g.hasTemp && (!summary.HasTemp || g.temp > summary.Temp) {
			summary.Temp, summary.HasTemp = g.temp, true
		}
	}
	l.emit(summary)
	return nil
}

func (l *Loop) probeDrives(ctx context.Context, now time.Time) {
	results := fanOut(ctx, l.opts.Workers, l.opts.Timeout, len(l.drives), func(i int) func(context.Context) (hw.PowerState, error) {
		d := l.drives[i]
		return exclusive(d.gate, d.spec.ID, d.spec.Prober.ProbePower)
	})
	if ctx.Err() != nil {
		return
	}
	for i, d := range l.drives {
		r := results[i]
		reported := r.value
		if r.err != nil {
			reported = hw.PowerUnknown
			if !d.probeFailing {
				d.probeFailing = true
				l.emit(events.Event{Kind: events.KindProbeFailed, Unit: d.spec.ID, Err: r.err})
			}
		} else {
			d.probeFailing = false
		}
		d.reported = reported
		switch {
		case reported != hw.PowerUnknown:
			l.setDrivePower(d, reported, now)
		case l.opts.UnknownAsStandby:
			l.setDrivePower(d, hw.PowerStandby, now)
		default:
			// treated as active; the sensor read settles it
		}
	}
}

// readable reports whether the sensors of d are read this tick. A drive whose
// probe cannot tell is read unless policy says to assume standby; the read
// itself then reveals whether it sleeps.
func (l *Loop) readable(d *driveState) bool {
	if d == nil || !d.asleep() {
		return true
	}
	return d.reported == hw.PowerUnknown && !l.opts.UnknownAsStandby
}

func (l *Loop) setDrivePower(d *driveState, power hw.PowerState, now time.Time) {
	if d.power == power {
		return
	}
	prev := d.power
	d.power = power
	switch {
	case power == hw.PowerStandby:
		d.standbySince = now
		l.emit(events.Event{Kind: events.KindDriveStandby, Unit: d.spec.ID, State: power.String()})
	case prev == hw.PowerStandby:
		var asleep time.Duration
		if !d.standbySince.IsZero() {
			asleep = now.Sub(d.standbySince)
		}
		d.standbySince = time.Time{}
		if l.opts.WakeWindow > 0 {
			l.wakeUntil = now.Add(l.opts.WakeWindow)
		}
		l.emit(events.Event{Kind: events.KindDriveActive, Unit: d.spec.ID, State: power.String(), Duration: asleep})
	}
}

func (l *Loop) readSensors(ctx context.Context, now time.Time) map[string]control.Observation {
	results := fanOut(ctx, l.opts.Workers, l.opts.Timeout, len(l.sensors), func(i int) func(context.Context) (hw.Temp, error) {
		s := l.sensors[i]
		if !l.readable(l.driveByID[s.spec.Drive]) {
			return nil
		}
		return exclusive(s.gate, s.spec.ID, s.spec.Reader.ReadTemp)
	})
	if ctx.Err() != nil {
		return nil
	}
	observations := make(map[string]control.Observation, len(l.sensors))
	for i, s := range l.sensors {
		r := results[i]
		obs := control.Observation{SensorID: s.spec.ID}
		switch {
		case !r.ran:
			obs.Status = control.Standby
		case r.err == nil:
			obs.Status = control.Fresh
			obs.Temp = r.value
			s.last, s.hasLast, s.lastRead = r.value, true, now
			l.sensorSucceeded(s)
			if d := l.driveByID[s.spec.Drive]; d != nil {
				l.setDrivePower(d, hw.PowerActive, now)
			}
		case errors.Is(r.err, hw.ErrDeviceAsleep):
			obs.Status = control.Standby
			if d := l.driveByID[s.spec.Drive]; d != nil {
				l.setDrivePower(d, hw.PowerStandby, now)
			}
		default:
			obs.Status = control.Failed
			l.sensorFailed(s, r.err)
		}
		obs.Last, obs.HasLast = s.last, s.hasLast
		obs.Degraded = s.degraded
		observations[s.spec.ID] = obs
	}
	return observations
}

func (l *Loop) sensorSucceeded(s *sensorState) {
	if s.failures == 0 {
		return
	}
	l.emit(events.Event{Kind: events.KindSensorRecovered, Unit: s.spec.ID, Failures: s.failures, Temp: s.last, HasTemp: true})
	if s.degraded {
		l.emit(events.Event{Kind: events.KindUnitRecovered, Unit: s.spec.ID})
	}
	s.failures = 0
	s.degraded = false
}

func (l *Loop) sensorFailed(s *sensorState, err error) {
	s.failures++
	l.emit(events.Event{Kind: events.KindSensorFailed, Unit: s.spec.ID, Failures: s.failures, Err: err})
	if s.failures == l.opts.Tolerance {
		s.degraded = true
		l.emit(events.Event{Kind: events.KindUnitDegraded, Unit: s.spec.ID, Duty: hw.MaxDuty, Failures: s.failures, Err: err})
	}
}

func (l *Loop) decideGroups(observations map[string]control.Observation, now time.Time) {
	for _, g := range l.groups {
		in := control.Input{
			Curve:     g.spec.Curve,
			Deadband:  g.spec.Deadband,
			Tolerance: l.opts.Tolerance,
		}
		for _, id := range g.spec.Sensors {
			in.Observations = append(in.Observations, observations[id])
		}
		for _, id := range g.spec.Fans {
			if l.fanByID[id].degraded {
				in.ActuatorDegraded = true
			}
		}
		prev := g.state.Duty
		d := control.Decide(in, g.state)
		g.state = d.Next
		g.reason = d.Reason
		g.temp, g.hasTemp = d.Temp, d.HasTemp
		if d.Duty != prev || g.lastChange.IsZero() {
			g.lastChange = now
			l.emit(events.Event{
				Kind:     events.KindDutyChanged,
				Unit:     g.spec.ID,
				Reason:   string(d.Reason),
				Duty:     d.Duty,
				PrevDuty: prev,
				Temp:     d.Temp,
				HasTemp:  d.HasTemp,
			})
		}
	}
	// a fan serving several groups runs at the highest of their duties
	for _, f := range l.fans {
		f.target = 0
	}
	for _, g := range l.groups {
		for _, id := range g.spec.Fans {
			f := l.fanByID[id]
			f.target = max(f.target, g.state.Duty)
		}
	}
}

func (l *Loop) needsWrite(f *fanState, now time.Time) bool {
	if !f.hasApplied || f.target != f.applied {
		return true
	}
	return l.opts.Refresh > 0 && now.Sub(f.lastWrite) >= l.opts.Refresh
}

func (l *Loop) applyFans(ctx context.Context, now time.Time) {
	results := fanOut(ctx, l.opts.Workers, l.opts.Timeout, len(l.fans), func(i int) func(context.Context) (hw.WriteResult, error) {
		f := l.fans[i]
		if !l.needsWrite(f, now) {
			return nil
		}
		target := f.target
		return exclusive(f.gate, f.spec.ID, func(ctx context.Context) (hw.WriteResult, error) {
			return f.spec.Writer.WriteDuty(ctx, target)
		})
	})
	if ctx.Err() != nil {
		return
	}
	for i, f := range l.fans {
		r := results[i]
		if !r.ran {
			f.boosted = false
			continue
		}
		if r.err != nil {
			f.boosted = false
			f.hasApplied = false
			l.fanFailed(f, r.err)
			continue
		}
		l.fanSucceeded(f)
		f.lastWrite = now
		f.boosted = r.value.Boosted
		if r.value.Boosted {
			// the start value went out instead of the target; rewrite next tick
			f.hasApplied = false
			l.logger.Debug("fan boosted to start value",
				logging.Unit(f.spec.ID),
				logging.Int("raw", r.value.Raw),
				logging.Int("duty", int(f.target)),
			)
			continue
		}
		f.applied, f.hasApplied = f.target, true
	}
}

func (l *Loop) fanFailed(f *fanState, err error) {
	f.failures++
	l.emit(events.Event{Kind: events.KindFanWriteFailed, Unit: f.spec.ID, Duty: f.target, Failures: f.failures, Err: err})
	if f.failures == l.opts.Tolerance {
		f.degraded = true
		l.emit(events.Event{Kind: events.KindUnitDegraded, Unit: f.spec.ID, Duty: hw.MaxDuty, Failures: f.failures, Err: err})
	}
}

func (l *Loop) fanSucceeded(f *fanState) {
	if f.failures == 0 {
		return
	}
	l.emit(events.Event{Kind: events.KindFanRecovered, Unit: f.spec.ID, Duty: f.target, Failures: f.failures})
	if f.degraded {
		l.emit(events.Event{Kind: events.KindUnitRecovered, Unit: f.spec.ID})
	}
	f.failures = 0
	f.degraded = false
}

func (l *Loop) checkRPM(ctx context.Context) {
	results := fanOut(ctx, l.opts.Workers, l.opts.Timeout, len(l.fans), func(i int) func(context.Context) (int, error) {
		f := l.fans[i]
		if f.spec.RPM == nil {
			return nil
		}
		return exclusive(f.gate, f.spec.ID, f.spec.RPM.ReadRPM)
	})
	if ctx.Err() != nil {
		return
	}
	for i, f := range l.fans {
		r := results[i]
		if !r.ran {
			continue
		}
		if r.err != nil {
			f.hasRPM = false
			l.logger.Debug("rpm read failed", logging.Unit(f.spec.ID), logging.Error(r.err))
			continue
		}
		f.rpm, f.hasRPM = r.value, true
		if r.value > 0 {
			f.zeroTicks = 0
			if f.stalled {
				f.stalled = false
				l.emit(events.Event{Kind: events.KindFanRecovered, Unit: f.spec.ID, RPM: r.value, Duty: f.target})
			}
			continue
		}
		if f.target == 0 {
			f.zeroTicks = 0
			continue
		}
		f.zeroTicks++
		if f.zeroTicks == l.opts.StallTicks {
			f.stalled = true
			l.emit(events.Event{
				Kind:     events.KindFanStalled,
				Unit:     f.spec.ID,
				Duty:     f.target,
				Failures: f.zeroTicks,
				Err:      hw.Wrap(hw.ErrStall, f.spec.ID, "", nil),
			})
		}
	}
}

func (l *Loop) updateState() {
	degraded := false
	for _, s := range l.sensors {
		degraded = degraded || s.degraded
	}
	for _, f := range l.fans {
		degraded = degraded || f.degraded
	}
	if degraded {
		l.setState(StateDegraded)
	} else {
		l.setState(StateRunning)
	}
}
