package control

import "hddfancontrol/internal/hw"

// Status describes what happened to a sensor during the current tick.
type Status int

const (
	// Fresh means a temperature was read this tick.
	Fresh Status = iota
	// Standby means the sensor's drive is asleep and was not read.
	Standby
	// Failed means the read failed this tick.
	Failed
)

// Observation is one sensor's contribution to a group decision.
type Observation struct {
	SensorID string
	Status   Status
	Temp     hw.Temp
	// Last is the most recent good temperature, valid when HasLast is set.
	Last     hw.Temp
	HasLast  bool
	Degraded bool
}

// Reason explains a decision.
type Reason string

const (
	ReasonCurve        Reason = "curve"
	ReasonDeadband     Reason = "deadband_hold"
	ReasonStandbyHold  Reason = "standby_hold"
	ReasonNoReading    Reason = "no_reading_hold"
	ReasonFallback     Reason = "fallback"
	ReasonEscalation   Reason = "failure_escalation"
	ReasonDegraded     Reason = "degraded"
	ReasonStartup      Reason = "startup"
	ReasonShutdownDuty Reason = "shutdown"
)

// State is the per-group memory carried between ticks.
type State struct {
	Duty hw.Duty
	// FromCurve is set when Duty was derived from the curve rather than a
	// fallback. Only curve-derived duties hold decreases inside the dead-band.
	FromCurve bool
	// Missed counts consecutive ticks with failed sensors and no fresh reading.
	Missed int
}

// Initial returns the state a group starts in: maximum duty, not curve
// derived, so the first reading applies directly.
func Initial(curve *Curve) State {
	return State{Duty: curve.MaxDuty()}
}

// Input carries everything Decide needs for one group.
type Input struct {
	Curve        *Curve
	Deadband     hw.Duty
	Tolerance    int
	Observations []Observation
	// ActuatorDegraded is set when any fan of the group exceeded its failure
	// tolerance.
	ActuatorDegraded bool
}

// Decision is the outcome for one group.
type Decision struct {
	Duty   hw.Duty
	Reason Reason
	// Temp is the aggregated temperature used, valid when HasTemp is set.
	Temp    hw.Temp
	HasTemp bool
	Next    State
}

// Decide computes a group's duty for this tick.
func Decide(in Input, prev State) Decision {
	curve := in.Curve
	safety := curve.MaxDuty()

	degraded := in.ActuatorDegraded
	var (
		fresh      bool
		anyFailed  bool
		anyStandby bool
		maxTemp    hw.Temp
		haveTemp   bool
	)
	consider := func(t hw.Temp) {
		if !haveTemp || t > maxTemp {
			maxTemp = t
			haveTemp = true
		}
	}
	for _, obs := range in.Observations {
		if obs.Degraded {
			degraded = true
		}
		switch obs.Status {
		case Fresh:
			fresh = true
			consider(obs.Temp)
		case Standby:
			anyStandby = true
			if obs.HasLast {
				consider(obs.Last)
			}
		case Failed:
			anyFailed = true
			if obs.HasLast {
				consider(obs.Last)
			}
		}
	}

	next := prev
	if fresh {
		next.Missed = 0
	} else if anyFailed {
		next.Missed++
	} else {
		next.Missed = 0
	}

	if degraded {
		next.Duty = safety
		next.FromCurve = false
		return Decision{Duty: safety, Reason: ReasonDegraded, Temp: maxTemp, HasTemp: haveTemp, Next: next}
	}

	if !fresh {
		tolerance := in.Tolerance
		if tolerance < 1 {
			tolerance = 1
		}
		if anyFailed && next.Missed >= tolerance {
			next.Duty = safety
			next.FromCurve = false
			return Decision{Duty: safety, Reason: ReasonEscalation, Next: next}
		}
		if !prev.FromCurve {
			next.Duty = safety
			return Decision{Duty: safety, Reason: ReasonFallback, Next: next}
		}
		reason := ReasonNoReading
		if anyStandby && !anyFailed {
			reason = ReasonStandbyHold
		}
		return Decision{Duty: prev.Duty, Reason: reason, Next: next}
	}

	target := curve.Duty(maxTemp)
	if target < prev.Duty && prev.FromCurve && curve.Hysteresis() > 0 {
		target = min(curve.Duty(maxTemp+curve.Hysteresis()), prev.Duty)
	}
	next.FromCurve = true
	if target < prev.Duty && prev.FromCurve && prev.Duty-target < in.Deadband {
		next.Duty = prev.Duty
		return Decision{Duty: prev.Duty, Reason: ReasonDeadband, Temp: maxTemp, HasTemp: true, Next: next}
	}
	next.Duty = target
	return Decision{Duty: target, Reason: ReasonCurve, Temp: maxTemp, HasTemp: true, Next: next}
}
