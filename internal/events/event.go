package events

import (
	"time"

	"hddfancontrol/internal/hw"
)

// Kind identifies an event type.
type Kind string

const (
	KindLoopState       Kind = "loop_state"
	KindTickCompleted   Kind = "tick_completed"
	KindDutyChanged     Kind = "duty_changed"
	KindSensorFailed    Kind = "sensor_failed"
	KindSensorRecovered Kind = "sensor_recovered"
	KindProbeFailed     Kind = "probe_failed"
	KindDriveStandby    Kind = "drive_standby"
	KindDriveActive     Kind = "drive_active"
	KindFanWriteFailed  Kind = "fan_write_failed"
	KindFanRecovered    Kind = "fan_recovered"
	KindFanStalled      Kind = "fan_stalled"
	KindUnitDegraded    Kind = "unit_degraded"
	KindUnitRecovered   Kind = "unit_recovered"
)

// Event is a single observation. Fields that do not apply are left zero.
type Event struct {
	Time time.Time
	Kind Kind
	// Unit is the sensor, drive, fan or group id the event concerns.
	Unit     string
	Tick     uint64
	State    string
	Reason   string
	Duty     hw.Duty
	PrevDuty hw.Duty
	Temp     hw.Temp
	HasTemp  bool
	RPM      int
	Failures int
	Duration time.Duration
	Err      error
}

// Sink receives events. Emit is called from the control loop goroutine and
// must not block for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi returns a sink delivering to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	filtered := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	switch len(filtered) {
	case 0:
		return Discard
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}

// Recorder keeps every event in memory. It is meant for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
