package control

import (
	"testing"

	"hddfancontrol/internal/hw"
)

func fresh(celsius float64) Observation {
	return Observation{SensorID: "sda", Status: Fresh, Temp: hw.Celsius(celsius)}
}

type stepper struct {
	t     *testing.T
	input Input
	state State
}

func newStepper(t *testing.T, curve *Curve, deadband hw.Duty) *stepper {
	return &stepper{
		t:     t,
		input: Input{Curve: curve, Deadband: deadband, Tolerance: 3},
		state: Initial(curve),
	}
}

func (s *stepper) step(obs ...Observation) Decision {
	in := s.input
	in.Observations = obs
	d := Decide(in, s.state)
	s.state = d.Next
	return d
}

func TestDecideAppliesFirstReadingFromStartupDuty(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 5)
	d := s.step(fresh(28))
	if d.Duty != 20 || d.Reason != ReasonCurve {
		t.Fatalf("got %d (%s), want 20 (curve)", d.Duty, d.Reason)
	}
}

func TestDecideLinearSequence(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 5)
	temps := []float64{28, 46, 44, 31}
	want := []hw.Duty{20, 53, 48, 22}
	for i, temp := range temps {
		if d := s.step(fresh(temp)); d.Duty != want[i] {
			t.Fatalf("tick %d (%v°C): duty %d (%s), want %d", i+1, temp, d.Duty, d.Reason, want[i])
		}
	}
}

func TestDecideDeadbandHoldsSmallDecrease(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 5)
	temps := []float64{28, 46, 45, 31}
	want := []hw.Duty{20, 53, 53, 22}
	reasons := []Reason{ReasonCurve, ReasonCurve, ReasonDeadband, ReasonCurve}
	for i, temp := range temps {
		d := s.step(fresh(temp))
		if d.Duty != want[i] || d.Reason != reasons[i] {
			t.Fatalf("tick %d: got %d (%s), want %d (%s)", i+1, d.Duty, d.Reason, want[i], reasons[i])
		}
	}
}

func TestDecideIncreaseIgnoresDeadband(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 50)
	s.step(fresh(45))
	d := s.step(fresh(46))
	if d.Duty != 53 {
		t.Fatalf("increase held: %d", d.Duty)
	}
}

func TestDecideOscillationAcrossControlPoint(t *testing.T) {
	c := mustCurve(t, CurveSpec{
		Points: []Point{
			{Temp: hw.Celsius(30), Duty: 20},
			{Temp: hw.Celsius(45), Duty: 50},
			{Temp: hw.Celsius(60), Duty: 100},
		},
		Interpolation: Step,
		MinDuty:       20,
		MaxDuty:       100,
		Hysteresis:    hw.Celsius(2),
	})
	s := newStepper(t, c, 5)

	if d := s.step(fresh(44.5)); d.Duty != 20 {
		t.Fatalf("below point: %d", d.Duty)
	}
	// rising across the point applies at once
	if d := s.step(fresh(45.2)); d.Duty != 50 || d.Reason != ReasonCurve {
		t.Fatalf("rising: %d (%s)", d.Duty, d.Reason)
	}
	// falling back within the margin holds
	for _, temp := range []float64{44.8, 45.1, 43.5} {
		if d := s.step(fresh(temp)); d.Duty != 50 {
			t.Fatalf("falling to %v: %d (%s)", temp, d.Duty, d.Reason)
		}
	}
	// falling beyond the margin releases
	if d := s.step(fresh(42.9)); d.Duty != 20 || d.Reason != ReasonCurve {
		t.Fatalf("released: %d (%s)", d.Duty, d.Reason)
	}
}

func TestDecideStandbyHoldsPreviousDuty(t *testing.T) {
	c := mustCurve(t, CurveSpec{
		Points:  []Point{{Temp: hw.Celsius(30), Duty: 20}, {Temp: hw.Celsius(50), Duty: 50}},
		MinDuty: 0,
		MaxDuty: 100,
	})
	s := newStepper(t, c, 5)
	if d := s.step(fresh(40)); d.Duty != 35 {
		t.Fatalf("setup duty %d", d.Duty)
	}
	asleep := Observation{SensorID: "sda", Status: Standby, Last: hw.Celsius(40), HasLast: true}
	for i := 0; i < 10; i++ {
		d := s.step(asleep)
		if d.Duty != 35 || d.Reason != ReasonStandbyHold {
			t.Fatalf("standby tick %d: %d (%s)", i, d.Duty, d.Reason)
		}
	}
	if d := s.step(fresh(40)); d.Duty != 35 {
		t.Fatalf("after wake: %d", d.Duty)
	}
}

func TestDecideStandbyWithoutPriorDutyUsesSafety(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 5)
	d := s.step(Observation{SensorID: "sda", Status: Standby})
	if d.Duty != 100 || d.Reason != ReasonFallback {
		t.Fatalf("got %d (%s)", d.Duty, d.Reason)
	}
}

func TestDecideStandbySensorContributionIsHeld(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 0)
	asleep := Observation{SensorID: "sdb", Status: Standby, Last: hw.Celsius(50), HasLast: true}
	d := s.step(fresh(31), asleep)
	if d.Duty != s.input.Curve.Duty(hw.Celsius(50)) {
		t.Fatalf("standby contribution dropped: %d", d.Duty)
	}
}

func TestDecideEscalatesAfterToleranceAndRecovers(t *testing.T) {
	c := mustCurve(t, CurveSpec{
		Points:  []Point{{Temp: hw.Celsius(30), Duty: 20}, {Temp: hw.Celsius(50), Duty: 50}},
		MinDuty: 0,
		MaxDuty: 100,
	})
	s := newStepper(t, c, 5)
	s.step(fresh(40))

	failed := Observation{SensorID: "sda", Status: Failed, Last: hw.Celsius(40), HasLast: true}
	if d := s.step(failed); d.Duty != 35 || d.Reason != ReasonNoReading {
		t.Fatalf("tick 1: %d (%s)", d.Duty, d.Reason)
	}
	if d := s.step(failed); d.Duty != 35 {
		t.Fatalf("tick 2: %d", d.Duty)
	}
	if d := s.step(failed); d.Duty != 100 || d.Reason != ReasonEscalation {
		t.Fatalf("tick 3: %d (%s)", d.Duty, d.Reason)
	}
	if d := s.step(fresh(40)); d.Duty != 35 || d.Reason != ReasonCurve {
		t.Fatalf("tick 4: %d (%s)", d.Duty, d.Reason)
	}
}

func TestDecideDegradedUnitForcesSafety(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 5)
	s.step(fresh(31))

	obs := fresh(31)
	obs.Degraded = true
	if d := s.step(obs); d.Duty != 100 || d.Reason != ReasonDegraded {
		t.Fatalf("degraded sensor: %d (%s)", d.Duty, d.Reason)
	}

	s.input.ActuatorDegraded = true
	if d := s.step(fresh(31)); d.Duty != 100 || d.Reason != ReasonDegraded {
		t.Fatalf("degraded fan: %d (%s)", d.Duty, d.Reason)
	}
	s.input.ActuatorDegraded = false
	if d := s.step(fresh(31)); d.Duty != 22 {
		t.Fatalf("recovered: %d", d.Duty)
	}
}

func TestDecideFailingSensorAlongsideFreshUsesLastKnown(t *testing.T) {
	s := newStepper(t, baysCurve(t, Linear), 0)
	failing := Observation{SensorID: "sdb", Status: Failed, Last: hw.Celsius(46), HasLast: true}
	d := s.step(fresh(31), failing)
	if d.Duty != 53 || d.Next.Missed != 0 {
		t.Fatalf("got %d missed=%d", d.Duty, d.Next.Missed)
	}
}
