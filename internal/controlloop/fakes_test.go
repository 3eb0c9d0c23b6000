package controlloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"hddfancontrol/internal/control"
	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hw"
)

type fakeProber struct {
	mu    sync.Mutex
	state hw.PowerState
	err   error
	calls int
}

func (p *fakeProber) set(state hw.PowerState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state, p.err = state, err
}

func (p *fakeProber) ProbePower(context.Context) (hw.PowerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.state, p.err
}

type fakeSensor struct {
	mu    sync.Mutex
	temp  hw.Temp
	err   error
	hang  bool
	reads int
}

func (s *fakeSensor) set(celsius float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp, s.err, s.hang = hw.Celsius(celsius), err, false
}

func (s *fakeSensor) hangNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hang = true
}

func (s *fakeSensor) ReadTemp(ctx context.Context) (hw.Temp, error) {
	s.mu.Lock()
	s.reads++
	temp, err, hang := s.temp, s.err, s.hang
	s.mu.Unlock()
	if hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return temp, err
}

func (s *fakeSensor) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type fakeFan struct {
	mu       sync.Mutex
	writes   []hw.Duty
	err      error
	rpm      int
	boost    int
	restored int
}

func (f *fakeFan) WriteDuty(_ context.Context, duty hw.Duty) (hw.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return hw.WriteResult{}, f.err
	}
	f.writes = append(f.writes, duty)
	if f.boost > 0 {
		f.boost--
		return hw.WriteResult{Raw: 255, Boosted: true}, nil
	}
	return hw.WriteResult{Raw: int(duty) * 255 / 100}, nil
}

func (f *fakeFan) ReadRPM(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rpm, nil
}

func (f *fakeFan) Restore(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored++
	return nil
}

func (f *fakeFan) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFan) setRPM(rpm int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rpm = rpm
}

func (f *fakeFan) written() []hw.Duty {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hw.Duty(nil), f.writes...)
}

func (f *fakeFan) last() hw.Duty {
	w := f.written()
	if len(w) == 0 {
		return -1
	}
	return w[len(w)-1]
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// syncRecorder is an events.Recorder safe for Run's goroutine.
type syncRecorder struct {
	mu  sync.Mutex
	rec events.Recorder
	ch  chan events.Event
}

func (r *syncRecorder) Emit(e events.Event) {
	r.mu.Lock()
	r.rec.Emit(e)
	r.mu.Unlock()
	if r.ch != nil {
		select {
		case r.ch <- e:
		default:
		}
	}
}

func (r *syncRecorder) OfKind(k events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.OfKind(k)
}

func baysCurve(t *testing.T) *control.Curve {
	t.Helper()
	curve, err := control.NewCurve(control.CurveSpec{
		Points: []control.Point{
			{Temp: hw.Celsius(30), Duty: 20},
			{Temp: hw.Celsius(45), Duty: 50},
			{Temp: hw.Celsius(60), Duty: 100},
		},
		Interpolation: control.Linear,
		MinDuty:       20,
		MaxDuty:       100,
	})
	if err != nil {
		t.Fatalf("curve: %v", err)
	}
	return curve
}

// rig is one drive with its sensor feeding one group with one fan.
type rig struct {
	loop   *Loop
	prober *fakeProber
	sensor *fakeSensor
	fan    *fakeFan
	events *syncRecorder
	clock  *clock
}

func newRig(t *testing.T, tweak func(*Options)) *rig {
	t.Helper()
	r := &rig{
		prober: &fakeProber{state: hw.PowerActive},
		sensor: &fakeSensor{},
		fan:    &fakeFan{rpm: 900},
		events: &syncRecorder{},
		clock:  newClock(),
	}
	topology := Topology{
		Drives:  []Drive{{ID: "sda", Prober: r.prober}},
		Sensors: []Sensor{{ID: "sda", Drive: "sda", Reader: r.sensor}},
		Fans:    []Fan{{ID: "rear", Writer: r.fan, RPM: r.fan, Restore: r.fan.Restore}},
		Groups:  []Group{{ID: "bays", Sensors: []string{"sda"}, Fans: []string{"rear"}, Curve: baysCurve(t), Deadband: 5}},
	}
	opts := Options{
		Interval:     time.Minute,
		Timeout:      time.Second,
		Tolerance:    3,
		StallTicks:   3,
		Workers:      2,
		ShutdownDuty: 100,
		Sink:         r.events,
		Now:          r.clock.Now,
	}
	if tweak != nil {
		tweak(&opts)
	}
	loop, err := New(topology, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.loop = loop
	return r
}

// tick advances the clock by one interval and runs a cycle.
func (r *rig) tick(t *testing.T) {
	t.Helper()
	if err := r.loop.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	r.clock.advance(time.Minute)
}

func (r *rig) groupDuty() hw.Duty {
	return r.loop.Status().Groups[0].Duty
}
