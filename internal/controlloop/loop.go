package controlloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hddfancontrol/internal/control"
	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/logging"
)

// Loop drives the fans of one Topology.
type Loop struct {
	opts   Options
	logger *slog.Logger
	sink   events.Sink

	drives  []*driveState
	sensors []*sensorState
	fans    []*fanState
	groups  []*groupState

	driveByID  map[string]*driveState
	sensorByID map[string]*sensorState
	fanByID    map[string]*fanState

	tick      uint64
	state     State
	wakeUntil time.Time

	wake     chan struct{}
	shutdown chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	running bool
	status  Status
}

// New validates topology and builds a loop with every group at maximum duty.
func New(topology Topology, opts Options) (*Loop, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	l := &Loop{
		opts:       opts,
		logger:     logging.NewComponentLogger(opts.Logger, "controlloop"),
		sink:       opts.Sink,
		driveByID:  make(map[string]*driveState, len(topology.Drives)),
		sensorByID: make(map[string]*sensorState, len(topology.Sensors)),
		fanByID:    make(map[string]*fanState, len(topology.Fans)),
		state:      StateStarting,
		wake:       make(chan struct{}, 1),
		shutdown:   make(chan struct{}),
	}
	for _, d := range topology.Drives {
		ds := &driveState{spec: d, power: hw.PowerActive, reported: hw.PowerUnknown, gate: newGate()}
		l.drives = append(l.drives, ds)
		l.driveByID[d.ID] = ds
	}
	for _, s := range topology.Sensors {
		ss := &sensorState{spec: s, gate: newGate()}
		if d, ok := l.driveByID[s.Drive]; ok {
			ss.gate = d.gate
		}
		l.sensors = append(l.sensors, ss)
		l.sensorByID[s.ID] = ss
	}
	for _, f := range topology.Fans {
		fs := &fanState{spec: f, gate: newGate()}
		l.fans = append(l.fans, fs)
		l.fanByID[f.ID] = fs
	}
	for _, g := range topology.Groups {
		initial := control.Initial(g.Curve)
		l.groups = append(l.groups, &groupState{spec: g, state: initial, reason: control.ReasonStartup})
	}
	l.publish(time.Time{})
	return l, nil
}

// Run ticks until ctx is canceled or RequestShutdown is called, then applies
// the shutdown posture. It returns nil on an orderly stop.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("control loop already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	l.logger.Info("control loop starting",
		logging.Int("drives", len(l.drives)),
		logging.Int("sensors", len(l.sensors)),
		logging.Int("fans", len(l.fans)),
		logging.Int("groups", len(l.groups)),
		logging.Duration("interval", l.opts.Interval),
	)
	l.setState(StateRunning)
	defer l.applyShutdown()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.shutdown:
			cancel()
		case <-runCtx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-runCtx.Done():
			return nil
		case <-timer.C:
		case <-l.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		started := l.opts.Now()
		if err := l.Tick(runCtx); err != nil {
			if runCtx.Err() != nil {
				return nil
			}
			l.logger.Warn("tick failed", logging.Error(err))
		}
		timer.Reset(l.nextDelay(started, l.opts.Now()))
	}
}

// Wake requests an immediate tick. Requests made while a tick is pending
// collapse into one.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RequestShutdown stops Run after the current tick. It is safe to call more
// than once and from any goroutine.
func (l *Loop) RequestShutdown() {
	l.stopOnce.Do(func() { close(l.shutdown) })
}

// Status returns a copy of the state published at the end of the last tick.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.status
	s.Drives = append([]DriveStatus(nil), s.Drives...)
	s.Sensors = append([]SensorStatus(nil), s.Sensors...)
	s.Fans = append([]FanStatus(nil), s.Fans...)
	s.Groups = append([]GroupStatus(nil), s.Groups...)
	return s
}

// nextDelay keeps tick starts on a fixed interval. An overrun yields zero so
// the next tick starts at once.
func (l *Loop) nextDelay(started, now time.Time) time.Duration {
	interval := l.opts.Interval
	if l.opts.WakePoll > 0 && now.Before(l.wakeUntil) {
		interval = min(interval, l.opts.WakePoll)
	}
	if l.opts.BoostPoll > 0 && l.anyBoosted() {
		interval = min(interval, l.opts.BoostPoll)
	}
	delay := interval - now.Sub(started)
	if delay < 0 {
		return 0
	}
	return delay
}

func (l *Loop) anyBoosted() bool {
	for _, f := range l.fans {
		if f.boosted {
			return true
		}
	}
	return false
}

func (l *Loop) setState(next State) {
	if l.state == next {
		return
	}
	prev := l.state
	l.state = next
	l.mu.Lock()
	l.status.State = next
	l.mu.Unlock()
	l.sink.Emit(events.Event{
		Time:   l.opts.Now(),
		Kind:   events.KindLoopState,
		Tick:   l.tick,
		State:  string(next),
		Reason: string(prev),
	})
}

func (l *Loop) emit(e events.Event) {
	if e.Time.IsZero() {
		e.Time = l.opts.Now()
	}
	e.Tick = l.tick
	l.sink.Emit(e)
}

func (l *Loop) publish(at time.Time) {
	s := Status{State: l.state, Tick: l.tick, LastRun: at}
	for _, d := range l.drives {
		s.Drives = append(s.Drives, DriveStatus{ID: d.spec.ID, Power: d.power, StandbySince: d.standbySince})
	}
	for _, ss := range l.sensors {
		s.Sensors = append(s.Sensors, SensorStatus{
			ID:       ss.spec.ID,
			Temp:     ss.last,
			HasTemp:  ss.hasLast,
			LastRead: ss.lastRead,
			Failures: ss.failures,
			Degraded: ss.degraded,
		})
	}
	for _, f := range l.fans {
		s.Fans = append(s.Fans, FanStatus{
			ID:       f.spec.ID,
			Duty:     f.applied,
			RPM:      f.rpm,
			HasRPM:   f.hasRPM,
			Degraded: f.degraded,
			Stalled:  f.stalled,
		})
	}
	for _, g := range l.groups {
		s.Groups = append(s.Groups, GroupStatus{
			ID:         g.spec.ID,
			Duty:       g.state.Duty,
			Reason:     g.reason,
			Temp:       g.temp,
			HasTemp:    g.hasTemp,
			LastChange: g.lastChange,
		})
	}
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}
