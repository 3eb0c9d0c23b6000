package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/oklog/run"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/controlloop"
	"hddfancontrol/internal/logging"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another hddfancontrol daemon instance is already running")

// Loop is the part of controlloop.Loop the daemon drives.
type Loop interface {
	Run(ctx context.Context) error
	RequestShutdown()
	Wake()
	Status() controlloop.Status
}

// Daemon owns the process-level lifecycle around one control loop.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	loop    Loop
	monitor *hotplugMonitor

	lockPath string
	lock     *flock.Flock
	onLocked func() error

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Hotplug      bool
	Loop         controlloop.Status
	LockFilePath string
}

// New constructs a daemon around loop. The hotplug monitor is created when
// enabled in cfg.
func New(cfg *config.Config, loop Loop, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || loop == nil {
		return nil, errors.New("daemon requires config and control loop")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		loop:     loop,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	if cfg.Hotplug.Enabled {
		d.monitor = newHotplugMonitor(cfg, logger, loop.Wake)
	}
	return d, nil
}

// Run holds the instance lock and runs the loop until ctx is canceled or the
// loop stops. The shutdown posture is applied by the loop before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()
	if d.onLocked != nil {
		if err := d.onLocked(); err != nil {
			return err
		}
	}
	d.logger.Info("hddfancontrol daemon started", logging.String("lock", d.lockPath))

	var g run.Group
	g.Add(func() error {
		return d.loop.Run(ctx)
	}, func(error) {
		d.loop.RequestShutdown()
	})
	if d.monitor != nil {
		monitorCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.monitor.Run(monitorCtx)
		}, func(error) {
			cancel()
		})
	}
	err = g.Run()
	d.logger.Info("hddfancontrol daemon stopped")
	return err
}

// OnLocked registers fn to run once Run holds the instance lock and before the
// loop starts. An error from fn releases the lock and is returned by Run.
func (d *Daemon) OnLocked(fn func() error) {
	d.onLocked = fn
}

// Stop asks the loop to shut down. Run returns once the shutdown posture is
// applied.
func (d *Daemon) Stop() {
	d.loop.RequestShutdown()
}

// LockPath returns the instance lock location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Hotplug:      d.monitor.Running(),
		Loop:         d.loop.Status(),
		LockFilePath: d.lockPath,
	}
}
