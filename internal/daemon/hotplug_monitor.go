package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/drive"
	"hddfancontrol/internal/logging"
)

// hotplugMonitor listens for udev block events on the configured drives and
// wakes the control loop so it re-probes them at once.
type hotplugMonitor struct {
	logger  *slog.Logger
	wake    func()
	devices map[string]string // kernel name -> drive id

	mu      sync.Mutex
	running bool
}

func newHotplugMonitor(cfg *config.Config, logger *slog.Logger, wake func()) *hotplugMonitor {
	if cfg == nil || len(cfg.Drives) == 0 {
		return nil
	}
	devices := make(map[string]string, len(cfg.Drives))
	for _, d := range cfg.Drives {
		device := d.Device
		if resolved, err := drive.ResolveDevice(device); err == nil {
			device = resolved
		}
		devices[drive.KernelName(device)] = d.ID
	}
	return &hotplugMonitor{
		logger:  logging.NewComponentLogger(logger, "hotplug-monitor"),
		wake:    wake,
		devices: devices,
	}
}

// Run listens until ctx ends. Failing to open the netlink socket is not
// fatal: Run then just waits, and drives are picked up by regular polling.
func (m *hotplugMonitor) Run(ctx context.Context) error {
	if m == nil {
		<-ctx.Done()
		return nil
	}
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; hotplug detection disabled", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "replaced drives are picked up at the next poll"),
		)
		<-ctx.Done()
		return nil
	}
	defer conn.Close()

	m.setRunning(true)
	defer m.setRunning(false)
	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.Int("drives", len(m.devices)),
	)

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, m.buildMatcher())
	defer close(quit)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("hotplug monitor stopped", logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
			return nil
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "hotplug detection may miss events"),
			)
		}
	}
}

func (m *hotplugMonitor) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}

// Running reports whether the monitor is connected.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// buildMatcher matches whole-disk block events: SUBSYSTEM=block,
// DEVTYPE=disk, ACTION=add|remove|change.
func (m *hotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "disk",
		},
	})
	return rules
}

func (m *hotplugMonitor) handleEvent(uevent netlink.UEvent) {
	name := extractKernelName(uevent)
	if name == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	id, ok := m.devices[name]
	if !ok {
		m.logger.Debug("ignoring event for unconfigured device", logging.String("device", name))
		return
	}
	m.logger.Info("drive event, waking control loop",
		logging.String(logging.FieldEventType, "hotplug_drive_event"),
		logging.Unit(id),
		logging.String("device", name),
		logging.String("action", string(uevent.Action)),
	)
	if m.wake != nil {
		m.wake()
	}
}

// extractKernelName returns the block device name of a uevent ("sda").
func extractKernelName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return drive.KernelName(devname)
	}
	devpath := strings.TrimRight(uevent.Env["DEVPATH"], "/")
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return parts[len(parts)-1]
}
