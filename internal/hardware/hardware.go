// Package hardware turns a loaded configuration into the concrete devices the
// control loop drives. Implementations are chosen here, once, so the loop only
// sees capability interfaces.
package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/controlloop"
	"hddfancontrol/internal/drive"
	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/hwmon"
	"hddfancontrol/internal/logging"
)

// DriveBinding records how a configured drive was bound.
type DriveBinding struct {
	ID     string
	Device string
	// Method is the temperature method in use; empty when none was usable.
	Method string
	Probe  string
	Err    error
}

// Binding is the result of Build.
type Binding struct {
	Topology controlloop.Topology
	Drives   []DriveBinding
	Fans     []*hwmon.Fan
}

// Options adjusts Build for tests.
type Options struct {
	// SysRoot replaces /sys for drivetemp lookups.
	SysRoot string
	// Resolve maps a configured device to its node. Defaults to
	// drive.ResolveDevice.
	Resolve func(string) (string, error)
}

// Build binds every configured drive, sensor, fan and group. A drive whose
// temperature cannot be read by any method is still bound with a reader that
// always fails, so its groups run at maximum duty instead of the daemon
// refusing to start. Fans must open, since nothing else can cool the drives.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Binding, error) {
	logger = logging.NewComponentLogger(logger, "hardware")
	resolve := opts.Resolve
	if resolve == nil {
		resolve = drive.ResolveDevice
	}
	b := &Binding{}

	for _, d := range cfg.Drives {
		device, err := resolve(d.Device)
		if err != nil {
			logging.WarnWithContext(logger, "drive device not found; using configured path", "drive_unresolved",
				logging.Unit(d.ID),
				logging.String("device", d.Device),
				logging.Error(err),
				logging.String(logging.FieldImpact, "reads fail until the device appears; its groups run at maximum duty"),
			)
			device = d.Device
		}
		binding := DriveBinding{ID: d.ID, Device: device, Probe: d.PowerProbe}

		prober, err := drive.NewPowerProber(d.PowerProbe, d.ID, device)
		if err != nil {
			return nil, fmt.Errorf("drive %s: %w", d.ID, err)
		}
		reader, method, err := drive.NewTempReader(ctx, d.TempMethod, drive.ReaderOptions{
			ID:           d.ID,
			Device:       device,
			HddtempAddr:  d.HddtempAddr,
			SysRoot:      opts.SysRoot,
			ProbeTimeout: cfg.Control.Timeout(),
		})
		if err != nil {
			logging.WarnWithContext(logger, "no temperature method available for drive", "drive_unreadable",
				logging.Unit(d.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "load the drivetemp module or install hdparm/smartctl"),
				logging.String(logging.FieldImpact, "groups using this drive run at maximum duty"),
			)
			reader = unavailable{id: d.ID, err: err}
			binding.Err = err
		}
		binding.Method = method
		logger.Info("drive bound",
			logging.Unit(d.ID),
			logging.String("device", device),
			logging.String("temp_method", method),
			logging.String("power_probe", d.PowerProbe),
		)
		b.Drives = append(b.Drives, binding)
		b.Topology.Drives = append(b.Topology.Drives, controlloop.Drive{ID: d.ID, Prober: prober})
		b.Topology.Sensors = append(b.Topology.Sensors, controlloop.Sensor{ID: d.ID, Drive: d.ID, Reader: reader})
	}

	for _, s := range cfg.Sensors {
		b.Topology.Sensors = append(b.Topology.Sensors, controlloop.Sensor{ID: s.ID, Reader: hwmon.NewTempInput(s.ID, s.Path)})
	}

	for _, f := range cfg.Fans {
		fan, err := hwmon.OpenFan(f.ID, hwmon.FanOptions{
			PWMPath:   f.PWM,
			RPMPath:   f.RPM,
			Start:     f.StartValue,
			Stop:      f.StopValue,
			NeverStop: f.NeverStop,
		})
		if err != nil {
			return nil, fmt.Errorf("fan %s: %w", f.ID, err)
		}
		binding := controlloop.Fan{ID: f.ID, Writer: fan, Restore: fan.Restore}
		if fan.HasRPM() {
			binding.RPM = fan
		}
		b.Fans = append(b.Fans, fan)
		b.Topology.Fans = append(b.Topology.Fans, binding)
	}

	for _, g := range cfg.Groups {
		curve, err := g.Curve()
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.ID, err)
		}
		b.Topology.Groups = append(b.Topology.Groups, controlloop.Group{
			ID:       g.ID,
			Sensors:  append([]string(nil), g.Sensors...),
			Fans:     append([]string(nil), g.Fans...),
			Curve:    curve,
			Deadband: hw.Duty(g.DeadbandValue()),
		})
	}

	if err := b.Topology.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return b, nil
}

// unavailable stands in for a drive with no working temperature method.
type unavailable struct {
	id  string
	err error
}

func (u unavailable) ReadTemp(context.Context) (hw.Temp, error) {
	return 0, hw.Wrap(hw.ErrUnreadable, u.id, "no temperature method", u.err)
}

// Restore puts every fan back to the settings found when it was opened. Used
// when the loop never started.
func (b *Binding) Restore(ctx context.Context, timeout time.Duration) error {
	var firstErr error
	for _, f := range b.Fans {
		_, err := hw.Call(ctx, timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, f.Restore(ctx)
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("restore fan %s: %w", f.ID(), err)
		}
	}
	return firstErr
}
