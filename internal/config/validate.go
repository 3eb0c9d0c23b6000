package config

import (
	"errors"
	"fmt"
	"slices"

	"hddfancontrol/internal/control"
	"hddfancontrol/internal/hw"
)

var (
	tempMethods  = []string{"auto", "drivetemp", "hdparm", "smartctl", "hddtemp"}
	powerProbes  = []string{"hdparm", "ata", "none"}
	logFormats   = []string{"console", "json"}
	unknownModes = []string{UnknownAsActive, UnknownAsStandby}
)

// Validate ensures the configuration is usable. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateLogging,
		c.validateControl,
		c.validateHistory,
		c.validateDevices,
		c.validateGroups,
	} {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be one of %v", logFormats)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateControl() error {
	ctl := c.Control
	if err := ensurePositive(map[string]int{
		"control.poll_interval":       ctl.PollInterval,
		"control.operation_timeout":   ctl.OperationTimeout,
		"control.failure_tolerance":   ctl.FailureTolerance,
		"control.stall_ticks":         ctl.StallTicks,
		"control.workers":             ctl.Workers,
		"control.wake_poll_interval":  ctl.WakePollInterval,
		"control.boost_poll_interval": ctl.BoostPollInterval,
	}); err != nil {
		return err
	}
	if ctl.RefreshInterval < 0 {
		return errors.New("control.refresh_interval must not be negative")
	}
	if ctl.WakeWindow < 0 {
		return errors.New("control.wake_window must not be negative")
	}
	if !slices.Contains(unknownModes, ctl.UnknownPowerState) {
		return fmt.Errorf("control.unknown_power_state must be one of %v", unknownModes)
	}
	if !hw.Duty(ctl.ShutdownDuty).Valid() {
		return errors.New("control.shutdown_duty must be within 0-100")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateDevices() error {
	inputs := map[string]struct{}{}
	for i, d := range c.Drives {
		if d.ID == "" {
			return fmt.Errorf("drive[%d].id is required", i)
		}
		if _, dup := inputs[d.ID]; dup {
			return fmt.Errorf("drive %q: duplicate id", d.ID)
		}
		inputs[d.ID] = struct{}{}
		if d.Device == "" {
			return fmt.Errorf("drive %q: device is required", d.ID)
		}
		if !slices.Contains(tempMethods, d.TempMethod) {
			return fmt.Errorf("drive %q: temp_method must be one of %v", d.ID, tempMethods)
		}
		if !slices.Contains(powerProbes, d.PowerProbe) {
			return fmt.Errorf("drive %q: power_probe must be one of %v", d.ID, powerProbes)
		}
	}
	for i, s := range c.Sensors {
		if s.ID == "" {
			return fmt.Errorf("sensor[%d].id is required", i)
		}
		if _, dup := inputs[s.ID]; dup {
			return fmt.Errorf("sensor %q: id already used by a drive or sensor", s.ID)
		}
		inputs[s.ID] = struct{}{}
		if s.Path == "" {
			return fmt.Errorf("sensor %q: path is required", s.ID)
		}
	}

	fans := map[string]struct{}{}
	for i, f := range c.Fans {
		if f.ID == "" {
			return fmt.Errorf("fan[%d].id is required", i)
		}
		if _, dup := fans[f.ID]; dup {
			return fmt.Errorf("fan %q: duplicate id", f.ID)
		}
		fans[f.ID] = struct{}{}
		if f.PWM == "" {
			return fmt.Errorf("fan %q: pwm is required", f.ID)
		}
		if f.StartValue < 0 || f.StartValue > 255 {
			return fmt.Errorf("fan %q: start_value must be within 0-255", f.ID)
		}
		if f.StopValue < 0 || f.StopValue > 255 {
			return fmt.Errorf("fan %q: stop_value must be within 0-255", f.ID)
		}
		if f.StartValue > 0 && f.StopValue > f.StartValue {
			return fmt.Errorf("fan %q: stop_value must not exceed start_value", f.ID)
		}
	}
	return nil
}

func (c *Config) validateGroups() error {
	if len(c.Groups) == 0 {
		return errors.New("at least one [[group]] is required")
	}
	inputs := map[string]struct{}{}
	for _, d := range c.Drives {
		inputs[d.ID] = struct{}{}
	}
	for _, s := range c.Sensors {
		inputs[s.ID] = struct{}{}
	}
	fans := map[string]struct{}{}
	for _, f := range c.Fans {
		fans[f.ID] = struct{}{}
	}

	seen := map[string]struct{}{}
	for i, g := range c.Groups {
		if g.ID == "" {
			return fmt.Errorf("group[%d].id is required", i)
		}
		if _, dup := seen[g.ID]; dup {
			return fmt.Errorf("group %q: duplicate id", g.ID)
		}
		seen[g.ID] = struct{}{}
		if len(g.Sensors) == 0 {
			return fmt.Errorf("group %q: at least one sensor is required", g.ID)
		}
		if len(g.Fans) == 0 {
			return fmt.Errorf("group %q: at least one fan is required", g.ID)
		}
		for _, id := range g.Sensors {
			if _, ok := inputs[id]; !ok {
				return fmt.Errorf("group %q: unknown sensor or drive %q", g.ID, id)
			}
		}
		for _, id := range g.Fans {
			if _, ok := fans[id]; !ok {
				return fmt.Errorf("group %q: unknown fan %q", g.ID, id)
			}
		}
		if db := g.DeadbandValue(); db < 0 || db > 100 {
			return fmt.Errorf("group %q: deadband must be within 0-100", g.ID)
		}
		if _, err := g.Curve(); err != nil {
			return fmt.Errorf("group %q: %w", g.ID, err)
		}
	}
	return nil
}

// Curve builds the validated threshold curve for the group.
func (g Group) Curve() (*control.Curve, error) {
	mode, err := control.ParseInterpolation(g.Interpolation)
	if err != nil {
		return nil, err
	}
	points := make([]control.Point, len(g.Points))
	for i, p := range g.Points {
		points[i] = control.Point{Temp: hw.Celsius(p.Temp), Duty: hw.Duty(p.Duty)}
	}
	return control.NewCurve(control.CurveSpec{
		Points:        points,
		Interpolation: mode,
		MinDuty:       hw.Duty(g.MinDuty),
		MaxDuty:       hw.Duty(g.MaxDuty),
		Hysteresis:    hw.Celsius(g.Hysteresis),
	})
}

func ensurePositive(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if values[k] <= 0 {
			return fmt.Errorf("%s must be positive", k)
		}
	}
	return nil
}
