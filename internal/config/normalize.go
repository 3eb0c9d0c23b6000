package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("%w: paths.state_dir: %w", ErrInvalid, err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("%w: paths.log_dir: %w", ErrInvalid, err)
	}
	if c.History.Path, err = expandPath(strings.TrimSpace(c.History.Path)); err != nil {
		return fmt.Errorf("%w: history.path: %w", ErrInvalid, err)
	}

	c.Logging.Format = lowerTrim(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerTrim(c.Logging.Level, defaultLogLevel)
	c.Control.UnknownPowerState = lowerTrim(c.Control.UnknownPowerState, UnknownAsActive)

	for i := range c.Drives {
		d := &c.Drives[i]
		d.ID = strings.TrimSpace(d.ID)
		d.Device = strings.TrimSpace(d.Device)
		d.TempMethod = lowerTrim(d.TempMethod, defaultTempMethod)
		d.PowerProbe = lowerTrim(d.PowerProbe, defaultPowerProbe)
		if strings.TrimSpace(d.HddtempAddr) == "" {
			d.HddtempAddr = defaultHddtempAddr
		}
	}
	for i := range c.Sensors {
		c.Sensors[i].ID = strings.TrimSpace(c.Sensors[i].ID)
		c.Sensors[i].Path = strings.TrimSpace(c.Sensors[i].Path)
	}
	for i := range c.Fans {
		f := &c.Fans[i]
		f.ID = strings.TrimSpace(f.ID)
		f.PWM = strings.TrimSpace(f.PWM)
		f.RPM = strings.TrimSpace(f.RPM)
	}
	for i := range c.Groups {
		g := &c.Groups[i]
		g.ID = strings.TrimSpace(g.ID)
		g.Interpolation = lowerTrim(g.Interpolation, defaultInterpolation)
		g.Sensors = trimAll(g.Sensors)
		g.Fans = trimAll(g.Fans)
		if g.MaxDuty == 0 {
			g.MaxDuty = defaultMaxDuty
		}
		if len(g.Points) == 0 {
			g.Points = []CurvePoint{
				{Temp: defaultLowTemp, Duty: max(defaultLowDuty, g.MinDuty)},
				{Temp: defaultHighTemp, Duty: g.MaxDuty},
			}
		}
	}
	return nil
}

func lowerTrim(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
