package controlloop

import (
	"context"
	"fmt"

	"hddfancontrol/internal/control"
	"hddfancontrol/internal/hw"
)

// Drive is a storage device whose power state gates its sensor.
type Drive struct {
	ID     string
	Prober hw.PowerProber
}

// Sensor is a temperature source. Drive names the drive it belongs to; it is
// empty for generic hwmon sensors, which are always read.
type Sensor struct {
	ID     string
	Drive  string
	Reader hw.TempReader
}

// Fan is a PWM output. RPM and Restore are optional.
type Fan struct {
	ID      string
	Writer  hw.PWMWriter
	RPM     hw.RPMReader
	Restore func(context.Context) error
}

// Group binds sensors to the fans they cool through one curve.
type Group struct {
	ID       string
	Sensors  []string
	Fans     []string
	Curve    *control.Curve
	Deadband hw.Duty
}

// Topology is the complete hardware binding the loop drives.
type Topology struct {
	Drives  []Drive
	Sensors []Sensor
	Fans    []Fan
	Groups  []Group
}

// Validate checks that every reference resolves and ids are unique.
func (t Topology) Validate() error {
	drives := make(map[string]bool, len(t.Drives))
	for _, d := range t.Drives {
		if d.ID == "" || drives[d.ID] {
			return fmt.Errorf("drive id %q is empty or duplicated", d.ID)
		}
		if d.Prober == nil {
			return fmt.Errorf("drive %s: no power prober", d.ID)
		}
		drives[d.ID] = true
	}
	sensors := make(map[string]bool, len(t.Sensors))
	for _, s := range t.Sensors {
		if s.ID == "" || sensors[s.ID] {
			return fmt.Errorf("sensor id %q is empty or duplicated", s.ID)
		}
		if s.Reader == nil {
			return fmt.Errorf("sensor %s: no reader", s.ID)
		}
		if s.Drive != "" && !drives[s.Drive] {
			return fmt.Errorf("sensor %s: unknown drive %q", s.ID, s.Drive)
		}
		sensors[s.ID] = true
	}
	fans := make(map[string]bool, len(t.Fans))
	for _, f := range t.Fans {
		if f.ID == "" || fans[f.ID] {
			return fmt.Errorf("fan id %q is empty or duplicated", f.ID)
		}
		if f.Writer == nil {
			return fmt.Errorf("fan %s: no pwm writer", f.ID)
		}
		fans[f.ID] = true
	}
	if len(t.Groups) == 0 {
		return fmt.Errorf("no fan groups")
	}
	for _, g := range t.Groups {
		if g.Curve == nil {
			return fmt.Errorf("group %s: no curve", g.ID)
		}
		if len(g.Sensors) == 0 || len(g.Fans) == 0 {
			return fmt.Errorf("group %s: needs at least one sensor and one fan", g.ID)
		}
		for _, id := range g.Sensors {
			if !sensors[id] {
				return fmt.Errorf("group %s: unknown sensor %q", g.ID, id)
			}
		}
		for _, id := range g.Fans {
			if !fans[id] {
				return fmt.Errorf("group %s: unknown fan %q", g.ID, id)
			}
		}
	}
	return nil
}
