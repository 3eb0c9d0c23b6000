package controlloop

import (
	"time"

	"hddfancontrol/internal/control"
	"hddfancontrol/internal/hw"
)

// State is the loop lifecycle state.
type State string

const (
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateDegraded     State = "degraded"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

type driveState struct {
	spec Drive
	// power is the effective state after the unknown-state policy.
	power        hw.PowerState
	reported     hw.PowerState
	standbySince time.Time
	probeFailing bool
	// gate is shared with the drive's sensors.
	gate gate
}

func (d *driveState) asleep() bool { return d.power == hw.PowerStandby }

type sensorState struct {
	spec     Sensor
	gate     gate
	last     hw.Temp
	hasLast  bool
	lastRead time.Time
	failures int
	degraded bool
}

type fanState struct {
	spec Fan
	gate gate
	// target is the duty decided this tick; applied is the duty last written
	// successfully without a boost.
	target     hw.Duty
	applied    hw.Duty
	hasApplied bool
	lastWrite  time.Time
	failures   int
	degraded   bool
	boosted    bool
	rpm        int
	hasRPM     bool
	zeroTicks  int
	stalled    bool
}

type groupState struct {
	spec       Group
	state      control.State
	reason     control.Reason
	temp       hw.Temp
	hasTemp    bool
	lastChange time.Time
}

// Status is a point-in-time copy of the loop's runtime state.
type Status struct {
	State   State
	Tick    uint64
	LastRun time.Time
	Drives  []DriveStatus
	Sensors []SensorStatus
	Fans    []FanStatus
	Groups  []GroupStatus
}

type DriveStatus struct {
	ID           string
	Power        hw.PowerState
	StandbySince time.Time
}

type SensorStatus struct {
	ID       string
	Temp     hw.Temp
	HasTemp  bool
	LastRead time.Time
	Failures int
	Degraded bool
}

type FanStatus struct {
	ID       string
	Duty     hw.Duty
	RPM      int
	HasRPM   bool
	Degraded bool
	Stalled  bool
}

type GroupStatus struct {
	ID         string
	Duty       hw.Duty
	Reason     control.Reason
	Temp       hw.Temp
	HasTemp    bool
	LastChange time.Time
}
