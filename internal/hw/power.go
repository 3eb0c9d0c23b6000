package hw

import "strings"

// PowerState is the tri-state power condition of a drive.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerActive
	PowerStandby
)

func (p PowerState) String() string {
	switch p {
	case PowerActive:
		return "active"
	case PowerStandby:
		return "standby"
	default:
		return "unknown"
	}
}

// ParsePowerState accepts the labels produced by String.
func ParsePowerState(value string) (PowerState, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "active":
		return PowerActive, true
	case "standby":
		return PowerStandby, true
	case "unknown":
		return PowerUnknown, true
	default:
		return PowerUnknown, false
	}
}
