package hw

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnreadable       = errors.New("sensor unreadable")
	ErrTimeout          = errors.New("operation timed out")
	ErrParse            = errors.New("unparseable sensor output")
	ErrDeviceAsleep     = errors.New("device asleep")
	ErrProbeUnavailable = errors.New("power probe unavailable")
	ErrWrite            = errors.New("pwm write failed")
	ErrStall            = errors.New("fan stall detected")
)

// Wrap tags err with a failure marker and the device/operation it came from.
// The marker should be one of the sentinel errors above.
func Wrap(marker error, device, operation string, err error) error {
	if marker == nil {
		marker = ErrUnreadable
	}
	detail := buildDetail(device, operation)
	switch {
	case detail == "" && err != nil:
		return fmt.Errorf("%w: %w", marker, err)
	case detail == "":
		return marker
	case err != nil:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	default:
		return fmt.Errorf("%w: %s", marker, detail)
	}
}

// Kind returns a short label for the failure class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrDeviceAsleep):
		return "device_asleep"
	case errors.Is(err, ErrProbeUnavailable):
		return "probe_unavailable"
	case errors.Is(err, ErrWrite):
		return "write_error"
	case errors.Is(err, ErrStall):
		return "stall_detected"
	default:
		return "unreadable"
	}
}

func buildDetail(device, operation string) string {
	parts := make([]string, 0, 2)
	if device = strings.TrimSpace(device); device != "" {
		parts = append(parts, device)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	return strings.Join(parts, ": ")
}
