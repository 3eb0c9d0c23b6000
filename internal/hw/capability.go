package hw

import "context"

// TempReader fetches one temperature sample. Implementations must not change
// the power state of the device they read.
type TempReader interface {
	ReadTemp(ctx context.Context) (Temp, error)
}

// PowerProber reports a drive's power state without waking it. When the
// mechanism is unavailable it returns PowerUnknown with ErrProbeUnavailable.
type PowerProber interface {
	ProbePower(ctx context.Context) (PowerState, error)
}

// WriteResult describes what an actuator actually wrote.
type WriteResult struct {
	Raw int
	// Boosted is set when a start value was written instead of the requested
	// duty to spin up a stopped fan. The caller should write the duty again on
	// the next tick.
	Boosted bool
}

// PWMWriter commands a fan duty cycle.
type PWMWriter interface {
	WriteDuty(ctx context.Context, duty Duty) (WriteResult, error)
}

// RPMReader reports measured fan speed.
type RPMReader interface {
	ReadRPM(ctx context.Context) (int, error)
}
