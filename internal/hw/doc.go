// Package hw defines the hardware capabilities the control loop consumes and
// the units that flow between them.
//
// Temperatures travel as Temp (tenths of a degree Celsius) and fan commands as
// Duty (integer percent). Conversion to raw PWM values happens only inside
// actuator implementations. Failures are tagged with the sentinel errors in
// errors.go so callers can classify them with errors.Is.
package hw
